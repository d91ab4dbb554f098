package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

var std = newLogger(os.Stderr)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&prefixFormatter{})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// prefixFormatter renders "2006-01-02 15:04:05 [+] message".
type prefixFormatter struct{}

func (f *prefixFormatter) Format(e *logrus.Entry) ([]byte, error) {
	return []byte(fmt.Sprintf("%s %s %s\n", e.Time.Format("2006-01-02 15:04:05"), levelPrefix(e.Level), e.Message)), nil
}

func levelPrefix(level logrus.Level) string {
	switch level {
	case logrus.DebugLevel, logrus.TraceLevel:
		return color.YellowString("[*]")
	case logrus.InfoLevel:
		return color.BlueString("[+]")
	case logrus.WarnLevel:
		return color.MagentaString("[!]")
	default:
		return color.RedString("[-]")
	}
}

// SetVerbose switches debug lines on or off.
func SetVerbose(verbose bool) {
	if verbose {
		std.SetLevel(logrus.DebugLevel)
		return
	}
	std.SetLevel(logrus.InfoLevel)
}

func IsVerbose() bool {
	return std.IsLevelEnabled(logrus.DebugLevel)
}

// SetOutput redirects every log line, mostly for tests.
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

// SetExitFunc replaces os.Exit for Fatal.
func SetExitFunc(fn func(int)) {
	std.ExitFunc = fn
}

func Fatal(args ...interface{}) {
	var message string

	switch len(args) {
	case 0:
		message = "fatal error occurred"
	case 1:
		switch v := args[0].(type) {
		case error:
			message = v.Error()
		case string:
			message = v
		default:
			message = fmt.Sprintf("%v", v)
		}
	default:
		if format, ok := args[0].(string); ok {
			message = fmt.Sprintf(format, args[1:]...)
		} else {
			message = fmt.Sprint(args...)
		}
	}

	for _, line := range strings.Split(strings.TrimSpace(message), "\n") {
		std.Log(logrus.ErrorLevel, line)
	}
	std.Exit(1)
}

func Error(format string, elem ...any) {
	std.Errorf(format, elem...)
}

func Warn(format string, elem ...any) {
	std.Warnf(format, elem...)
}

func Info(format string, elem ...any) {
	std.Infof(format, elem...)
}

func Debug(format string, elem ...any) {
	std.Debugf(format, elem...)
}

func SuccessDownload(challName string, challCategory string) {
	Info("success downloading: %s (%s)", challName, challCategory)
}
