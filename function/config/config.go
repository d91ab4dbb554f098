package config

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/dimasma0305/ctfdumper/function/sanitize"
	"github.com/dimasma0305/ctfdumper/function/scraper/ctfd"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"
)

var ErrConfig = errors.New("invalid configuration")

// Config is filled once at startup and only read afterwards.
type Config struct {
	BaseUrl        string `yaml:"url" validate:"required,url"`
	Username       string `yaml:"username" validate:"required_if=NoLogin false"`
	Password       string `yaml:"password" validate:"required_if=NoLogin false"`
	NonceRegex     string `yaml:"nonce_regex" validate:"required"`
	SanitizeRegex  string `yaml:"sanitize_regex" validate:"required"`
	FailureMarker  string `yaml:"failure_marker" validate:"required"`
	Template       string `yaml:"template"`
	OutputDir      string `yaml:"output" validate:"required"`
	FilterCategory string `yaml:"filter_category"`
	NoFile         bool   `yaml:"no_file"`
	NoLogin        bool   `yaml:"no_login"`
	TrustAll       bool   `yaml:"trust_all"`
	OnlySolved     bool   `yaml:"only_solved"`
	Metadata       bool   `yaml:"metadata"`
	SkipErrors     bool   `yaml:"skip_errors"`
	Insecure       bool   `yaml:"insecure"`
	Verbose        bool   `yaml:"verbose"`
}

func Default() Config {
	return Config{
		NonceRegex:    ctfd.DefaultNonceRegex,
		SanitizeRegex: sanitize.DefaultPattern,
		FailureMarker: ctfd.DefaultFailureMarker,
		OutputDir:     ".",
	}
}

// LoadFile overlays the values set in a yaml file.
func (c *Config) LoadFile(path string) error {
	if err := ParseYamlFromFile(path, c); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return nil
}

// LoadAuthFile reads the username from the first line and the password from the second.
func (c *Config) LoadAuthFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: auth file: %w", ErrConfig, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for len(lines) < 2 && scanner.Scan() {
		lines = append(lines, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: auth file: %w", ErrConfig, err)
	}
	lines = append(lines, "", "")
	c.Username, c.Password = lines[0], lines[1]
	return nil
}

// Finalize applies the switches that rewrite other fields.
func (c *Config) Finalize() {
	if c.TrustAll {
		c.SanitizeRegex = sanitize.TrustAllPattern
	}
	if c.NoLogin {
		c.Username, c.Password = "", ""
	}
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrConfig, describe(err))
	}
	if c.Hostname() == "" {
		return fmt.Errorf("%w: url %q has no host", ErrConfig, c.BaseUrl)
	}
	return nil
}

// Hostname names the top level output directory.
func (c *Config) Hostname() string {
	u, err := url.Parse(c.BaseUrl)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// Root is the directory every challenge is written under.
func (c *Config) Root() string {
	return filepath.Join(c.OutputDir, c.Hostname())
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "required_if":
			msgs = append(msgs, fmt.Sprintf("%s is required", fieldName(fe.Field())))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is not a valid %s", fieldName(fe.Field()), fe.Tag()))
		}
	}
	return strings.Join(msgs, ", ")
}

func fieldName(field string) string {
	switch field {
	case "BaseUrl":
		return "url"
	case "OutputDir":
		return "output"
	default:
		return strings.ToLower(field)
	}
}

func ParseYamlFromBytes(b []byte, data any) error {
	if err := yaml.UnmarshalStrict(b, data); err != nil {
		return fmt.Errorf("error unmarshal yaml: %w", err)
	}
	return nil
}

func ParseYamlFromFile(confPath string, data any) error {
	var buf bytes.Buffer
	f, err := os.Open(confPath)
	if err != nil {
		return fmt.Errorf("file open error: %w", err)
	}
	defer f.Close()

	if _, err := buf.ReadFrom(f); err != nil {
		return fmt.Errorf("file read error: %w", err)
	}
	return ParseYamlFromBytes(buf.Bytes(), data)
}
