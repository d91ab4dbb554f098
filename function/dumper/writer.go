package dumper

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dimasma0305/ctfdumper/function/log"
	"github.com/dimasma0305/ctfdumper/function/scraper/ctfd"
	"gopkg.in/yaml.v2"
)

const (
	DocumentName = "README.md"
	MetadataName = "challenge.yaml"
)

// Streamer is the part of ctfd.Session the writer downloads with.
type Streamer interface {
	Resolve(ref string) (string, error)
	GetStream(url string) (io.ReadCloser, error)
}

// Writer puts challenges on disk.
type Writer struct {
	streamer Streamer
}

func NewWriter(streamer Streamer) *Writer {
	return &Writer{streamer: streamer}
}

// EnsureDirectory creates dir and its parents; an existing dir is fine.
func (w *Writer) EnsureDirectory(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		log.Info("Creating directory %s", dir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error create directory %s: %w", dir, err)
	}
	return nil
}

// WriteDocument creates or truncates README.md in dir.
func (w *Writer) WriteDocument(dir string, text string) error {
	if err := os.WriteFile(filepath.Join(dir, DocumentName), []byte(text), 0644); err != nil {
		return fmt.Errorf("error write document: %w", err)
	}
	return nil
}

// WriteMetadata dumps the raw challenge record as yaml next to the document.
func (w *Writer) WriteMetadata(dir string, challenge ctfd.Challenge) error {
	data, err := yaml.Marshal(plain(map[string]any(challenge)))
	if err != nil {
		return fmt.Errorf("error encode metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, MetadataName), data, 0644); err != nil {
		return fmt.Errorf("error write metadata: %w", err)
	}
	return nil
}

// DownloadFile streams ref into dir under the last segment of its url path and
// returns the written path. A broken transfer leaves the partial file behind.
func (w *Writer) DownloadFile(ref string, dir string) (string, error) {
	name := ctfd.FileName(ref)
	if name == "" {
		return "", fmt.Errorf("cannot derive a file name from %q", ref)
	}
	u, err := w.streamer.Resolve(ref)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(dir, name)
	log.Info("Downloading %s into %s", name, dir)

	body, err := w.streamer.GetStream(u)
	if err != nil {
		return "", err
	}
	defer body.Close()

	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("error create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, body); err != nil {
		return "", fmt.Errorf("error download %s: %w", u, err)
	}
	return dst, nil
}

// plain swaps json.Number for ints and floats so yaml prints them unquoted.
func plain(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		res := make(map[string]any, len(t))
		for k, e := range t {
			res[k] = plain(e)
		}
		return res
	case []any:
		res := make([]any, len(t))
		for i, e := range t {
			res[i] = plain(e)
		}
		return res
	default:
		return v
	}
}
