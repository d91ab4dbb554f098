package templater

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/dimasma0305/ctfdumper/function/scraper/ctfd"
	sprig "github.com/go-task/slim-sprig"
)

// noValue is what text/template prints for a key missing from a map.
const noValue = "<no value>"

var (
	//go:embed templates/default.md
	DefaultTemplate string

	ErrTemplate = errors.New("template error")
)

// Renderer turns a challenge into a document.
type Renderer struct {
	tmpl *template.Template
}

// Load reads the template at path once, or the embedded default when path is empty.
func Load(path string) (*Renderer, error) {
	if path == "" {
		return Parse("default.md", DefaultTemplate)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTemplate, err)
	}
	return Parse(filepath.Base(path), string(src))
}

// Parse builds a Renderer from template text.
func Parse(name string, src string) (*Renderer, error) {
	tmpl, err := template.New(name).Funcs(funcMap()).Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%w: template parse error: %w", ErrTemplate, err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render executes the template with the challenge bound to .challenge. Fields the
// challenge lacks render empty.
func (r *Renderer) Render(challenge ctfd.Challenge) (string, error) {
	var buf strings.Builder
	if err := r.tmpl.Execute(&buf, map[string]any{"challenge": challenge}); err != nil {
		return "", fmt.Errorf("%w: template execute error: %w", ErrTemplate, err)
	}
	return strings.ReplaceAll(buf.String(), noValue, ""), nil
}

func funcMap() template.FuncMap {
	funcs := template.FuncMap(sprig.GenericFuncMap())
	funcs["filename"] = ctfd.FileName
	return funcs
}
