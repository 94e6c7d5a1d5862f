package notify

import (
	"bytes"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"gopkg.in/yaml.v3"
)

//go:embed messages.yml
var defaultMessages []byte

// templateFuncs provides utility functions for message templates.
var templateFuncs = sprig.TxtFuncMap()

type catalogFile struct {
	Prefix   string            `yaml:"prefix"`
	Messages map[string]string `yaml:"messages"`
}

// Catalog turns message ids into display text.
type Catalog struct {
	prefix    string
	templates map[string]*template.Template
}

// DefaultCatalog returns the built in english messages.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultMessages)
	if err != nil {
		panic(fmt.Sprintf("parsing built in messages: %s", err))
	}
	return c
}

// LoadCatalog reads a message file, layering it over the built in messages.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading messages: %w", err)
	}

	c := DefaultCatalog()
	if err := c.merge(data); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return c, nil
}

func ParseCatalog(data []byte) (*Catalog, error) {
	c := &Catalog{templates: map[string]*template.Template{}}
	if err := c.merge(data); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) merge(data []byte) error {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("decoding yaml: %w", err)
	}

	if f.Prefix != "" {
		c.prefix = f.Prefix
	}
	for id, text := range f.Messages {
		tmpl, err := template.New(id).Funcs(templateFuncs).Option("missingkey=zero").Parse(text)
		if err != nil {
			return fmt.Errorf("message %q: %w", id, err)
		}
		c.templates[id] = tmpl
	}
	return nil
}

// Render expands the message for id. Unknown ids render as the id itself.
func (c *Catalog) Render(id string, params map[string]any) string {
	tmpl, ok := c.templates[id]
	if !ok {
		slog.Warn("missing message", "id", id)
		return c.prefix + id
	}

	if params == nil {
		params = map[string]any{}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, params); err != nil {
		slog.Warn("rendering message", "id", id, "error", err)
		return c.prefix + id
	}
	return c.prefix + buf.String()
}

func (c *Catalog) Has(id string) bool {
	_, ok := c.templates[id]
	return ok
}
