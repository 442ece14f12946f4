package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

var ErrTemplateNotFound = errors.New("template not found")

func safeHTML(s string) template.HTML {
	return template.HTML(s)
}

// Template is a named email template. The subject line uses {var}
// interpolation ({var:-default} for fallbacks, {!var} to require a value);
// the body is an html/template with a safeHTML helper available.
type Template struct {
	Name    string `yaml:"name"`
	Subject string `yaml:"subject"`
	HTML    string `yaml:"html"`

	body *template.Template
}

func (t *Template) compile() error {
	body, err := template.New(t.Name).Funcs(template.FuncMap{
		"safeHTML": safeHTML,
	}).Parse(t.HTML)
	if err != nil {
		return errors.Wrapf(err, "template %s", t.Name)
	}
	t.body = body
	return nil
}

// Rendered is the outcome of rendering a template for one recipient.
type Rendered struct {
	Subject string
	HTML    string
}

var interpolateRe = regexp.MustCompile(`\{([^{}]+)\}`)

// interpolate replaces {key} tokens in val with values from data.
// {key:-default} substitutes the default when the key is absent or empty;
// {!key} makes the key required. Unknown tokens without a default are left
// in place.
func interpolate(val string, data map[string]any) (string, error) {
	if val == "" {
		return val, nil
	}
	var firstErr error
	out := interpolateRe.ReplaceAllStringFunc(val, func(s string) string {
		key := s[1 : len(s)-1]
		def := s
		var required bool
		if strings.HasPrefix(key, "!") {
			key = key[1:]
			required = true
		}
		if idx := strings.Index(key, ":-"); idx != -1 {
			def = key[idx+2:]
			key = key[:idx]
		}
		v, ok := data[key]
		if !ok || v == nil || v == "" {
			if required && firstErr == nil {
				firstErr = errors.Newf("required value not found for key '%s'", key)
			}
			return def
		}
		return fmt.Sprint(v)
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// Catalog holds compiled templates, keyed by name.
type Catalog struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

func NewCatalog() *Catalog {
	return &Catalog{templates: make(map[string]*Template)}
}

// LoadCatalog parses a YAML template catalog:
//
//	templates:
//	  - name: appointment-reminder
//	    subject: "Your visit on {date}"
//	    html: "<p>Hello {{.name}}</p>"
func LoadCatalog(buf []byte) (*Catalog, error) {
	var doc struct {
		Templates []*Template `yaml:"templates"`
	}
	if err := yaml.Unmarshal(buf, &doc); err != nil {
		return nil, errors.Wrap(err, "parse template catalog")
	}
	c := NewCatalog()
	for _, t := range doc.Templates {
		if err := c.Register(t); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Register compiles and adds a template, replacing any previous template
// with the same name.
func (c *Catalog) Register(t *Template) error {
	if t.Name == "" {
		return errors.New("template name is required")
	}
	if err := t.compile(); err != nil {
		return err
	}
	c.mu.Lock()
	c.templates[t.Name] = t
	c.mu.Unlock()
	return nil
}

// Has reports whether a template with the given name is registered.
func (c *Catalog) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.templates[name]
	return ok
}

// Render produces the subject and HTML body for one recipient's data.
func (c *Catalog) Render(name string, data map[string]any) (Rendered, error) {
	c.mu.RLock()
	t, ok := c.templates[name]
	c.mu.RUnlock()
	if !ok {
		return Rendered{}, errors.Wrapf(ErrTemplateNotFound, "%s", name)
	}
	subject, err := interpolate(t.Subject, data)
	if err != nil {
		return Rendered{}, errors.Wrapf(err, "subject of %s", name)
	}
	var buf bytes.Buffer
	if err := t.body.Execute(&buf, data); err != nil {
		return Rendered{}, errors.Wrapf(err, "body of %s", name)
	}
	return Rendered{Subject: subject, HTML: buf.String()}, nil
}

// Names returns the registered template names.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.templates))
	for name := range c.templates {
		names = append(names, name)
	}
	return names
}
