// Package pathtmpl renders user-supplied path templates (video_name,
// page_name, and the three default-path strings) in Handlebars-compatible
// syntax and sanitizes the result into a safe filesystem path (spec §4.10).
package pathtmpl

import (
	"fmt"
	"strings"
	"sync"

	"github.com/aymerick/raymond"
	"golang.org/x/text/unicode/norm"
)

// sentinel stands in for the platform path separator while a template is
// parsed, so a literal separator written into the template source survives
// sanitization (spec §4.10).
const sentinel = "__SEP__"

var registerHelpersOnce sync.Once

func registerHelpers() {
	registerHelpersOnce.Do(func() {
		raymond.RegisterHelper("truncate", truncateHelper)
	})
}

// truncateHelper implements the `{{ truncate s n }}` helper: keeps the
// first n *characters* (runes) of a UTF-8 string (spec §4.10).
func truncateHelper(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Templater compiles and renders the path separator, a set of named
// templates sharing one separator convention, and sanitizes every render
// (spec §4.10). A new Templater is built per Configuration version by
// internal/config.VersionedCache.
type Templater struct {
	separator string
	templates map[string]*raymond.Template
}

// NewTemplater compiles every (name, source) pair in templates. separator
// is the platform path separator (normally os.PathSeparator as a string).
func NewTemplater(separator string, templates map[string]string) (*Templater, error) {
	registerHelpers()
	t := &Templater{separator: separator, templates: make(map[string]*raymond.Template, len(templates))}
	for name, src := range templates {
		if err := t.Register(name, src); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Register compiles one named template, protecting literal occurrences of
// the platform separator in the template source before parsing.
func (t *Templater) Register(name, src string) error {
	protected := strings.ReplaceAll(src, t.separator, sentinel)
	tpl, err := raymond.Parse(protected)
	if err != nil {
		return fmt.Errorf("pathtmpl: parse %q: %w", name, err)
	}
	t.templates[name] = tpl
	return nil
}

// Render executes the named template against ctx, sanitizes the result,
// and restores protected separators (spec §4.10's full pipeline).
func (t *Templater) Render(name string, ctx map[string]any) (string, error) {
	tpl, ok := t.templates[name]
	if !ok {
		return "", fmt.Errorf("pathtmpl: unknown template %q", name)
	}
	rendered, err := tpl.Exec(ctx)
	if err != nil {
		return "", fmt.Errorf("pathtmpl: render %q: %w", name, err)
	}
	rendered = norm.NFC.String(rendered)
	sanitized := filenamify(rendered)
	return strings.ReplaceAll(sanitized, sentinel, t.separator), nil
}
