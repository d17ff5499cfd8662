// Package render expands "{{ expression }}" placeholders in user-supplied
// templates such as label_template.
//
// Each placeholder is an expr-lang expression evaluated against the
// template context, so "{{label}}", "{{ 'fossil_' + label }}" and
// "{{ label | upper() }}" all work. Columns whose header is not a valid
// identifier are reachable through $env, e.g. {{ $env["#"] }}.
//
// Referencing a name that is not in the context is an error: templates
// come from configuration, so a typo must not silently render as empty.
package render

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// segment is either literal text or an expression source.
type segment struct {
	text   string
	isExpr bool
}

// Template is a parsed template. It is safe for concurrent use.
type Template struct {
	source   string
	segments []segment
}

// Parse splits source into literal and expression segments and checks
// every expression for syntax errors.
func Parse(source string) (*Template, error) {
	t := &Template{source: source}

	rest := source
	for {
		start := strings.Index(rest, openDelim)
		if start < 0 {
			if rest != "" {
				t.segments = append(t.segments, segment{text: rest})
			}
			break
		}
		if start > 0 {
			t.segments = append(t.segments, segment{text: rest[:start]})
		}

		rest = rest[start+len(openDelim):]
		end := strings.Index(rest, closeDelim)
		if end < 0 {
			return nil, fmt.Errorf("template %q: unclosed %s", source, openDelim)
		}

		code := strings.TrimSpace(rest[:end])
		if code == "" {
			return nil, fmt.Errorf("template %q: empty expression", source)
		}
		if _, err := expr.Compile(code); err != nil {
			return nil, fmt.Errorf("template %q: %w", source, err)
		}
		t.segments = append(t.segments, segment{text: code, isExpr: true})
		rest = rest[end+len(closeDelim):]
	}

	return t, nil
}

// MustParse is like Parse but panics on error.
func MustParse(source string) *Template {
	t, err := Parse(source)
	if err != nil {
		panic(err)
	}
	return t
}

// String returns the original template source.
func (t *Template) String() string {
	return t.source
}

// Render evaluates the template against env.
func (t *Template) Render(env map[string]any) (string, error) {
	var b strings.Builder

	for _, seg := range t.segments {
		if !seg.isExpr {
			b.WriteString(seg.text)
			continue
		}

		program, err := expr.Compile(seg.text, expr.Env(env))
		if err != nil {
			return "", fmt.Errorf("compiling %q: %w", seg.text, err)
		}
		out, err := vm.Run(program, env)
		if err != nil {
			return "", fmt.Errorf("evaluating %q: %w", seg.text, err)
		}
		if out != nil {
			fmt.Fprint(&b, out)
		}
	}

	return b.String(), nil
}
