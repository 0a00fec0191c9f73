package markup

import (
	"strconv"
	"strings"
)

// Template is one wiki template invocation located in page source. Span
// holds the exact original text including the outer braces; Body is the
// inner text after the template name.
type Template struct {
	Name string
	Span string
	Body string
}

// Field is one |key=value parameter. Values are raw wikitext; callers
// sanitize selectively because some fields (prize-pool transclusions)
// must survive untouched for a later resolution step.
type Field struct {
	Key   string
	Value string
}

// Invocation is a parsed template with ordered fields.
type Invocation struct {
	Name   string
	Fields []Field
	index  map[string]int
}

// Get returns the raw value for key. Lookup is case-insensitive because
// wiki authors are not consistent about parameter casing.
func (inv *Invocation) Get(key string) string {
	if inv == nil || inv.index == nil {
		return ""
	}
	idx, ok := inv.index[strings.ToLower(key)]
	if !ok {
		return ""
	}
	return inv.Fields[idx].Value
}

func (inv *Invocation) Has(key string) bool {
	if inv == nil || inv.index == nil {
		return false
	}
	_, ok := inv.index[strings.ToLower(key)]
	return ok
}

// FindTemplate locates the first invocation of name in text and returns
// it with its exact original span. Matching is done with a brace-depth
// scan: a naive regex breaks on any page with nested templates, which is
// the common case for infoboxes and prize-pool tables.
func FindTemplate(text, name string) (Template, bool) {
	start := indexTemplateStart(text, name, 0)
	if start < 0 {
		return Template{}, false
	}

	end, ok := matchingBraceEnd(text, start)
	if !ok {
		return Template{}, false
	}

	span := text[start:end]
	return Template{
		Name: name,
		Span: span,
		Body: templateBody(span),
	}, true
}

// FindAllTemplates returns every top-level invocation of name in order of
// appearance. Invocations nested inside an earlier hit are not reported
// separately; the scan resumes after each balanced span.
func FindAllTemplates(text, name string) []Template {
	var out []Template
	offset := 0
	for {
		start := indexTemplateStart(text, name, offset)
		if start < 0 {
			return out
		}
		end, ok := matchingBraceEnd(text, start)
		if !ok {
			return out
		}
		span := text[start:end]
		out = append(out, Template{
			Name: name,
			Span: span,
			Body: templateBody(span),
		})
		offset = end
	}
}

// ParseInvocation splits a template body into ordered fields. Separators
// are top-level pipes only: pipes inside nested templates or [[links]]
// belong to the value, so multi-line and nested parameter values survive
// intact. Parameters without an explicit key get positional keys "1",
// "2", ... following wiki convention.
func ParseInvocation(tpl Template) *Invocation {
	inv := &Invocation{
		Name:  tpl.Name,
		index: make(map[string]int),
	}

	positional := 0
	for _, segment := range splitTopLevel(tpl.Body) {
		key, value, explicit := splitKeyValue(segment)
		if !explicit {
			positional++
			key = strconv.Itoa(positional)
			value = strings.TrimSpace(segment)
		}
		if key == "" {
			continue
		}

		lower := strings.ToLower(key)
		if idx, exists := inv.index[lower]; exists {
			// Later duplicates win, matching wiki rendering behavior.
			inv.Fields[idx].Value = value
			continue
		}
		inv.index[lower] = len(inv.Fields)
		inv.Fields = append(inv.Fields, Field{Key: key, Value: value})
	}

	return inv
}

// ParseNamedInvocation is FindTemplate + ParseInvocation.
func ParseNamedInvocation(text, name string) (*Invocation, bool) {
	tpl, ok := FindTemplate(text, name)
	if !ok {
		return nil, false
	}
	return ParseInvocation(tpl), true
}

func indexTemplateStart(text, name string, offset int) int {
	if name == "" || offset >= len(text) {
		return -1
	}

	lowerText := strings.ToLower(text)
	lowerName := strings.ToLower(name)
	needle := "{{" + lowerName

	for from := offset; from < len(lowerText); {
		idx := strings.Index(lowerText[from:], needle)
		if idx < 0 {
			return -1
		}
		start := from + idx
		boundary := start + len(needle)
		// The name must end at a delimiter so "Match" does not hit
		// "Matchlist".
		if boundary >= len(text) || isNameBoundary(text[boundary]) {
			return start
		}
		from = start + 2
	}

	return -1
}

func isNameBoundary(c byte) bool {
	switch c {
	case '|', '}', '\n', '\r', '\t', ' ':
		return true
	default:
		return false
	}
}

// matchingBraceEnd walks from the opening "{{" counting nested pairs on
// two-character boundaries. Lone braces never change the depth, so
// unbalanced single braces elsewhere on the page cannot derail the span.
func matchingBraceEnd(text string, start int) (int, bool) {
	depth := 0
	for i := start; i < len(text)-1; {
		switch {
		case text[i] == '{' && text[i+1] == '{':
			depth++
			i += 2
		case text[i] == '}' && text[i+1] == '}':
			depth--
			i += 2
			if depth == 0 {
				return i, true
			}
		default:
			i++
		}
	}
	return 0, false
}

func templateBody(span string) string {
	inner := strings.TrimPrefix(span, "{{")
	inner = strings.TrimSuffix(inner, "}}")
	// Drop the template name up to the first top-level pipe.
	depth := 0
	linkDepth := 0
	for i := 0; i < len(inner); i++ {
		if i < len(inner)-1 {
			switch {
			case inner[i] == '{' && inner[i+1] == '{':
				depth++
				i++
				continue
			case inner[i] == '}' && inner[i+1] == '}':
				depth--
				i++
				continue
			case inner[i] == '[' && inner[i+1] == '[':
				linkDepth++
				i++
				continue
			case inner[i] == ']' && inner[i+1] == ']':
				linkDepth--
				i++
				continue
			}
		}
		if inner[i] == '|' && depth == 0 && linkDepth == 0 {
			return inner[i+1:]
		}
	}
	return ""
}

func splitTopLevel(body string) []string {
	if body == "" {
		return nil
	}

	var out []string
	depth := 0
	linkDepth := 0
	last := 0
	for i := 0; i < len(body); i++ {
		if i < len(body)-1 {
			switch {
			case body[i] == '{' && body[i+1] == '{':
				depth++
				i++
				continue
			case body[i] == '}' && body[i+1] == '}':
				depth--
				i++
				continue
			case body[i] == '[' && body[i+1] == '[':
				linkDepth++
				i++
				continue
			case body[i] == ']' && body[i+1] == ']':
				linkDepth--
				i++
				continue
			}
		}
		if body[i] == '|' && depth == 0 && linkDepth == 0 {
			out = append(out, body[last:i])
			last = i + 1
		}
	}
	out = append(out, body[last:])
	return out
}

func splitKeyValue(segment string) (key, value string, explicit bool) {
	depth := 0
	for i := 0; i < len(segment); i++ {
		if i < len(segment)-1 {
			switch {
			case segment[i] == '{' && segment[i+1] == '{':
				depth++
				i++
				continue
			case segment[i] == '}' && segment[i+1] == '}':
				depth--
				i++
				continue
			}
		}
		if segment[i] == '=' && depth == 0 {
			key = strings.TrimSpace(segment[:i])
			if key == "" || strings.ContainsAny(key, "{}[]") {
				return "", "", false
			}
			return key, strings.TrimSpace(segment[i+1:]), true
		}
	}
	return "", "", false
}
