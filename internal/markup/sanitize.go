package markup

import (
	"regexp"
	"strings"

	"github.com/valyala/bytebufferpool"
)

var (
	pipedLinkRegex  = regexp.MustCompile(`\[\[([^\[\]|]*)\|([^\[\]]*)\]\]`)
	plainLinkRegex  = regexp.MustCompile(`\[\[([^\[\]]*)\]\]`)
	externalLink    = regexp.MustCompile(`\[https?://[^\s\]]+\s+([^\]]+)\]`)
	bareExternal    = regexp.MustCompile(`\[https?://[^\]]+\]`)
	lineBreakRegex  = regexp.MustCompile(`(?i)<br\s*/?>`)
	htmlCommentTag  = regexp.MustCompile(`(?s)<!--.*?-->`)
	htmlTagRegex    = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

// Replacements for the handful of meta-templates that carry plain text.
// Everything else between double braces is dropped wholesale: unknown
// templates rarely contain prose worth keeping.
var metaTemplateReplacements = map[string]string{
	"{{!}}":            "|",
	"{{BASEPAGENAME}}": "",
	"{{basepagename}}": "",
	"{{·}}":            " ",
}

// Sanitize strips residual wiki syntax from an extracted field value and
// returns plain text. It is idempotent: sanitizing already-clean text is
// a no-op.
func Sanitize(value string) string {
	if value == "" {
		return ""
	}

	out := value
	for needle, replacement := range metaTemplateReplacements {
		out = strings.ReplaceAll(out, needle, replacement)
	}

	out = stripTemplates(out)

	// Fold links innermost-first so [[a|[[b|c]]]]-style authoring errors
	// still converge.
	for {
		folded := pipedLinkRegex.ReplaceAllString(out, "$2")
		folded = plainLinkRegex.ReplaceAllString(folded, "$1")
		if folded == out {
			break
		}
		out = folded
	}
	out = externalLink.ReplaceAllString(out, "$1")
	out = bareExternal.ReplaceAllString(out, "")

	out = htmlCommentTag.ReplaceAllString(out, " ")
	out = lineBreakRegex.ReplaceAllString(out, " ")
	out = htmlTagRegex.ReplaceAllString(out, "")

	out = strings.ReplaceAll(out, "'''", "")
	out = strings.ReplaceAll(out, "''", "")
	out = strings.ReplaceAll(out, "&nbsp;", " ")

	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(out, " "))
}

// stripTemplates removes every remaining balanced {{...}} span. The scan
// reuses the brace-depth walk from template location, so nested templates
// disappear as one unit and lone braces are left alone.
func stripTemplates(value string) string {
	if !strings.Contains(value, "{{") {
		return value
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	for i := 0; i < len(value); {
		if i < len(value)-1 && value[i] == '{' && value[i+1] == '{' {
			if end, ok := matchingBraceEnd(value, i); ok {
				i = end
				continue
			}
		}
		_ = buf.WriteByte(value[i])
		i++
	}

	return buf.String()
}
