// Package sanitize cleans text before it is persisted or returned to callers.
package sanitize

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	tagPattern    = regexp.MustCompile(`(?s)<\s*/?\s*[a-zA-Z!][^<>]*>`)
	blankRun      = regexp.MustCompile(`[ \t\f\v\p{Zs}]+`)
	manyNewlines  = regexp.MustCompile(`\n{3,}`)
	entityDecoder = strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#34;", `"`,
		"&#39;", "'",
		"&#x27;", "'",
		"&apos;", "'",
		"&#x2F;", "/",
		"&#47;", "/",
		"&nbsp;", " ",
	)
)

// Text strips markup, decodes the supported entity set and tidies whitespace.
// The transformation runs to a fixpoint, so Text(Text(s)) == Text(s).
func Text(s string) string {
	out := s
	for {
		next := pass(out)
		if next == out {
			return next
		}
		out = next
	}
}

func pass(s string) string {
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = entityDecoder.Replace(s)
	s = tagPattern.ReplaceAllString(s, "")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(blankRun.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = manyNewlines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
