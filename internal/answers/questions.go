package answers

import (
	"errors"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrNoQuestions is returned when the questions field holds no usable item.
var ErrNoQuestions = errors.New("at least one interview question is required")

var listBullet = regexp.MustCompile(`^(?:[-*•]|\d+[.)]|Q\d+[:.])\s*`)

// ParseQuestions normalizes the free-form questions field into an ordered
// list. Accepted forms: an array literal (JSON or single-quoted), one question
// per line, a comma-separated list, or a single sentence.
func ParseQuestions(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrNoQuestions
	}

	var items []string
	switch {
	case strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]"):
		items = arrayLiteral(raw)
	case strings.Contains(raw, "\n"):
		for _, line := range strings.Split(raw, "\n") {
			items = append(items, listBullet.ReplaceAllString(strings.TrimSpace(line), ""))
		}
	case singleSentence(raw):
		items = []string{raw}
	default:
		items = strings.Split(raw, ",")
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoQuestions
	}
	return out, nil
}

// singleSentence reports whether raw reads as one question even if it
// contains commas.
func singleSentence(raw string) bool {
	if !strings.Contains(raw, ",") {
		return true
	}
	return strings.Count(raw, "?") == 1 && strings.HasSuffix(raw, "?")
}

func arrayLiteral(raw string) []string {
	if gjson.Valid(raw) {
		var out []string
		gjson.Parse(raw).ForEach(func(_, v gjson.Result) bool {
			out = append(out, v.String())
			return true
		})
		return out
	}
	return splitQuoted(strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]"))
}

// splitQuoted splits a comma list whose items may be wrapped in single or
// double quotes. A quote only closes an item when followed by a comma or the
// end of the list, so apostrophes inside items survive.
func splitQuoted(body string) []string {
	runes := []rune(body)
	var (
		out   []string
		cur   strings.Builder
		quote rune
	)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote != 0 && r == quote && closesItem(runes[i+1:]):
			quote = 0
		case quote != 0:
			cur.WriteRune(r)
		case (r == '\'' || r == '"') && strings.TrimSpace(cur.String()) == "":
			cur.Reset()
			quote = r
		case r == ',':
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(out, cur.String())
}

func closesItem(rest []rune) bool {
	for _, r := range rest {
		switch r {
		case ' ', '\t', '\n':
			continue
		case ',':
			return true
		default:
			return false
		}
	}
	return true
}
