package answers

import (
	"regexp"
	"strconv"
	"strings"

	"resume-bridge/internal/shared/telemetry"
)

// matcher finds question markers in free text. question extracts the
// question text from a submatch index slice.
type matcher struct {
	name     string
	re       *regexp.Regexp
	question func(text string, loc []int, questions []string) string
}

// matchers are tried in order; the first with at least one match wins.
var matchers = []matcher{
	{
		name:     "emphasized",
		re:       regexp.MustCompile(`(?:\*\*|__)\s*([^*_\n]+?\?)\s*(?:\*\*|__)`),
		question: func(text string, loc []int, _ []string) string { return text[loc[2]:loc[3]] },
	},
	{
		name:     "numbered",
		re:       regexp.MustCompile(`(?m)^[ \t]*(\d+)[.)][ \t]+([^\n]*\?)`),
		question: numberedQuestion,
	},
	{
		name:     "q_prefixed",
		re:       regexp.MustCompile(`(?mi)^[ \t]*Q(\d+)[ \t]*[:.][ \t]*([^\n]*)`),
		question: numberedQuestion,
	},
	{
		name:     "question_prefixed",
		re:       regexp.MustCompile(`(?mi)^[ \t]*Question[ \t]+(\d+)[ \t]*[:.][ \t]*([^\n]*)`),
		question: numberedQuestion,
	},
}

var answerMarker = regexp.MustCompile(`(?i)^(?:a\d*|answer(?:[ \t]*\d+)?)[ \t]*:[ \t]*`)

// numberedQuestion uses the text after the number, or the asked question at
// that position when the marker line carries no text.
func numberedQuestion(text string, loc []int, questions []string) string {
	q := strings.TrimSpace(text[loc[4]:loc[5]])
	if q != "" {
		return q
	}
	n, err := strconv.Atoi(text[loc[2]:loc[3]])
	if err == nil && n >= 1 && n <= len(questions) {
		return questions[n-1]
	}
	return ""
}

// segment splits text into pairs. It never returns an empty result for text
// that is not blank; label names the whole text when nothing can be split.
func segment(text, label string, questions []string) []Answer {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}
	for _, m := range matchers {
		locs := m.re.FindAllStringSubmatchIndex(text, -1)
		if len(locs) == 0 {
			continue
		}
		pairs := splitAt(text, locs, m, questions)
		telemetry.Debug("answers.segmented", map[string]any{
			"pattern": m.name,
			"matches": len(locs),
			"pairs":   len(pairs),
		})
		if len(pairs) > 0 {
			return pairs
		}
		return fallback(label, text)
	}
	if pairs := byLines(text); len(pairs) > 0 {
		return pairs
	}
	return fallback(label, text)
}

func fallback(label, text string) []Answer {
	return []Answer{{Question: label, Answer: text}}
}

// splitAt pairs each match with the text up to the next match.
func splitAt(text string, locs [][]int, m matcher, questions []string) []Answer {
	out := make([]Answer, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		q := strings.TrimSpace(m.question(text, loc, questions))
		a := stripAnswerMarker(strings.TrimSpace(text[loc[1]:end]))
		if q == "" || a == "" {
			continue
		}
		out = append(out, Answer{Question: q, Answer: a})
	}
	return out
}

func stripAnswerMarker(s string) string {
	return strings.TrimSpace(answerMarker.ReplaceAllString(s, ""))
}

// byLines is the last structured attempt: a line with a question mark opens a
// new question only while the current one has no answer yet. Every other line
// after the first question joins the current answer.
func byLines(text string) []Answer {
	var (
		out      []Answer
		question string
		answer   []string
		open     bool
	)
	flush := func() {
		if open && len(answer) > 0 {
			out = append(out, Answer{
				Question: question,
				Answer:   stripAnswerMarker(strings.Join(answer, "\n")),
			})
		}
	}
	for _, line := range strings.Split(text, "\n") {
		t := strings.TrimSpace(line)
		if strings.Contains(t, "?") && (!open || len(answer) == 0) {
			flush()
			question, answer, open = t, nil, true
			continue
		}
		if open && (t != "" || len(answer) > 0) {
			answer = append(answer, t)
		}
	}
	flush()
	return out
}
