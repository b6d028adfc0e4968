// Package answers turns upstream interview-answer payloads of unpredictable
// shape into an ordered list of question/answer pairs.
package answers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"resume-bridge/internal/sanitize"
)

const (
	// SegmentThreshold is the length above which a string value is treated
	// as a body of several answers rather than a single answer.
	SegmentThreshold = 500
	// FallbackLabel labels text that could not be split into questions.
	FallbackLabel = "Interview Response"
)

// Answer is one normalized question/answer pair.
type Answer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Envelope fields that hold the actual answers when the backend wraps its
// output. Text under a generic field is only unwrapped when it is long enough
// to hold several answers. An envelope is only entered when its siblings are
// metadata; otherwise the object is a question map.
var (
	answerKeys  = []string{"answers", "interview_answers"}
	genericKeys = []string{"data", "result", "response"}
	metaKeys    = map[string]bool{
		"success":    true,
		"message":    true,
		"status":     true,
		"model":      true,
		"id":         true,
		"request_id": true,
		"error":      true,
	}
)

var indexKey = regexp.MustCompile(`(?i)^\s*(?:q|question|answer|a)?[\s_\-]*(\d+)\s*$`)

// Normalize converts payload into sanitized pairs in discovery order.
// questions are the asked questions and label positional answers.
func Normalize(payload gjson.Result, questions []string) []Answer {
	payload = unwrap(payload)

	var raw []Answer
	switch {
	case payload.Type == gjson.String:
		raw = segment(payload.Str, FallbackLabel, questions)
	case payload.IsObject():
		payload.ForEach(func(key, value gjson.Result) bool {
			raw = append(raw, entry(relabel(key.String(), questions), value, questions)...)
			return true
		})
	case payload.IsArray():
		i := 0
		payload.ForEach(func(_, value gjson.Result) bool {
			if q, a, ok := pairObject(value); ok {
				if q == "" {
					q = positionalLabel(i, questions)
				}
				raw = append(raw, Answer{Question: q, Answer: a})
			} else {
				raw = append(raw, entry(positionalLabel(i, questions), value, questions)...)
			}
			i++
			return true
		})
	case payload.Type == gjson.Number || payload.Type == gjson.True || payload.Type == gjson.False:
		raw = []Answer{{Question: FallbackLabel, Answer: payload.String()}}
	}
	return assemble(raw)
}

// unwrap descends into well-known envelope fields holding the answers.
func unwrap(payload gjson.Result) gjson.Result {
	for depth := 0; depth < 3 && payload.IsObject(); depth++ {
		next, ok := envelope(payload)
		if !ok {
			break
		}
		payload = next
	}
	return payload
}

func envelope(obj gjson.Result) (gjson.Result, bool) {
	for _, k := range answerKeys {
		v := obj.Get(k)
		if (v.IsObject() || v.IsArray() || v.Type == gjson.String) && onlyMetadataBesides(obj, k) {
			return v, true
		}
	}
	for _, k := range genericKeys {
		v := obj.Get(k)
		if (v.IsObject() || v.IsArray() || (v.Type == gjson.String && long(v.Str))) && onlyMetadataBesides(obj, k) {
			return v, true
		}
	}
	return gjson.Result{}, false
}

// onlyMetadataBesides reports whether every field of obj other than key is a
// known metadata field or a flag, number or null.
func onlyMetadataBesides(obj gjson.Result, key string) bool {
	ok := true
	obj.ForEach(func(k, v gjson.Result) bool {
		name := k.String()
		if name == key || metaKeys[strings.ToLower(name)] {
			return true
		}
		switch v.Type {
		case gjson.Null, gjson.True, gjson.False, gjson.Number:
			return true
		}
		ok = false
		return false
	})
	return ok
}

// entry classifies one labelled value.
func entry(label string, value gjson.Result, questions []string) []Answer {
	switch {
	case value.Type == gjson.Null || !value.Exists():
		return nil
	case value.Type == gjson.String:
		return textEntry(label, value.Str, questions)
	case value.IsObject():
		if only, ok := single(value); ok {
			return entry(label, only, questions)
		}
		return textEntry(label, flatten(value), questions)
	case value.IsArray():
		return textEntry(label, flatten(value), questions)
	default:
		return []Answer{{Question: label, Answer: value.String()}}
	}
}

func textEntry(label, text string, questions []string) []Answer {
	if long(text) {
		return segment(text, label, questions)
	}
	return []Answer{{Question: label, Answer: text}}
}

func long(s string) bool {
	return utf8.RuneCountInString(s) > SegmentThreshold
}

// single returns the value of a one-entry object.
func single(obj gjson.Result) (gjson.Result, bool) {
	var only gjson.Result
	n := 0
	obj.ForEach(func(_, v gjson.Result) bool {
		only = v
		n++
		return n < 2
	})
	return only, n == 1
}

// flatten renders a nested value as text: a one-entry object collapses to its
// value, other objects become "key: value" lines.
func flatten(v gjson.Result) string {
	switch {
	case v.Type == gjson.Null:
		return ""
	case v.IsObject():
		if only, ok := single(v); ok {
			return flatten(only)
		}
		var lines []string
		v.ForEach(func(k, item gjson.Result) bool {
			if text := flatten(item); text != "" {
				lines = append(lines, k.String()+": "+text)
			}
			return true
		})
		return strings.Join(lines, "\n")
	case v.IsArray():
		var lines []string
		v.ForEach(func(_, item gjson.Result) bool {
			if text := flatten(item); text != "" {
				lines = append(lines, text)
			}
			return true
		})
		return strings.Join(lines, "\n")
	default:
		return v.String()
	}
}

// pairObject recognizes {"question": ..., "answer": ...} array elements.
func pairObject(v gjson.Result) (string, string, bool) {
	if !v.IsObject() {
		return "", "", false
	}
	var q, a gjson.Result
	v.ForEach(func(k, item gjson.Result) bool {
		switch strings.ToLower(k.String()) {
		case "question", "q":
			q = item
		case "answer", "a", "response":
			a = item
		}
		return true
	})
	if !a.Exists() {
		return "", "", false
	}
	return strings.TrimSpace(q.String()), flatten(a), true
}

// relabel maps index-like keys such as "1", "q2" or "answer_3" onto the asked
// question at that position.
func relabel(key string, questions []string) string {
	m := indexKey.FindStringSubmatch(key)
	if m == nil {
		return key
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return key
	}
	if n <= len(questions) && strings.TrimSpace(questions[n-1]) != "" {
		return questions[n-1]
	}
	return key
}

func positionalLabel(i int, questions []string) string {
	if i < len(questions) && strings.TrimSpace(questions[i]) != "" {
		return questions[i]
	}
	return fmt.Sprintf("Question %d", i+1)
}

// assemble trims and sanitizes pairs and drops those without an answer. Text
// that is only markup sanitizes to nothing and yields no pair.
func assemble(raw []Answer) []Answer {
	out := make([]Answer, 0, len(raw))
	for _, p := range raw {
		answer := sanitize.Text(strings.TrimSpace(p.Answer))
		if answer == "" {
			continue
		}
		question := sanitize.Text(strings.TrimSpace(p.Question))
		if question == "" {
			question = fmt.Sprintf("Question %d", len(out)+1)
		}
		out = append(out, Answer{Question: question, Answer: answer})
	}
	return out
}
