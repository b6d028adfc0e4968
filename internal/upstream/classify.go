package upstream

import (
	"bytes"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
)

const (
	// ShortMessageLimit is the body length below which a plain-text error body
	// is shown verbatim.
	ShortMessageLimit = 200
	// PreviewLimit bounds the raw body kept for diagnostics.
	PreviewLimit = 300

	msgErrorPage = "The server returned an error page"
)

// Payload is a successfully parsed upstream response.
type Payload struct {
	Body        []byte
	ContentType string
	Value       gjson.Result
}

// errorMessageFields are probed in order on structured error bodies.
var errorMessageFields = []string{"detail.message", "message", "detail", "error.message", "error"}

// Classify turns a raw HTTP outcome into a Payload or a *Failure.
func Classify(spec TaskSpec, status int, header http.Header, body []byte) (Payload, error) {
	contentType := ""
	if header != nil {
		contentType = header.Get("Content-Type")
	}
	preview := Preview(body)

	if status >= 200 && status < 300 {
		if len(bytes.TrimSpace(body)) == 0 || !gjson.ValidBytes(body) {
			f := ContractViolation(msgNonStructured)
			f.ContentType = contentType
			f.BodyPreview = preview
			return Payload{}, f
		}
		return Payload{
			Body:        body,
			ContentType: contentType,
			Value:       gjson.ParseBytes(body),
		}, nil
	}

	return Payload{}, &Failure{
		Kind:        KindApplication,
		Status:      status,
		Message:     ErrorMessage(body, spec.FailureMessage),
		ContentType: contentType,
		BodyPreview: preview,
	}
}

// ErrorMessage extracts a human-readable message from an error body of
// unknown shape: structured fields, then a markup page title or heading, then
// a short plain body, then the fallback.
func ErrorMessage(body []byte, fallback string) string {
	text := strings.TrimSpace(string(body))

	if text != "" && gjson.Valid(text) {
		if msg, ok := structuredMessage(gjson.Parse(text)); ok {
			return msg
		}
	} else if looksLikeMarkupDocument(text) {
		if heading, ok := markupHeading(text); ok {
			return "Server error: " + heading
		}
		return msgErrorPage
	}

	if text != "" && utf8.RuneCountInString(text) < ShortMessageLimit {
		return "Server error: " + text
	}
	return fallback
}

func structuredMessage(doc gjson.Result) (string, bool) {
	if !doc.IsObject() {
		return "", false
	}
	for _, path := range errorMessageFields {
		field := doc.Get(path)
		if !field.Exists() || field.Type == gjson.Null {
			continue
		}
		var msg string
		if field.Type == gjson.String {
			msg = field.Str
		} else {
			msg = field.Raw
		}
		if msg = strings.TrimSpace(msg); msg != "" {
			return msg, true
		}
	}
	return "", false
}

func looksLikeMarkupDocument(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "<html") || strings.Contains(lower, "<!doctype html")
}

// markupHeading returns the page title, else the first h1.
func markupHeading(text string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return "", false
	}
	if title := collapseSpace(doc.Find("title").First().Text()); title != "" {
		return title, true
	}
	if heading := collapseSpace(doc.Find("h1").First().Text()); heading != "" {
		return heading, true
	}
	return "", false
}

// Preview returns at most PreviewLimit runes of body.
func Preview(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	s := strings.ToValidUTF8(string(body), "�")
	if utf8.RuneCountInString(s) <= PreviewLimit {
		return s
	}
	return string([]rune(s)[:PreviewLimit])
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
