package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a bridge failure.
type Kind string

const (
	KindTimeout           Kind = "upstream_timeout"
	KindUnreachable       Kind = "upstream_unreachable"
	KindNetwork           Kind = "upstream_network"
	KindCanceled          Kind = "canceled"
	KindApplication       Kind = "upstream_error"
	KindContractViolation Kind = "upstream_contract_violation"
	KindInternal          Kind = "internal"
)

// StatusClientClosedRequest is reported when the caller abandoned the request.
const StatusClientClosedRequest = 499

const (
	msgTimeout     = "The generation service took too long to respond. Please try again."
	msgUnreachable = "The generation service is currently unreachable. Please try again later."
	msgNetwork     = "A network error occurred while contacting the generation service."
	msgCanceled    = "The request was canceled."
	// MsgInvalidResponse is shown for contract violations; the raw body is only logged.
	MsgInvalidResponse = "Received an invalid response from the service."
	msgNonStructured   = "upstream returned a non-structured response"
)

// Failure is a classified, user-safe bridge failure. Message is safe to show;
// Detail, ContentType and BodyPreview are diagnostics.
type Failure struct {
	Kind        Kind
	Status      int
	Message     string
	Detail      string
	ContentType string
	BodyPreview string
}

func (f *Failure) Error() string {
	if f.Detail != "" {
		return fmt.Sprintf("%s (%d): %s: %s", f.Kind, f.Status, f.Message, f.Detail)
	}
	return fmt.Sprintf("%s (%d): %s", f.Kind, f.Status, f.Message)
}

// Diagnostics returns the non-production detail attached to a failure response.
func (f *Failure) Diagnostics() map[string]any {
	return map[string]any{
		"kind":         string(f.Kind),
		"status":       f.Status,
		"detail":       f.Detail,
		"content_type": f.ContentType,
		"body_preview": f.BodyPreview,
	}
}

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// ContractViolation builds the failure for a structurally unusable success payload.
func ContractViolation(detail string) *Failure {
	return &Failure{
		Kind:    KindContractViolation,
		Status:  http.StatusBadGateway,
		Message: MsgInvalidResponse,
		Detail:  detail,
	}
}

// Internal builds the failure for a bug on this side of the bridge.
func Internal(detail string) *Failure {
	return &Failure{
		Kind:    KindInternal,
		Status:  http.StatusInternalServerError,
		Message: "An internal error occurred. Please try again.",
		Detail:  detail,
	}
}
