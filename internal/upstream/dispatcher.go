package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"syscall"
	"time"

	"resume-bridge/internal/resumes"
	"resume-bridge/internal/shared/metrics"
	"resume-bridge/internal/shared/telemetry"
	"resume-bridge/internal/shared/util"
)

const maxResponseBytes = 5 << 20

// Field is an outbound string parameter. Blank values are never sent.
type Field struct {
	Name  string
	Value string
}

// Call is one bridge invocation.
type Call struct {
	Task      Task
	Resume    resumes.Descriptor
	Fields    []Field
	RequestID string
}

// Doer is the subset of *http.Client the Dispatcher needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Dispatcher sends calls to the generation backend. It performs exactly one
// attempt per call.
type Dispatcher struct {
	baseURL string
	apiKey  string
	specs   map[Task]TaskSpec
	client  Doer
}

// NewDispatcher constructs a Dispatcher. A nil client uses a plain
// *http.Client; timeouts are applied per call from the task spec.
func NewDispatcher(cfg Config, client Doer) *Dispatcher {
	if client == nil {
		client = &http.Client{}
	}
	return &Dispatcher{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		specs:   DefaultSpecs(cfg),
		client:  client,
	}
}

// Spec returns the task spec used for task.
func (d *Dispatcher) Spec(task Task) (TaskSpec, bool) {
	spec, ok := d.specs[task]
	return spec, ok
}

// Dispatch performs the call and classifies the outcome. Every error returned
// is a *Failure.
func (d *Dispatcher) Dispatch(ctx context.Context, call Call) (Payload, error) {
	spec, ok := d.specs[call.Task]
	if !ok {
		return Payload{}, Internal(fmt.Sprintf("unknown task %q", call.Task))
	}
	if d.baseURL == "" {
		return Payload{}, Internal("upstream base url not configured")
	}

	path, body, contentType, err := buildBody(spec, call)
	if err != nil {
		return Payload{}, Internal(err.Error())
	}

	callCtx, cancel := context.WithTimeout(ctx, spec.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, d.baseURL+path, body)
	if err != nil {
		return Payload{}, Internal(err.Error())
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}
	if call.RequestID != "" {
		req.Header.Set("X-Request-Id", call.RequestID)
	}

	start := time.Now()
	resp, err := d.client.Do(req)
	metrics.ObserveUpstreamDurationMs(metrics.SinceMillis(start))
	if err != nil {
		return Payload{}, transportFailure(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Payload{}, transportFailure(ctx, err)
	}

	telemetry.Debug("upstream.response", map[string]any{
		"task":         string(call.Task),
		"path":         path,
		"status":       resp.StatusCode,
		"content_type": resp.Header.Get("Content-Type"),
		"duration_ms":  metrics.SinceMillis(start),
		"request_id":   call.RequestID,
	})
	return Classify(spec, resp.StatusCode, resp.Header, raw)
}

// buildBody selects the wire variant from the resume descriptor.
func buildBody(spec TaskSpec, call Call) (string, io.Reader, string, error) {
	if call.Resume.Uploaded() {
		body, contentType, err := multipartBody(call.Fields, func(w *multipart.Writer) error {
			return writeFilePart(w, call.Resume)
		})
		return spec.FilePath, body, contentType, err
	}

	text := strings.TrimSpace(call.Resume.Text)
	if text == "" {
		return "", nil, "", errors.New("stored resume descriptor without text")
	}

	if spec.TextEncoding == EncodingJSON {
		payload := map[string]string{FieldResumeText: text}
		for _, f := range call.Fields {
			if v := strings.TrimSpace(f.Value); v != "" {
				payload[f.Name] = v
			}
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return "", nil, "", err
		}
		return spec.TextPath, bytes.NewReader(raw), "application/json", nil
	}

	body, contentType, err := multipartBody(call.Fields, func(w *multipart.Writer) error {
		return w.WriteField(FieldResumeText, text)
	})
	return spec.TextPath, body, contentType, err
}

func multipartBody(fields []Field, writeResume func(*multipart.Writer) error) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := writeResume(w); err != nil {
		return nil, "", err
	}
	for _, f := range fields {
		v := strings.TrimSpace(f.Value)
		if v == "" {
			continue
		}
		if err := w.WriteField(f.Name, v); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func writeFilePart(w *multipart.Writer, desc resumes.Descriptor) error {
	name, err := util.SanitizeFileName(desc.FileName)
	if err != nil {
		name = "resume"
	}
	contentType := strings.TrimSpace(desc.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, FieldResumeFile, name))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(desc.File)
	return err
}

// transportFailure maps errors around the outbound call onto stable messages.
// parent is the caller's context, used to tell cancellation from our timeout.
func transportFailure(parent context.Context, err error) *Failure {
	f := &Failure{Status: http.StatusServiceUnavailable, Detail: err.Error()}
	var netErr net.Error
	var dnsErr *net.DNSError
	var opErr *net.OpError
	switch {
	case errors.Is(parent.Err(), context.Canceled):
		f.Kind, f.Status, f.Message = KindCanceled, StatusClientClosedRequest, msgCanceled
	case errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()):
		f.Kind, f.Message = KindTimeout, msgTimeout
	case errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) || errors.As(err, &dnsErr) ||
		(errors.As(err, &opErr) && opErr.Op == "dial"):
		f.Kind, f.Message = KindUnreachable, msgUnreachable
	default:
		f.Kind, f.Message = KindNetwork, msgNetwork
	}
	return f
}
