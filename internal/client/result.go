package client

import (
	"encoding/json"
	"fmt"
	"net/http"

	apierr "amtest/internal/errors"
	"amtest/pkg/contracts/domain"
)

// Result is the uniform outcome of every API call: the status code, the raw
// body for diagnostics, and best-effort typed views of the payload. The
// caller (a test) asserts on it; the client itself draws no conclusions.
type Result struct {
	StatusCode int
	Header     http.Header
	RawBody    string
}

// IsSuccess reports a 2xx status.
func (r *Result) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// DecodeInto unmarshals the body into v. Callers use it after asserting the
// expected status; on a decode failure the raw body is in the error for the
// test log.
func (r *Result) DecodeInto(v any) error {
	if err := json.Unmarshal([]byte(r.RawBody), v); err != nil {
		return fmt.Errorf("decode response (status %d, body %q): %w", r.StatusCode, r.RawBody, err)
	}
	return nil
}

// ErrorBody parses the remote's uniform error payload, or nil when the body
// is not that shape. Best effort: negative tests still get the status code
// and raw body when the server returns something unexpected.
func (r *Result) ErrorBody() *domain.APIErrorBody {
	var body domain.APIErrorBody
	if err := json.Unmarshal([]byte(r.RawBody), &body); err != nil || body.Code == "" {
		return nil
	}
	return &body
}

// Kind buckets the result into the remote failure taxonomy.
func (r *Result) Kind() apierr.Kind {
	return apierr.Classify(r.StatusCode, r.ErrorBody())
}
