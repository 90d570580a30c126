package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
)

// ResultKind tells the handler which way a forward went.
type ResultKind int

const (
	// Delivered: 2xx and the collector did not flag an error.
	Delivered ResultKind = iota
	// Rejected: 2xx but the body says {"status":"error"}.
	Rejected
	// UpstreamError: non-2xx from the collector.
	UpstreamError
	// TimedOut: the deadline fired before the exchange finished.
	TimedOut
	// Failed: network errors, unreadable or malformed responses.
	Failed
)

func (k ResultKind) String() string {
	switch k {
	case Delivered:
		return "delivered"
	case Rejected:
		return "rejected"
	case UpstreamError:
		return "upstream_error"
	case TimedOut:
		return "timed_out"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("ResultKind(%d)", int(k))
	}
}

// Result is the outcome of one forward to the collector.
type Result struct {
	Kind       ResultKind
	StatusCode int
	// Body is the collector's response body, verbatim.
	Body []byte
	// Message is the collector's "message" field, when it sent one.
	Message string
	Err     error
}

// Forward posts the submission to the collector and classifies the answer.
// The call is bounded by the relay timeout; the timer and the connection are
// released on every path.
func (r *Relay) Forward(ctx context.Context, sub Submission) Result {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.upstreamURL, bytes.NewReader(sub))
	if err != nil {
		return Result{Kind: Failed, Err: fmt.Errorf("building upstream request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return failure(ctx, fmt.Errorf("sending to upstream: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(ctx, fmt.Errorf("reading upstream response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		res := Result{Kind: UpstreamError, StatusCode: resp.StatusCode, Body: body}
		if gjson.ValidBytes(body) {
			// Non-string messages (numbers, objects) come through as their JSON text.
			res.Message = gjson.GetBytes(body, "message").String()
		}
		return res
	}

	if !gjson.ValidBytes(body) {
		return Result{
			Kind:       Failed,
			StatusCode: resp.StatusCode,
			Body:       body,
			Err:        fmt.Errorf("upstream returned invalid JSON (status %d)", resp.StatusCode),
		}
	}

	parsed := gjson.ParseBytes(body)
	if parsed.Type == gjson.Null {
		return Result{
			Kind:       Failed,
			StatusCode: resp.StatusCode,
			Body:       body,
			Err:        fmt.Errorf("upstream returned a null body (status %d)", resp.StatusCode),
		}
	}
	res := Result{
		Kind:       Delivered,
		StatusCode: resp.StatusCode,
		Body:       body,
		Message:    parsed.Get("message").String(),
	}
	if status := parsed.Get("status"); parsed.IsObject() && status.Type == gjson.String && status.Str == "error" {
		res.Kind = Rejected
	}
	return res
}

// failure separates a fired deadline from every other transport error.
func failure(ctx context.Context, err error) Result {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Result{Kind: TimedOut, Err: err}
	}
	return Result{Kind: Failed, Err: err}
}
