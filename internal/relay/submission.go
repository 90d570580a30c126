package relay

import (
	"errors"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	ErrEmptyBody   = errors.New("empty request body")
	ErrInvalidJSON = errors.New("request body is not valid JSON")
	ErrNotObject   = errors.New("request body is not a JSON object")
	ErrNoFields    = errors.New("request body has no fields")
)

const redactedValue = "***"

// Submission is a form payload as received from the landing page. The relay
// never looks inside it beyond checking it is a non-empty object; the raw
// bytes are forwarded as-is so field order and values survive untouched.
type Submission []byte

// ParseSubmission validates body as a non-empty JSON object.
func ParseSubmission(body []byte) (Submission, error) {
	if len(body) == 0 {
		return nil, ErrEmptyBody
	}
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidJSON
	}

	parsed := gjson.ParseBytes(body)
	if !parsed.IsObject() {
		return nil, ErrNotObject
	}

	hasField := false
	parsed.ForEach(func(_, _ gjson.Result) bool {
		hasField = true
		return false
	})
	if !hasField {
		return nil, ErrNoFields
	}

	return Submission(body), nil
}

// Redacted returns a copy of the payload for logging with the given top-level
// fields masked. Fields that are absent are left alone.
func (s Submission) Redacted(fields []string) []byte {
	out := append([]byte(nil), s...)
	for _, field := range fields {
		path := escapePath(field)
		if !gjson.GetBytes(out, path).Exists() {
			continue
		}
		masked, err := sjson.SetBytes(out, path, redactedValue)
		if err != nil {
			continue
		}
		out = masked
	}
	return out
}

// escapePath treats field as a literal key rather than a gjson path.
func escapePath(field string) string {
	var b []byte
	for i := 0; i < len(field); i++ {
		switch field[i] {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%', ':':
			b = append(b, '\\')
		}
		b = append(b, field[i])
	}
	return string(b)
}
