package agent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"availability-dashboard/internal/chart"
)

const fence = "```"

// Answer is the decoded model reply.
type Answer struct {
	Explanation string
	// ChartSpec is the undecoded chart_spec value; nil when the reply
	// carries no chart.
	ChartSpec json.RawMessage
}

// StripFences removes a markdown code fence around s. The opening fence
// line (with any language tag) is dropped; the closing fence is dropped
// only when present.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, fence) {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = s[len(fence):]
	}
	if strings.HasSuffix(s, fence) {
		s = strings.TrimSpace(s[:len(s)-len(fence)])
	}
	return s
}

// ParseAnswer decodes a model reply into an Answer. Anything that is not a
// single JSON object after fence stripping is a MalformedResponse.
func ParseAnswer(raw string) (*Answer, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(StripFences(raw)), &fields); err != nil {
		return nil, &Error{Kind: MalformedResponse, Err: decodeError(err), Raw: raw}
	}
	if fields == nil {
		return nil, &Error{Kind: MalformedResponse, Err: errors.New("expected a JSON object, got null"), Raw: raw}
	}

	ans := &Answer{}
	if v, ok := fields["explanation"]; ok && !isNull(v) {
		if err := json.Unmarshal(v, &ans.Explanation); err != nil {
			return nil, &Error{Kind: MalformedResponse, Err: errors.New("explanation must be a string"), Raw: raw}
		}
	}
	if v, ok := fields["chart_spec"]; ok && !isEmpty(v) {
		ans.ChartSpec = v
	}
	return ans, nil
}

// Spec decodes the chart spec with defaults applied. It returns false when
// the answer has no chart.
func (a *Answer) Spec() (chart.Spec, bool, error) {
	if a.ChartSpec == nil {
		return chart.Spec{}, false, nil
	}
	var spec chart.Spec
	if err := json.Unmarshal(a.ChartSpec, &spec); err != nil {
		return chart.Spec{}, true, fmt.Errorf("chart_spec: %w", err)
	}
	return spec, true, nil
}

func decodeError(err error) error {
	var syn *json.SyntaxError
	if errors.As(err, &syn) {
		return fmt.Errorf("%s (at offset %d)", syn.Error(), syn.Offset)
	}
	var typ *json.UnmarshalTypeError
	if errors.As(err, &typ) {
		return fmt.Errorf("expected a JSON object, got %s", typ.Value)
	}
	return err
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// isEmpty reports whether v is a JSON value that means "no chart": null,
// false, zero, or an empty string, array or object.
func isEmpty(v json.RawMessage) bool {
	switch string(bytes.TrimSpace(v)) {
	case "null", "false", "0", `""`, "[]", "{}":
		return true
	}
	var obj map[string]json.RawMessage
	if json.Unmarshal(v, &obj) == nil && len(obj) == 0 {
		return true
	}
	var arr []json.RawMessage
	return json.Unmarshal(v, &arr) == nil && len(arr) == 0
}
