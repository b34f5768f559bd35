package agent

import (
	"errors"
	"fmt"
)

// ErrEmptyQuestion is returned by Ask before any model call when the
// question is blank.
var ErrEmptyQuestion = errors.New("query cannot be empty")

// Kind classifies pipeline failures.
type Kind int

const (
	// MalformedResponse means the model reply was not a decodable JSON object.
	MalformedResponse Kind = iota + 1
	// DataShapingError means data_code failed to evaluate or produced no rows.
	DataShapingError
	// ChartBuildError means the shaped table did not fit the requested chart.
	ChartBuildError
	// AgentFailure covers everything else, mostly the model call itself.
	AgentFailure
)

func (k Kind) String() string {
	switch k {
	case MalformedResponse:
		return "MalformedResponse"
	case DataShapingError:
		return "DataShapingError"
	case ChartBuildError:
		return "ChartBuildError"
	case AgentFailure:
		return "AgentFailure"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Surfaced reports whether a failure of this kind replaces the answer.
// Shaping and build failures only cost the chart.
func (k Kind) Surfaced() bool {
	return k == MalformedResponse || k == AgentFailure
}

type Error struct {
	Kind Kind
	Err  error
	// Raw is the model reply, when one was received.
	Raw string
}

func (e *Error) Error() string {
	if e.Kind == MalformedResponse {
		return "LLM returned invalid JSON: " + e.Err.Error()
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain, or zero.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
