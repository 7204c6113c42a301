package api

import "fmt"

const defaultSystemCodeFloor = 500000

// Kind classifies a pipeline failure.
type Kind int

const (
	KindTransport Kind = iota
	KindAuth
	KindBusiness
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindBusiness:
		return "business"
	default:
		return "transport"
	}
}

// Error is the typed failure surfaced by the request pipeline. Code holds
// the envelope code for business failures and the HTTP status otherwise.
type Error struct {
	Kind    Kind
	Code    int
	Message string

	err             error
	systemCodeFloor int
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s failure (code=%d): %s: %v", e.Kind, e.Code, e.Message, e.err)
	}
	return fmt.Sprintf("%s failure (code=%d): %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.err
}

// System reports whether the failure belongs in the unexpected band a host
// should log or report, as opposed to an expected, descriptive business
// failure it can simply display.
func (e *Error) System() bool {
	if e.Kind != KindBusiness {
		return true
	}
	floor := e.systemCodeFloor
	if floor <= 0 {
		floor = defaultSystemCodeFloor
	}
	return e.Code >= floor
}
