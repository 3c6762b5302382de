package analytics

import (
	"errors"
	"fmt"
)

// Kind classifies analytics failures
type Kind int

const (
	// KindNetwork covers connection failures, timeouts and refused calls
	KindNetwork Kind = iota
	// KindHTTP is a non-2xx response; Status carries the code
	KindHTTP
	// KindDecode is a body that does not match the expected shape
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindHTTP:
		return "http"
	case KindDecode:
		return "decode"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ClientError is the typed failure returned by the client and decoders.
// Error() yields the human-readable message shown in a panel.
type ClientError struct {
	Kind     Kind
	Endpoint Endpoint
	Status   int
	Message  string
	Err      error
}

func (e *ClientError) Error() string {
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or KindNetwork for foreign errors
func KindOf(err error) Kind {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindNetwork
}

func networkError(ep Endpoint, msg string, err error) *ClientError {
	return &ClientError{Kind: KindNetwork, Endpoint: ep, Message: msg, Err: err}
}

func decodeError(ep Endpoint, err error) *ClientError {
	return &ClientError{
		Kind:     KindDecode,
		Endpoint: ep,
		Message:  fmt.Sprintf("unexpected response from %s: %v", ep, err),
		Err:      err,
	}
}
