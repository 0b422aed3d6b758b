package ddns

import (
	"errors"
	"fmt"
	"strings"
)

// Message is one {code, message} entry of a provider error payload.
type Message struct {
	Code    int
	Message string
}

func (m Message) String() string {
	return fmt.Sprintf("%d: %s", m.Code, m.Message)
}

// APIError is a structured rejection returned by the provider API.
type APIError struct {
	Op       string
	Messages []Message
	Err      error
}

func (e *APIError) Error() string {
	msgs := make([]string, 0, len(e.Messages))
	for _, m := range e.Messages {
		msgs = append(msgs, m.String())
	}
	return fmt.Sprintf("%s rejected: [%s]", e.Op, strings.Join(msgs, "; "))
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// TransportError is a failure that produced no API answer.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRejection reports whether err carries an API error payload.
func IsRejection(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// apiErrorer is implemented by the typed errors of cloudflare-go.
type apiErrorer interface {
	ErrorCodes() []int
	ErrorMessages() []string
}

// classify wraps err into an *APIError when the client returned a decoded
// error payload, or into a *TransportError otherwise.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	var tErr *TransportError
	if errors.As(err, &apiErr) || errors.As(err, &tErr) {
		return err
	}

	var ae apiErrorer
	if errors.As(err, &ae) {
		codes, texts := ae.ErrorCodes(), ae.ErrorMessages()
		e := &APIError{Op: op, Err: err}
		for i := 0; i < len(codes) || i < len(texts); i++ {
			var m Message
			if i < len(codes) {
				m.Code = codes[i]
			}
			if i < len(texts) {
				m.Message = texts[i]
			}
			e.Messages = append(e.Messages, m)
		}
		return e
	}

	return &TransportError{Op: op, Err: err}
}
