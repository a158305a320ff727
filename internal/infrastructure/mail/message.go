package mail

import (
	"context"
	"errors"
)

type Message struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// Gateway delivers one message. Implementations return a PermanentError for
// failures that a retry cannot fix.
type Gateway interface {
	Send(ctx context.Context, msg Message) error
}

// PermanentError marks a non-retriable failure (bad address, auth rejected).
type PermanentError struct{ msg string }

func NewPermanentError(msg string) PermanentError { return PermanentError{msg: msg} }

func (e PermanentError) Error() string { return e.msg }

func IsPermanent(err error) bool {
	var pe PermanentError
	return errors.As(err, &pe)
}
