// Package errors classifies the outcome of a quota check into the exit
// statuses understood by qmail-style delivery agents.
package errors

import (
	"errors"
	"fmt"

	"github.com/emersion/go-smtp"
)

// Exit statuses of a delivery program.
const (
	ExitSuccess   = 0   // deliver the message
	ExitPermanent = 100 // bounce the message
	ExitTemporary = 111 // keep the message queued and retry later
)

// TemporaryError reports a failure that must not decide the fate of the
// message, such as a bad configuration or an unreadable mailbox. The
// delivery is retried later.
type TemporaryError struct {
	Operation string
	Err       error
}

func (t *TemporaryError) Error() string {
	return fmt.Sprintf("%s: %v", t.Operation, t.Err)
}

func (t *TemporaryError) Unwrap() error {
	return t.Err
}

// Temporary wraps err as a TemporaryError. It returns nil for a nil err.
func Temporary(operation string, err error) error {
	if err == nil {
		return nil
	}
	return &TemporaryError{
		Operation: operation,
		Err:       err,
	}
}

// IsPermanent reports whether err is a permanent SMTP rejection.
func IsPermanent(err error) bool {
	var smtpErr *smtp.SMTPError
	if errors.As(err, &smtpErr) {
		return smtpErr.Code/100 == 5
	}
	return false
}

// ExitCode maps err to a delivery program exit status. Only permanent
// SMTP rejections bounce; every other error is retried.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case IsPermanent(err):
		return ExitPermanent
	default:
		return ExitTemporary
	}
}
