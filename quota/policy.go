package quota

import (
	"math"

	"github.com/emersion/go-smtp"
)

// Verdict is the outcome of a quota evaluation.
type Verdict int

const (
	Accept Verdict = iota
	AcceptWithWarning
	RejectOversize
	RejectTooManyMessages
	RejectHardQuotaExceeded
	RejectSoftQuotaExceeded
)

func (v Verdict) String() string {
	switch v {
	case Accept:
		return "accept"
	case AcceptWithWarning:
		return "accept_with_warning"
	case RejectOversize:
		return "reject_oversize"
	case RejectTooManyMessages:
		return "reject_too_many_messages"
	case RejectHardQuotaExceeded:
		return "reject_hard_quota"
	case RejectSoftQuotaExceeded:
		return "reject_soft_quota"
	default:
		return "unknown"
	}
}

// Accepted reports whether the message may be delivered.
func (v Verdict) Accepted() bool {
	return v == Accept || v == AcceptWithWarning
}

// OverSoftQuota reports whether the verdict was reached with usage above
// the soft quota but within the hard quota.
func (v Verdict) OverSoftQuota() bool {
	return v == AcceptWithWarning || v == RejectSoftQuotaExceeded
}

// Rejection returns the permanent SMTP error sent back for a rejecting
// verdict, or nil when the message is accepted.
func (v Verdict) Rejection() *smtp.SMTPError {
	switch v {
	case RejectOversize:
		return &smtp.SMTPError{
			Code:         552,
			EnhancedCode: smtp.EnhancedCode{5, 3, 4},
			Message:      "Sorry, this message is larger than the current maximum message size limit.",
		}
	case RejectTooManyMessages:
		return &smtp.SMTPError{
			Code:         552,
			EnhancedCode: smtp.EnhancedCode{5, 2, 2},
			Message:      "Sorry, the person you sent this message has too many messages stored in the mailbox",
		}
	case RejectHardQuotaExceeded:
		return &smtp.SMTPError{
			Code:         552,
			EnhancedCode: smtp.EnhancedCode{5, 2, 2},
			Message:      "Message would exceed virtual user's disk quota.",
		}
	case RejectSoftQuotaExceeded:
		return &smtp.SMTPError{
			Code:         552,
			EnhancedCode: smtp.EnhancedCode{5, 2, 2},
			Message: "Sorry, your message cannot be delivered.\n" +
				"User's disk quota exceeded.\n" +
				"A small message will be delivered should you wish to inform this person.",
		}
	default:
		return nil
	}
}

// Decision is a verdict together with the figures it was based on.
type Decision struct {
	Verdict Verdict

	// Scanned is false when the verdict was reached without scanning the
	// mailbox; Usage and Count are zero then.
	Scanned bool

	// Usage is the mailbox size including the pending message.
	Usage uint64
	// Count is the message count including the pending message.
	Count uint64
}

// ScanFunc measures the mailbox being delivered to.
type ScanFunc func() (Usage, error)

// Evaluate applies policy to a pending message of msgSize bytes. scan is
// called at most once, and only when a storage quota is configured. Its
// error is returned unchanged.
//
// The hard quota always takes precedence over the soft quota. A soft
// quota without a hard quota acts as both. Above the soft quota only
// messages up to SoftMaxSize are still accepted, so the account holder
// can be reached with short notes and the warning itself.
func Evaluate(policy Policy, msgSize uint64, scan ScanFunc) (Decision, error) {
	if policy.MaxMessageSize.Exceeded(msgSize) {
		return Decision{Verdict: RejectOversize}, nil
	}

	if !policy.HasStorageQuota() {
		return Decision{Verdict: Accept}, nil
	}

	current, err := scan()
	if err != nil {
		return Decision{}, err
	}

	d := Decision{
		Scanned: true,
		Usage:   addSaturating(current.TotalBytes, msgSize),
		Count:   addSaturating(current.FileCount, 1),
	}

	if policy.MaxMessageCount.Exceeded(d.Count) {
		d.Verdict = RejectTooManyMessages
		return d, nil
	}

	hard := policy.HardQuota
	if !hard.IsSet() {
		if !policy.SoftQuota.IsSet() {
			d.Verdict = Accept
			return d, nil
		}
		hard = policy.SoftQuota
	}

	switch {
	case hard.Exceeded(d.Usage):
		d.Verdict = RejectHardQuotaExceeded
	case policy.SoftQuota.Exceeded(d.Usage):
		if msgSize > policy.SoftMaxSize {
			d.Verdict = RejectSoftQuotaExceeded
		} else {
			d.Verdict = AcceptWithWarning
		}
	default:
		d.Verdict = Accept
	}
	return d, nil
}

func addSaturating(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}
