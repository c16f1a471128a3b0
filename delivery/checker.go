// Package delivery runs the quota check for a single incoming message.
package delivery

import (
	"context"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/migadu/vquota/config"
	"github.com/migadu/vquota/helpers"
	"github.com/migadu/vquota/logger"
	"github.com/migadu/vquota/pkg/errors"
	"github.com/migadu/vquota/pkg/metrics"
	"github.com/migadu/vquota/quota"
)

// Message is the message being delivered. Only its size is ever looked
// at.
type Message interface {
	Size() (uint64, error)
}

// FileMessage is a message read from an open file, usually stdin.
type FileMessage struct {
	File *os.File
}

func (m FileMessage) Size() (uint64, error) {
	return helpers.MessageSize(m.File)
}

// SizedMessage is a message whose allocated size is already known.
type SizedMessage uint64

func (m SizedMessage) Size() (uint64, error) {
	return uint64(m), nil
}

// Result describes a completed check.
type Result struct {
	Alias       bool
	MessageSize uint64
	Decision    quota.Decision

	// WarningLink is the path of the soft quota warning placed in the
	// mailbox, if any.
	WarningLink string
}

// Checker decides whether messages may be delivered.
type Checker struct {
	SoftMaxSize        uint64
	SoftMessage        string
	NotifyOnSoftReject bool
	RetryInterval      time.Duration

	// Scan measures a mailbox. Defaults to quota.ScanMailbox.
	Scan func(ctx context.Context, maildir string) (quota.Usage, error)
	// Now is the clock used to name warning links. Defaults to time.Now.
	Now func() time.Time
}

// NewChecker returns a Checker configured from the site-wide tunables.
func NewChecker(cfg config.QuotaConfig) (*Checker, error) {
	interval, err := cfg.GetRetryInterval()
	if err != nil {
		return nil, err
	}
	return &Checker{
		SoftMaxSize:        cfg.SoftMaxSize,
		SoftMessage:        cfg.SoftMessage,
		NotifyOnSoftReject: cfg.NotifyOnSoftReject,
		RetryInterval:      interval,
		Scan:               quota.ScanMailbox,
		Now:                time.Now,
	}, nil
}

// Check decides the fate of msg for account.
//
// A nil error accepts the message. A rejection is returned as a permanent
// *smtp.SMTPError carrying the text for the sender. Anything that keeps
// the check from reaching a verdict is returned as a
// *errors.TemporaryError so that delivery is retried later.
func (c *Checker) Check(ctx context.Context, account Account, msg Message) (*Result, error) {
	if account.IsAlias() {
		metrics.RecordVerdict("alias")
		logger.DebugContext(ctx, "Recipient is an alias, skipping quota check")
		return &Result{Alias: true, Decision: quota.Decision{Verdict: quota.Accept}}, nil
	}

	log := logger.With("maildir", account.Maildir)

	size, err := msg.Size()
	if err != nil {
		metrics.RecordError("message_size")
		return nil, errors.Temporary("failed to stat message", err)
	}
	metrics.LastMessageSize.Set(float64(size))

	policy := quota.Policy{Config: account.Quota, SoftMaxSize: c.SoftMaxSize}
	decision, err := quota.Evaluate(policy, size, func() (quota.Usage, error) {
		return c.scan(ctx, account.Maildir)
	})
	if err != nil {
		metrics.RecordError("scan")
		log.ErrorContext(ctx, "Mailbox scan failed", "error", err)
		return nil, errors.Temporary("failed to size mailbox", err)
	}

	result := &Result{MessageSize: size, Decision: decision}
	metrics.LastWarningLinked.Set(0)

	if c.shouldNotify(decision.Verdict) {
		link, err := c.notifier(account.Maildir).Notify(ctx)
		if err != nil {
			metrics.RecordError("notify")
			log.ErrorContext(ctx, "Soft quota warning failed", "error", err)
			return nil, errors.Temporary("failed to link soft quota warning", err)
		}
		metrics.LastWarningLinked.Set(1)
		result.WarningLink = link
		log.InfoContext(ctx, "Soft quota warning linked", "link", link)
	}

	metrics.RecordVerdict(decision.Verdict.String())
	log.InfoContext(ctx, "Quota checked",
		"verdict", decision.Verdict.String(),
		"msg_size", size,
		"scanned", decision.Scanned,
		"usage", decision.Usage,
		"usage_human", humanize.IBytes(decision.Usage),
		"count", decision.Count,
		"hard_quota", account.Quota.HardQuota.String(),
		"soft_quota", account.Quota.SoftQuota.String(),
	)

	if rejection := decision.Verdict.Rejection(); rejection != nil {
		return result, rejection
	}
	return result, nil
}

func (c *Checker) shouldNotify(v quota.Verdict) bool {
	if c.SoftMessage == "" {
		return false
	}
	switch v {
	case quota.AcceptWithWarning:
		return true
	case quota.RejectSoftQuotaExceeded:
		return c.NotifyOnSoftReject
	default:
		return false
	}
}

func (c *Checker) notifier(maildir string) *quota.Notifier {
	n := quota.NewNotifier(maildir, c.SoftMessage)
	if c.RetryInterval > 0 {
		n.RetryInterval = c.RetryInterval
	}
	if c.Now != nil {
		n.Now = c.Now
	}
	return n
}

func (c *Checker) scan(ctx context.Context, maildir string) (quota.Usage, error) {
	scan := c.Scan
	if scan == nil {
		scan = quota.ScanMailbox
	}

	start := time.Now()
	usage, err := scan(ctx, maildir)
	metrics.LastScanDuration.Set(time.Since(start).Seconds())
	if err != nil {
		return quota.Usage{}, err
	}
	metrics.LastScanFiles.Set(float64(usage.FileCount))
	metrics.LastScanBytes.Set(float64(usage.TotalBytes))

	logger.DebugContext(ctx, "Mailbox scanned",
		"maildir", maildir,
		"files", usage.FileCount,
		"bytes", usage.TotalBytes,
		"size", humanize.IBytes(usage.TotalBytes),
		"duration", time.Since(start),
	)
	return usage, nil
}
