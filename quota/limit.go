// Package quota implements delivery-time quota enforcement for Maildir
// mailboxes.
//
// A check runs in three steps. ScanMailbox measures the allocated size
// and message count of a mailbox tree, Evaluate maps that usage plus the
// size of the incoming message to a Verdict, and a Notifier links a
// warning message into the mailbox when the soft quota has been crossed.
//
// # Limits
//
// Every quota value is a Limit, which is either unset (unlimited) or an
// unsigned number. The zero Limit is unlimited:
//
//	cfg := quota.Config{
//		HardQuota: quota.LimitOf(20 << 20),
//		SoftQuota: quota.LimitOf(15 << 20),
//	}
//
// # Size accounting
//
// All sizes are allocated 512-byte blocks times the block count, the same
// accounting the kernel uses for disk quotas.
package quota

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/migadu/vquota/consts"
)

// Limit is an optional quota value. The zero value is unlimited.
type Limit struct {
	value uint64
	set   bool
}

// Unlimited returns a Limit that never rejects anything.
func Unlimited() Limit {
	return Limit{}
}

// LimitOf returns a Limit set to v. Zero is a valid limit.
func LimitOf(v uint64) Limit {
	return Limit{value: v, set: true}
}

// IsSet reports whether the limit has a value.
func (l Limit) IsSet() bool {
	return l.set
}

// Value returns the limit value and whether it is set.
func (l Limit) Value() (uint64, bool) {
	return l.value, l.set
}

// Exceeded reports whether n is strictly above a set limit.
func (l Limit) Exceeded(n uint64) bool {
	return l.set && n > l.value
}

func (l Limit) String() string {
	if !l.set {
		return "unlimited"
	}
	return strconv.FormatUint(l.value, 10)
}

// ParseLimit parses a decimal unsigned integer, or the unlimited token
// ("-" or "unlimited") into a Limit.
func ParseLimit(s string) (Limit, error) {
	if s == consts.UnlimitedToken || strings.EqualFold(s, "unlimited") {
		return Unlimited(), nil
	}
	if s == "" || s[0] == '+' {
		return Limit{}, fmt.Errorf("%w: %q is not a valid number", consts.ErrConfigInvalid, s)
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return Limit{}, fmt.Errorf("%w: %q is not a valid number", consts.ErrConfigInvalid, s)
	}
	return LimitOf(v), nil
}

// Config holds the quota settings of a single account.
type Config struct {
	MaxMessageSize  Limit
	MaxMessageCount Limit
	HardQuota       Limit
	SoftQuota       Limit
}

// HasStorageQuota reports whether any limit requires the mailbox to be
// scanned.
func (c Config) HasStorageQuota() bool {
	return c.SoftQuota.IsSet() || c.HardQuota.IsSet() || c.MaxMessageCount.IsSet()
}

// Policy is the account configuration plus the site-wide soft quota grace
// size.
type Policy struct {
	Config

	// SoftMaxSize is the largest message accepted once usage is over the
	// soft quota.
	SoftMaxSize uint64
}

// NewPolicy returns a Policy for cfg with the default grace size.
func NewPolicy(cfg Config) Policy {
	return Policy{Config: cfg, SoftMaxSize: consts.DefaultSoftMaxSize}
}
