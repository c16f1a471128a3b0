package delivery

import (
	"fmt"
	"os"

	"github.com/migadu/vquota/consts"
	"github.com/migadu/vquota/quota"
)

// Account is the recipient of the message being delivered.
type Account struct {
	// Maildir is the mailbox root. It is empty for aliases, which have no
	// mailbox and are never subject to quota.
	Maildir string
	Quota   quota.Config
}

// IsAlias reports whether the recipient has no mailbox.
func (a Account) IsAlias() bool {
	return a.Maildir == ""
}

// LookupFunc returns the value of a configuration variable and whether it
// is set. os.LookupEnv is one.
type LookupFunc func(key string) (string, bool)

// LoadAccountFromEnv reads the account from the process environment.
func LoadAccountFromEnv() (Account, error) {
	return LoadAccount(os.LookupEnv)
}

// LoadAccount reads MAILDIR and the VUSER_* limits through lookup. For an
// alias, signalled by an empty MAILDIR, the limits are not read at all.
func LoadAccount(lookup LookupFunc) (Account, error) {
	maildir, ok := lookup(consts.EnvMaildir)
	if !ok {
		return Account{}, fmt.Errorf("%w: %s is not set", consts.ErrConfigMissing, consts.EnvMaildir)
	}
	if maildir == "" {
		return Account{}, nil
	}

	account := Account{Maildir: maildir}
	limits := []struct {
		env   string
		limit *quota.Limit
	}{
		{consts.EnvMaxMsgSize, &account.Quota.MaxMessageSize},
		{consts.EnvMaxMsgCount, &account.Quota.MaxMessageCount},
		{consts.EnvHardQuota, &account.Quota.HardQuota},
		{consts.EnvSoftQuota, &account.Quota.SoftQuota},
	}
	for _, l := range limits {
		value, ok := lookup(l.env)
		if !ok {
			return Account{}, fmt.Errorf("%w: %s is not set", consts.ErrConfigMissing, l.env)
		}
		limit, err := quota.ParseLimit(value)
		if err != nil {
			return Account{}, fmt.Errorf("%s: %w", l.env, err)
		}
		*l.limit = limit
	}
	return account, nil
}
