package quota

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/migadu/vquota/consts"
	"github.com/migadu/vquota/logger"
	"github.com/migadu/vquota/pkg/retry"
)

// Notifier places a soft quota warning into a mailbox by symlinking a
// prepared message into its new directory. The message is never copied.
//
// Link names are "<unix time>.<pid>.softquota-warning". When the name is
// taken, for example by a concurrent delivery to the same mailbox, the
// Notifier waits RetryInterval and tries again with a fresh timestamp
// until a free name is found. Existing entries are never replaced.
type Notifier struct {
	Maildir       string
	Message       string
	RetryInterval time.Duration

	// Now and PID default to time.Now and os.Getpid.
	Now func() time.Time
	PID int
}

// NewNotifier returns a Notifier linking message into maildir.
func NewNotifier(maildir, message string) *Notifier {
	return &Notifier{
		Maildir:       maildir,
		Message:       message,
		RetryInterval: consts.DefaultRetryInterval,
		Now:           time.Now,
		PID:           os.Getpid(),
	}
}

// Notify creates the warning link and returns its path. Only a name
// collision is retried; any other failure is returned wrapping
// consts.ErrNotifyFailed.
func (n *Notifier) Notify(ctx context.Context) (string, error) {
	now := n.Now
	if now == nil {
		now = time.Now
	}
	pid := n.PID
	if pid == 0 {
		pid = os.Getpid()
	}
	interval := n.RetryInterval
	if interval <= 0 {
		interval = consts.DefaultRetryInterval
	}

	newDir := filepath.Join(n.Maildir, consts.MaildirNew)
	var link string
	err := retry.WithRetry(ctx, func() error {
		link = filepath.Join(newDir, linkName(now(), pid))
		err := os.Symlink(n.Message, link)
		if err == nil {
			return nil
		}
		if errors.Is(err, fs.ErrExist) {
			logger.Debug("Soft quota warning name taken", "link", link)
			return err
		}
		return retry.Stop(err)
	}, retry.ConstantBackoffConfig(interval))
	if err != nil {
		return "", fmt.Errorf("%w: %w", consts.ErrNotifyFailed, err)
	}
	return link, nil
}

func linkName(t time.Time, pid int) string {
	return strconv.FormatInt(t.Unix(), 10) + "." + strconv.Itoa(pid) + consts.WarningLinkSuffix
}
