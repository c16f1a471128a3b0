package consts

import "time"

// BlockSize is the unit st_blocks is expressed in, independent of the
// filesystem's preferred I/O block size.
const BlockSize = 512

// DefaultSoftMaxSize is the largest message still accepted once the soft
// quota has been exceeded.
const DefaultSoftMaxSize = 4096

// DefaultRetryInterval is the pause between attempts to place a warning
// link after a name collision.
const DefaultRetryInterval = time.Second

// DefaultPushTimeout bounds the metrics push that follows every check.
const DefaultPushTimeout = 2 * time.Second

// WarningLinkSuffix terminates the name of every soft quota warning link.
const WarningLinkSuffix = ".softquota-warning"

// Maildir subdirectories.
const (
	MaildirCur = "cur"
	MaildirNew = "new"
	MaildirTmp = "tmp"
)

// UnlimitedToken is the value that marks a quota as not set.
const UnlimitedToken = "-"

// Environment variables carrying the per-account quota settings.
const (
	EnvMaildir     = "MAILDIR"
	EnvMaxMsgSize  = "VUSER_MSGSIZE"
	EnvMaxMsgCount = "VUSER_MSGCOUNT"
	EnvHardQuota   = "VUSER_HARDQUOTA"
	EnvSoftQuota   = "VUSER_SOFTQUOTA"
)
