package consts

import "errors"

var (
	ErrConfigMissing = errors.New("required configuration value is not set")
	ErrConfigInvalid = errors.New("invalid configuration value")

	ErrMailboxScan  = errors.New("mailbox scan failed")
	ErrMessageSize  = errors.New("failed to measure message size")
	ErrNotifyFailed = errors.New("could not create symlink to soft quota warning message")
)
