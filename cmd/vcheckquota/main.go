package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/emersion/go-smtp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/migadu/vquota/config"
	"github.com/migadu/vquota/delivery"
	"github.com/migadu/vquota/logger"
	"github.com/migadu/vquota/pkg/errors"
	"github.com/migadu/vquota/pkg/metrics"
)

const program = "vcheckquota"

// Version information, injected at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stderr))
}

// run performs one quota check and returns the delivery exit status.
func run(args []string, stdin *os.File, stderr io.Writer) int {
	fs := flag.NewFlagSet(program, flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", config.DefaultConfigPath, "Path to TOML configuration file")
	softMaxSize := fs.Uint64("soft-maxsize", 0, "The maximum message size after soft quota is reached (default 4096)")
	fs.Uint64Var(softMaxSize, "a", 0, "Shorthand for --soft-maxsize")
	softMessage := fs.String("soft-message", "", "The path to the soft quota warning message (default no message)")
	fs.StringVar(softMessage, "m", "", "Shorthand for --soft-message")
	showVersion := fs.Bool("version", false, "Show version information and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `vmailmgr quota enforcement program

Usage:
  %s [options] < message

Options:
  -a, --soft-maxsize N    The maximum message size after soft quota is reached (default: 4096)
  -m, --soft-message PATH The path to the soft quota warning message (default: no message)
  --config PATH           Path to TOML configuration file (default: %s)
  --version               Show version information and exit

Environment:
  MAILDIR, VUSER_MSGSIZE, VUSER_MSGCOUNT, VUSER_HARDQUOTA, VUSER_SOFTQUOTA
  Limits are byte or message counts, or "-" for unlimited.

Warning: the soft-message is linked into the users maildir once for each
message that is received while the account is over its soft quota.  This may
result in multiple warning messages.
`, program, config.DefaultConfigPath)
	}

	if err := fs.Parse(args); err != nil {
		if stderrors.Is(err, flag.ErrHelp) {
			return errors.ExitSuccess
		}
		return errors.ExitTemporary
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "%s: unexpected arguments: %v\n", program, fs.Args())
		return errors.ExitTemporary
	}
	if *showVersion {
		fmt.Fprintf(stderr, "%s version %s (commit: %s, built at: %s)\n", program, version, commit, date)
		return errors.ExitSuccess
	}

	cfg := config.NewDefaultConfig()
	configWarnings, err := config.LoadConfigFromFile(*configPath, &cfg)
	if err != nil {
		if !os.IsNotExist(err) || isFlagSet(fs, "config") {
			return fail(stderr, errors.Temporary(fmt.Sprintf("failed to load configuration '%s'", *configPath), err))
		}
	}
	if isFlagSet(fs, "soft-maxsize") || isFlagSet(fs, "a") {
		cfg.Quota.SoftMaxSize = *softMaxSize
	}
	if isFlagSet(fs, "soft-message") || isFlagSet(fs, "m") {
		cfg.Quota.SoftMessage = *softMessage
	}
	if err := cfg.Validate(); err != nil {
		return fail(stderr, errors.Temporary("invalid configuration", err))
	}

	logFile, err := logger.Initialize(cfg.Logging)
	if err != nil {
		logger.Warn("Logging output unavailable", "error", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	for _, w := range configWarnings {
		logger.Warn("Configuration warning", "config", *configPath, "warning", w)
	}

	account, err := delivery.LoadAccountFromEnv()
	if err != nil {
		return fail(stderr, errors.Temporary("invalid account configuration", err))
	}

	checker, err := delivery.NewChecker(cfg.Quota)
	if err != nil {
		return fail(stderr, errors.Temporary("invalid configuration", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if timeout, _ := cfg.Quota.GetTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	_, err = checker.Check(ctx, account, delivery.FileMessage{File: stdin})

	if cfg.Metrics.Enabled() {
		if exportErr := metrics.Export(context.Background(), cfg.Metrics, prometheus.DefaultGatherer); exportErr != nil {
			logger.Warn("Metrics export failed", "error", exportErr)
		}
	}

	return fail(stderr, err)
}

// fail reports err the way qmail-local expects and returns the exit status.
// Rejections print only the text meant for the sender.
func fail(stderr io.Writer, err error) int {
	if err == nil {
		return errors.ExitSuccess
	}
	msg := err.Error()
	var smtpErr *smtp.SMTPError
	if stderrors.As(err, &smtpErr) {
		msg = smtpErr.Message
	}
	fmt.Fprintf(stderr, "%s: %s\n", program, msg)
	return errors.ExitCode(err)
}

func isFlagSet(fs *flag.FlagSet, name string) bool {
	isSet := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			isSet = true
		}
	})
	return isSet
}
