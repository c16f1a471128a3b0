package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/migadu/vquota/consts"
	"github.com/migadu/vquota/helpers"
)

// DefaultConfigPath is read when no --config flag is given. Its absence is
// not an error.
const DefaultConfigPath = "/etc/vmailmgr/vcheckquota.toml"

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Output string `toml:"output"` // Log output: "stderr", "stdout", "syslog", or file path
	Format string `toml:"format"` // Log format: "json" or "console"
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", "error"
}

// QuotaConfig holds the site-wide quota tunables. Per-account limits come
// from the environment of each delivery.
type QuotaConfig struct {
	// SoftMaxSize is the largest message accepted once the soft quota is
	// exceeded. Default: 4096.
	SoftMaxSize uint64 `toml:"soft_maxsize"`

	// SoftMessage is the path of the warning message linked into mailboxes
	// over their soft quota. Empty disables warnings.
	SoftMessage string `toml:"soft_message"`

	// NotifyOnSoftReject also links the warning when a large message is
	// rejected for exceeding the soft quota.
	NotifyOnSoftReject bool `toml:"notify_on_soft_reject"`

	RetryInterval string `toml:"retry_interval"` // Wait between warning link attempts. Default: 1s
	Timeout       string `toml:"timeout"`        // Overall deadline for one check, "0s" or empty for none
}

// GetRetryInterval parses the warning link retry interval
func (q *QuotaConfig) GetRetryInterval() (time.Duration, error) {
	if q.RetryInterval == "" {
		return consts.DefaultRetryInterval, nil
	}
	d, err := helpers.ParseDuration(q.RetryInterval)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("retry_interval must be positive, got %s", q.RetryInterval)
	}
	return d, nil
}

// GetTimeout parses the check deadline. Zero means no deadline.
func (q *QuotaConfig) GetTimeout() (time.Duration, error) {
	if q.Timeout == "" {
		return 0, nil
	}
	d, err := helpers.ParseDuration(q.Timeout)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("timeout must not be negative, got %s", q.Timeout)
	}
	return d, nil
}

// MetricsConfig holds metrics export configuration. Each check is a short
// lived process, so metrics are written out at exit instead of served.
type MetricsConfig struct {
	Textfile       string `toml:"textfile"`        // node_exporter textfile collector output path
	PushgatewayURL string `toml:"pushgateway_url"` // Prometheus Pushgateway base URL
	Job            string `toml:"job"`             // Pushgateway job name
	PushTimeout    string `toml:"push_timeout"`    // Deadline for one push. Default: 2s
}

// GetPushTimeout parses the Pushgateway deadline
func (m *MetricsConfig) GetPushTimeout() (time.Duration, error) {
	if m.PushTimeout == "" {
		return consts.DefaultPushTimeout, nil
	}
	d, err := helpers.ParseDuration(m.PushTimeout)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("push_timeout must be positive, got %s", m.PushTimeout)
	}
	return d, nil
}

// Enabled reports whether any metrics export is configured.
func (m *MetricsConfig) Enabled() bool {
	return m.Textfile != "" || m.PushgatewayURL != ""
}

// Config holds all configuration for the application.
type Config struct {
	Logging LoggingConfig `toml:"logging"`
	Quota   QuotaConfig   `toml:"quota"`
	Metrics MetricsConfig `toml:"metrics"`
}

// NewDefaultConfig creates a Config struct with default values.
func NewDefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Output: "stderr",
			Format: "console",
			Level:  "warn", // stderr ends up in bounce messages
		},
		Quota: QuotaConfig{
			SoftMaxSize:   consts.DefaultSoftMaxSize,
			RetryInterval: "1s",
			Timeout:       "0s",
		},
		Metrics: MetricsConfig{
			Job:         "vcheckquota",
			PushTimeout: "2s",
		},
	}
}

// Validate checks values that cannot be validated while decoding.
func (c *Config) Validate() error {
	if _, err := c.Quota.GetRetryInterval(); err != nil {
		return fmt.Errorf("quota: %w", err)
	}
	if _, err := c.Quota.GetTimeout(); err != nil {
		return fmt.Errorf("quota: %w", err)
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging: unknown format %q (expected \"console\" or \"json\")", c.Logging.Format)
	}
	if _, err := c.Metrics.GetPushTimeout(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if c.Metrics.PushgatewayURL != "" && c.Metrics.Job == "" {
		return fmt.Errorf("metrics: job must be set when pushgateway_url is used")
	}
	return nil
}

// LoadConfigFromFile loads configuration from a TOML file and trims whitespace from all string fields
// This function is lenient with:
//   - Duplicate keys: the first occurrence is used
//   - Unknown keys: they are ignored
//
// Both are reported in the returned warnings rather than logged, since the
// logger is configured from the file being loaded. All other syntax errors
// are returned with hints.
func LoadConfigFromFile(configPath string, cfg *Config) ([]string, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var warnings []string
	metadata, err := toml.Decode(string(content), cfg)
	if err != nil {
		if !strings.Contains(err.Error(), "has already been defined") {
			return nil, enhanceConfigError(err)
		}

		deduped, duplicates := removeDuplicateKeysFromTOML(string(content))
		warnings = append(warnings, duplicates...)
		metadata, err = toml.Decode(deduped, cfg)
		if err != nil {
			return nil, enhanceConfigError(err)
		}
	}

	for _, key := range metadata.Undecoded() {
		warnings = append(warnings, fmt.Sprintf("unknown key '%s' ignored", key))
	}

	trimStringFields(reflect.ValueOf(cfg).Elem())
	return warnings, nil
}

// removeDuplicateKeysFromTOML comments out every repeated key of a section,
// keeping the first occurrence. It returns the cleaned content and one
// warning per dropped line.
func removeDuplicateKeysFromTOML(content string) (string, []string) {
	lines := strings.Split(content, "\n")
	seenKeys := make(map[string]int)
	result := make([]string, 0, len(lines))
	var (
		currentSection string
		warnings       []string
	)

	for lineNum, line := range lines {
		trimmed := strings.TrimSpace(line)

		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			result = append(result, line)
			continue
		}

		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			currentSection = strings.Trim(trimmed, "[] ")
			result = append(result, line)
			continue
		}

		if key, _, ok := strings.Cut(trimmed, "="); ok {
			fullKey := strings.TrimSpace(key)
			if currentSection != "" {
				fullKey = currentSection + "." + fullKey
			}
			if prevLine, exists := seenKeys[fullKey]; exists {
				warnings = append(warnings, fmt.Sprintf("duplicate key '%s' at line %d ignored (first occurrence at line %d)",
					fullKey, lineNum+1, prevLine+1))
				result = append(result, "# DUPLICATE IGNORED: "+line)
				continue
			}
			seenKeys[fullKey] = lineNum
		}

		result = append(result, line)
	}

	return strings.Join(result, "\n"), warnings
}

// enhanceConfigError provides more helpful error messages for common TOML parsing issues
func enhanceConfigError(err error) error {
	errMsg := err.Error()

	if strings.Contains(errMsg, "expected value but found \"f\"") ||
		strings.Contains(errMsg, "expected value but found \"t\"") {
		return fmt.Errorf("%w\n\nHINT: Invalid boolean value in your TOML configuration file.\n"+
			"In TOML, boolean values must be exactly 'true' or 'false' (lowercase, unquoted)", err)
	}

	if strings.Contains(errMsg, "incompatible types") && strings.Contains(errMsg, "uint64") {
		return fmt.Errorf("%w\n\nHINT: Sizes such as soft_maxsize are unquoted, non-negative integers in bytes", err)
	}

	if strings.Contains(errMsg, "expected") || strings.Contains(errMsg, "invalid") {
		return fmt.Errorf("%w\n\nHINT: There is a syntax error in your TOML configuration file.\n"+
			"Please check:\n"+
			"  - All strings are properly quoted\n"+
			"  - Section headers use [section] format\n"+
			"  - Boolean values are 'true' or 'false'", err)
	}

	return err
}

// trimStringFields recursively trims whitespace from all string fields in a struct
func trimStringFields(v reflect.Value) {
	if !v.IsValid() || !v.CanSet() {
		return
	}

	switch v.Kind() {
	case reflect.String:
		v.SetString(strings.TrimSpace(v.String()))
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			trimStringFields(v.Field(i))
		}
	case reflect.Ptr:
		if !v.IsNil() {
			trimStringFields(v.Elem())
		}
	}
}
