// Package config provides environment-variable-first configuration loading
// with optional YAML file fallback for the load generator and its sink.
package config

import (
	"errors"
	"fmt"
	"net/mail"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shineum/slurpgen/internal/compose"
	"github.com/shineum/slurpgen/internal/quote"
)

// Transport kinds.
const (
	TransportSMTP    = "smtp"
	TransportStdout  = "stdout"
	TransportMbox    = "mbox"
	TransportSES     = "ses"
	TransportMailgun = "mailgun"
)

// Config holds the complete application configuration.
type Config struct {
	Target    TargetConfig    `yaml:"target"`
	Mail      MailConfig      `yaml:"mail"`
	Quote     QuoteConfig     `yaml:"quote"`
	Transport TransportConfig `yaml:"transport"`
	SES       SESConfig       `yaml:"ses"`
	Mailgun   MailgunConfig   `yaml:"mailgun"`
	Mbox      MboxConfig      `yaml:"mbox"`
	Sink      SinkConfig      `yaml:"sink"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// TargetConfig is the SMTP endpoint under test.
type TargetConfig struct {
	Host    string        `yaml:"host"`
	Port    int           `yaml:"port"`
	Helo    string        `yaml:"helo"`
	Timeout time.Duration `yaml:"timeout"`
}

// MailConfig describes what gets sent.
type MailConfig struct {
	From       string        `yaml:"from"`
	To         string        `yaml:"to"`
	Signature  string        `yaml:"signature"`
	Attachment string        `yaml:"attachment"`
	Count      int           `yaml:"count"`
	Shapes     []string      `yaml:"shapes"`
	Delay      time.Duration `yaml:"delay"`
}

// QuoteConfig holds the quote-of-the-day source settings.
type QuoteConfig struct {
	URL      string        `yaml:"url"`
	Timeout  time.Duration `yaml:"timeout"`
	Fallback bool          `yaml:"fallback"`
	Enabled  bool          `yaml:"enabled"`
}

// TransportConfig selects the delivery backend.
type TransportConfig struct {
	Kind string `yaml:"kind"`
}

// SESConfig holds AWS SES configuration.
type SESConfig struct {
	Region           string `yaml:"region"`
	AccessKeyID      string `yaml:"access_key_id"`
	SecretAccessKey  string `yaml:"secret_access_key"`
	ConfigurationSet string `yaml:"configuration_set"`
}

// MailgunConfig holds Mailgun API configuration.
type MailgunConfig struct {
	Domain  string `yaml:"domain"`
	APIKey  string `yaml:"api_key"`
	APIBase string `yaml:"api_base"`
}

// MboxConfig holds the mbox transport output path.
type MboxConfig struct {
	Path string `yaml:"path"`
}

// SinkConfig holds the capture sink configuration.
type SinkConfig struct {
	Listen           string   `yaml:"listen"`
	Hostname         string   `yaml:"hostname"`
	RejectRecipients []string `yaml:"reject_recipients"`
	MaxMessageSize   int      `yaml:"max_message_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load loads configuration from environment variables with sensible defaults.
// Environment variables always take precedence.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	if err := cfg.applyEnvVars(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables. Returns an error if the
// specified file path does not exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables always override YAML values
	if err := cfg.applyEnvVars(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ParsedShapes returns the configured shape sequence.
func (c *Config) ParsedShapes() ([]compose.Shape, error) {
	return compose.ParseShapes(c.Mail.Shapes)
}

// Validate checks the settings a send run depends on.
func (c *Config) Validate() error {
	var errs []error

	if _, err := mail.ParseAddress(c.Mail.From); err != nil {
		errs = append(errs, fmt.Errorf("mail.from %q: %w", c.Mail.From, err))
	}
	if _, err := mail.ParseAddress(c.Mail.To); err != nil {
		errs = append(errs, fmt.Errorf("mail.to %q: %w", c.Mail.To, err))
	}
	if c.Mail.Count < 0 {
		errs = append(errs, fmt.Errorf("mail.count must not be negative, got %d", c.Mail.Count))
	}
	if c.Mail.Delay < 0 {
		errs = append(errs, fmt.Errorf("mail.delay must not be negative, got %s", c.Mail.Delay))
	}
	if len(c.Mail.Shapes) == 0 {
		errs = append(errs, errors.New("mail.shapes must name at least one shape"))
	} else if _, err := c.ParsedShapes(); err != nil {
		errs = append(errs, err)
	}

	switch c.Transport.Kind {
	case TransportSMTP:
		if c.Target.Host == "" {
			errs = append(errs, errors.New("target.host is required for the smtp transport"))
		}
		if c.Target.Port <= 0 || c.Target.Port > 65535 {
			errs = append(errs, fmt.Errorf("target.port out of range: %d", c.Target.Port))
		}
	case TransportStdout:
	case TransportMbox:
		if c.Mbox.Path == "" {
			errs = append(errs, errors.New("mbox.path is required for the mbox transport"))
		}
	case TransportSES:
		if c.SES.Region == "" {
			errs = append(errs, errors.New("ses.region is required for the ses transport"))
		}
	case TransportMailgun:
		if c.Mailgun.Domain == "" || c.Mailgun.APIKey == "" {
			errs = append(errs, errors.New("mailgun.domain and mailgun.api_key are required for the mailgun transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q (want one of %s)",
			c.Transport.Kind, strings.Join(TransportKinds(), ", ")))
	}

	return errors.Join(errs...)
}

// TransportKinds lists the accepted transport names.
func TransportKinds() []string {
	return []string{TransportSMTP, TransportStdout, TransportMbox, TransportSES, TransportMailgun}
}

// applyDefaults sets sensible default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.Target.Host = "127.0.0.1"
	c.Target.Port = 2500
	c.Target.Helo = "localhost"
	c.Target.Timeout = 30 * time.Second

	c.Mail.From = "someone@another.com"
	c.Mail.To = "bob@bobtestingmailslurper.com"
	c.Mail.Signature = compose.DefaultSignature
	c.Mail.Attachment = "./screenshot.png"
	c.Mail.Count = 5
	c.Mail.Shapes = compose.Names()

	c.Quote.URL = quote.DefaultURL
	c.Quote.Timeout = 10 * time.Second
	c.Quote.Fallback = true
	c.Quote.Enabled = true

	c.Transport.Kind = TransportSMTP
	c.Mbox.Path = "slurpgen.mbox"

	c.Sink.Listen = "127.0.0.1:2500"
	c.Sink.Hostname = "localhost"

	c.Logging.Level = "info"
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values; a value
// that does not parse is an error.
func (c *Config) applyEnvVars() error {
	var errs []error

	setString(&c.Target.Host, "TARGET_HOST")
	errs = append(errs, setInt(&c.Target.Port, "TARGET_PORT"))
	setString(&c.Target.Helo, "TARGET_HELO")
	errs = append(errs, setDuration(&c.Target.Timeout, "TARGET_TIMEOUT"))

	setString(&c.Mail.From, "MAIL_FROM")
	setString(&c.Mail.To, "MAIL_TO")
	setString(&c.Mail.Signature, "MAIL_SIGNATURE")
	setString(&c.Mail.Attachment, "ATTACHMENT_FILE")
	errs = append(errs, setInt(&c.Mail.Count, "MAIL_COUNT"))
	if v := os.Getenv("MAIL_SHAPES"); v != "" {
		c.Mail.Shapes = splitList(v)
	}
	errs = append(errs, setDuration(&c.Mail.Delay, "MAIL_DELAY"))

	setString(&c.Quote.URL, "QUOTE_URL")
	errs = append(errs, setDuration(&c.Quote.Timeout, "QUOTE_TIMEOUT"))
	errs = append(errs, setBool(&c.Quote.Fallback, "QUOTE_FALLBACK"))
	errs = append(errs, setBool(&c.Quote.Enabled, "QUOTE_ENABLED"))

	if v := os.Getenv("TRANSPORT"); v != "" {
		c.Transport.Kind = strings.ToLower(v)
	}

	setString(&c.SES.Region, "SES_REGION")
	setString(&c.SES.AccessKeyID, "SES_ACCESS_KEY_ID")
	setString(&c.SES.SecretAccessKey, "SES_SECRET_ACCESS_KEY")

	setString(&c.Mailgun.Domain, "MAILGUN_DOMAIN")
	setString(&c.Mailgun.APIKey, "MAILGUN_API_KEY")

	setString(&c.Mbox.Path, "MBOX_PATH")

	setString(&c.Sink.Listen, "SINK_LISTEN")
	setString(&c.Sink.Hostname, "SINK_HOSTNAME")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}

	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

// splitList splits a comma-separated value, dropping empty entries.
func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
