package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/shineum/slurpgen/internal/compose"
	"github.com/shineum/slurpgen/internal/config"
	"github.com/shineum/slurpgen/internal/delivery"
	"github.com/shineum/slurpgen/internal/delivery/mailgun"
	"github.com/shineum/slurpgen/internal/delivery/mbox"
	"github.com/shineum/slurpgen/internal/delivery/ses"
	"github.com/shineum/slurpgen/internal/delivery/smtp"
	"github.com/shineum/slurpgen/internal/delivery/stdout"
	"github.com/shineum/slurpgen/internal/driver"
	"github.com/shineum/slurpgen/internal/quote"
)

// sendFlags holds the values of the send command's flags. They override
// the loaded configuration only when set on the command line.
type sendFlags struct {
	host       string
	port       int
	from       string
	to         string
	attachment string
	count      int
	shapes     []string
	transport  string
	mboxPath   string
	noQuote    bool
	delay      time.Duration
}

func (f *sendFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.host, "host", "", "SMTP target host")
	fs.IntVarP(&f.port, "port", "p", 0, "SMTP target port")
	fs.StringVarP(&f.from, "from", "f", "", "envelope and header sender")
	fs.StringVarP(&f.to, "to", "t", "", "envelope and header recipient")
	fs.StringVarP(&f.attachment, "attachment", "a", "", "file attached to the attachment shapes")
	fs.IntVarP(&f.count, "count", "n", 0, "how many times plain-text and alternative are sent")
	fs.StringArrayVarP(&f.shapes, "shape", "s", nil, "shape to send, repeatable, in order (default all)")
	fs.StringVar(&f.transport, "transport", "", "delivery backend: smtp, stdout, mbox, ses, mailgun")
	fs.StringVar(&f.mboxPath, "mbox", "", "mbox file for the mbox transport")
	fs.BoolVar(&f.noQuote, "no-quote", false, "do not fetch quotes; use the fallback quote")
	fs.DurationVar(&f.delay, "delay", 0, "wait between sends")
}

// apply copies explicitly set flags into cfg.
func (f *sendFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	if fs.Changed("host") {
		cfg.Target.Host = f.host
	}
	if fs.Changed("port") {
		cfg.Target.Port = f.port
	}
	if fs.Changed("from") {
		cfg.Mail.From = f.from
	}
	if fs.Changed("to") {
		cfg.Mail.To = f.to
	}
	if fs.Changed("attachment") {
		cfg.Mail.Attachment = f.attachment
	}
	if fs.Changed("count") {
		cfg.Mail.Count = f.count
	}
	if fs.Changed("shape") {
		cfg.Mail.Shapes = f.shapes
	}
	if fs.Changed("transport") {
		cfg.Transport.Kind = f.transport
	}
	if fs.Changed("mbox") {
		cfg.Mbox.Path = f.mboxPath
		if !fs.Changed("transport") {
			cfg.Transport.Kind = config.TransportMbox
		}
	}
	if fs.Changed("no-quote") {
		cfg.Quote.Enabled = !f.noQuote
	}
	if fs.Changed("delay") {
		cfg.Mail.Delay = f.delay
	}
}

func newSendCmd() *cobra.Command {
	flags := &sendFlags{}
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Compose the configured shapes and deliver each over its own session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			flags.apply(cmd.Flags(), cfg)

			report, err := runSend(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "=== sent %d of %d messages\n", report.Sent, report.Planned)
			return nil
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

// runSend validates cfg, wires the transport and runs the plan.
func runSend(ctx context.Context, cfg *config.Config) (driver.Report, error) {
	if err := cfg.Validate(); err != nil {
		return driver.Report{}, &configError{err: err}
	}
	shapes, err := cfg.ParsedShapes()
	if err != nil {
		return driver.Report{}, &configError{err: err}
	}

	transport, err := buildTransport(ctx, cfg, os.Stdout)
	if err != nil {
		return driver.Report{}, &configError{err: err}
	}

	var quotes driver.QuoteSource
	if cfg.Quote.Enabled {
		quotes = quote.New(cfg.Quote.URL, cfg.Quote.Timeout)
	}

	d := driver.New(driver.Config{
		Composer: compose.New(compose.Config{
			From:           cfg.Mail.From,
			To:             cfg.Mail.To,
			Signature:      cfg.Mail.Signature,
			AttachmentPath: cfg.Mail.Attachment,
		}),
		Transport: transport,
		Quotes:    quotes,
		Fallback:  cfg.Quote.Fallback,
		Delay:     cfg.Mail.Delay,
	})

	slog.Info("starting slurpgen",
		"transport", transport.Name(),
		"from", cfg.Mail.From,
		"to", cfg.Mail.To,
		"shapes", cfg.Mail.Shapes,
		"count", cfg.Mail.Count,
		"quotes", cfg.Quote.Enabled,
	)

	return d.Run(ctx, driver.Plan(shapes, cfg.Mail.Count))
}

// buildTransport chooses the delivery backend based on configuration.
// stdoutWriter receives the stdout transport's dump.
func buildTransport(ctx context.Context, cfg *config.Config, stdoutWriter io.Writer) (delivery.Transport, error) {
	switch cfg.Transport.Kind {
	case config.TransportSMTP:
		slog.Info("using SMTP transport",
			"target", fmt.Sprintf("%s:%d", cfg.Target.Host, cfg.Target.Port),
			"helo", cfg.Target.Helo,
		)
		return smtp.New(smtp.Config{
			Host:    cfg.Target.Host,
			Port:    cfg.Target.Port,
			Helo:    cfg.Target.Helo,
			Timeout: cfg.Target.Timeout,
		}), nil

	case config.TransportStdout:
		slog.Info("using stdout transport")
		return stdout.NewWithWriter(stdoutWriter), nil

	case config.TransportMbox:
		t := mbox.New(cfg.Mbox.Path)
		slog.Info("using mbox transport", "path", t.Path())
		return t, nil

	case config.TransportSES:
		slog.Info("using AWS SES transport", "region", cfg.SES.Region)
		t, err := ses.New(ctx, ses.Config{
			Region:           cfg.SES.Region,
			AccessKeyID:      cfg.SES.AccessKeyID,
			SecretAccessKey:  cfg.SES.SecretAccessKey,
			ConfigurationSet: cfg.SES.ConfigurationSet,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create SES transport: %w", err)
		}
		return t, nil

	case config.TransportMailgun:
		slog.Info("using Mailgun transport", "domain", cfg.Mailgun.Domain)
		return mailgun.New(mailgun.Config{
			Domain:  cfg.Mailgun.Domain,
			APIKey:  cfg.Mailgun.APIKey,
			APIBase: cfg.Mailgun.APIBase,
		}), nil

	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport.Kind)
	}
}
