package main

import (
	"github.com/spf13/cobra"

	"github.com/shineum/slurpgen/internal/sink"
)

func newSinkCmd() *cobra.Command {
	var (
		listen   string
		hostname string
		rejects  []string
	)

	cmd := &cobra.Command{
		Use:   "sink",
		Short: "Run a local SMTP capture server that prints what it receives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("listen") {
				cfg.Sink.Listen = listen
			}
			if flags.Changed("hostname") {
				cfg.Sink.Hostname = hostname
			}
			if flags.Changed("reject-rcpt") {
				cfg.Sink.RejectRecipients = rejects
			}

			server := sink.New(sink.ServerConfig{
				ListenAddr:       cfg.Sink.Listen,
				Hostname:         cfg.Sink.Hostname,
				Handler:          sink.NewPrinterWithWriter(cmd.OutOrStdout()),
				RejectRecipients: cfg.Sink.RejectRecipients,
				MaxMessageSize:   cfg.Sink.MaxMessageSize,
			})

			// Blocks until the context is cancelled by a signal.
			if err := server.ListenAndServe(cmd.Context()); err != nil {
				return &configError{err: err}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "address to listen on (default 127.0.0.1:2500)")
	cmd.Flags().StringVar(&hostname, "hostname", "", "hostname announced in the greeting")
	cmd.Flags().StringSliceVar(&rejects, "reject-rcpt", nil, "recipients to refuse with 550; @domain matches a whole domain")
	return cmd
}
