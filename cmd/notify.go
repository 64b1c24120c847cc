package cmd

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/court-booker/internal/config"
	"github.com/example/court-booker/internal/notify"
)

// notify sends a test SMS so the SNS plumbing can be checked without
// running a booking.
func newNotifyCmd() *cobra.Command {
	var success bool

	cmd := &cobra.Command{
		Use:   "notify [message]",
		Short: "Send a test notification through the configured SMS channel",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.LogLevel)

			msg := "test notification from courtbot"
			if len(args) > 0 {
				msg = strings.Join(args, " ")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			notifier := notify.NewSMS(ctx, notify.SMSConfig{
				Enabled:  cfg.SMSEnabled,
				Phone:    cfg.SMSPhone,
				Region:   cfg.SMSRegion,
				SenderID: cfg.SMSSenderID,
			}, logger)
			return notifier.Send(ctx, success, msg)
		},
	}

	cmd.Flags().BoolVar(&success, "success", false, "send with the success subject instead of failure")
	return cmd
}
