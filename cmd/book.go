package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/example/court-booker/internal/artifacts"
	"github.com/example/court-booker/internal/browser"
	"github.com/example/court-booker/internal/config"
	"github.com/example/court-booker/internal/crypto"
	"github.com/example/court-booker/internal/domain/booking"
	"github.com/example/court-booker/internal/notify"
	"github.com/example/court-booker/internal/pipeline"
)

func newBookCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "book",
		Short: "Run one booking attempt against the club site",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.LogLevel)

			if cfg.Password == "" {
				aead, err := crypto.New(cfg.CredEncKey)
				if err != nil {
					return fmt.Errorf("CRED_ENC_KEY: %w", err)
				}
				cfg.Password, err = aead.DecryptString(cfg.PasswordEnc)
				if err != nil {
					return fmt.Errorf("decrypt CLUB_PASSWORD_ENC: %w", err)
				}
			}

			if dryRun {
				return printPlan(cfg)
			}

			ctx := cmd.Context()

			sess, err := browser.New(browser.Options{Headless: cfg.Headless, Logger: logger})
			if err != nil {
				return fmt.Errorf("start browser: %w", err)
			}
			defer sess.Close()

			sink := artifacts.NewSink(cfg.DebugDir, logger)
			notifier := notify.NewSMS(ctx, notify.SMSConfig{
				Enabled:  cfg.SMSEnabled,
				Phone:    cfg.SMSPhone,
				Region:   cfg.SMSRegion,
				SenderID: cfg.SMSSenderID,
			}, logger)

			run := pipeline.New(sess, pipeline.Config{
				BaseURL:  cfg.BaseURL,
				Username: cfg.Username,
				Password: cfg.Password,
				Request:  cfg.Request,
			}, logger, sink)

			res := run.Execute(ctx)
			logger.Info().
				Bool("booked", res.Booked).
				Bool("verified", res.Verified).
				Int("court", res.Court).
				Str("message", res.Message).
				Msg("booking run finished")

			// Notification failures are logged, never fatal.
			nctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := notifier.Send(nctx, res.Booked, res.Message); err != nil {
				logger.Error().Err(err).Msg("notification failed")
			}

			if !res.Booked {
				cmd.SilenceUsage = true
				return fmt.Errorf("booking failed: %s", res.Message)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate configuration and print the booking plan without touching the site")
	return cmd
}

func printPlan(cfg config.Config) error {
	target := cfg.Request.TargetDate(time.Now())
	label, err := booking.TimeLabel(cfg.Request.PreferredTime)
	if err != nil {
		return err
	}
	fmt.Printf("site:     %s\n", cfg.BaseURL)
	fmt.Printf("user:     %s\n", cfg.Username)
	fmt.Printf("date:     %s (%s)\n", target.Format("2006-01-02"), booking.DayTabLabel(time.Now(), cfg.Request.DaysAhead))
	fmt.Printf("time:     %s (variants: %s)\n", label, strings.Join(booking.TimeVariants(cfg.Request.PreferredTime), ", "))
	fmt.Printf("courts:   %v\n", cfg.Request.PreferredCourts)
	fmt.Printf("duration: %d min\n", cfg.Request.DurationMinutes)
	fmt.Printf("players:  %s\n", strings.Join(cfg.Request.Players, ", "))
	return nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger().Level(lvl)
}
