package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dental-intake-bot/internal/config"
	"dental-intake-bot/internal/platform/telegram"
)

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify Telegram and storage credentials without serving",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.ValidateSink(); err != nil {
				return err
			}
			logger := newLogger(cfg)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			out := cmd.OutOrStdout()
			if cfg.TelegramBotToken != "" {
				me, err := telegram.NewClient(cfg.TelegramBotToken, cfg.TelegramAPIURL).GetMe(ctx)
				if err != nil {
					return fmt.Errorf("telegram: %w", err)
				}
				fmt.Fprintf(out, "telegram: @%s (id %d)\n", me.Username, me.ID)
			}

			switch cfg.Sink {
			case config.SinkPostgres:
				sink, closeSink, err := openSink(ctx, cfg, logger, false)
				if err != nil {
					return err
				}
				defer closeSink()
				c, err := sink.RecoverCounters(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "postgres: last No %d, last ID Rekam %d\n", c.LastSequence, c.LastRecordID)
			default:
				s, err := openSheets(ctx, cfg, logger)
				if err != nil {
					return err
				}
				st, err := s.Check(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "spreadsheet: %q (%s), sheets: %s\n", st.Title, st.Locale, strings.Join(st.Sheets, ", "))
				fmt.Fprintf(out, "sheets: last No %d, last ID Rekam %d\n", st.Counters.LastSequence, st.Counters.LastRecordID)
			}
			return nil
		},
	}
}
