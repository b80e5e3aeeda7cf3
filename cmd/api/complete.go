package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/folio-assist/backend/internal/service/ai"
)

func newCompleteCmd(opts *rootOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "complete [text...]",
		Short: "Send one message to the configured provider and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return fmt.Errorf("text is required")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			svc, err := ai.NewService(ctx, cfg)
			if err != nil {
				return err
			}

			reply, err := svc.Complete(ctx, text)
			if err != nil {
				log.Warn().Err(err).Msg("[complete] request failed")
				fmt.Fprintln(cmd.OutOrStdout(), cfg.Settings.FallbackText)
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 90*time.Second, "overall request timeout")
	return cmd
}
