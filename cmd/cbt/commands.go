package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/geocatalyst/exam-engine/internal/exam"
	"github.com/geocatalyst/exam-engine/internal/service"
)

func reviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "review <attempt-id>",
		Short: "Show the detailed review of an attempt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := setup(cmd)
			client, err := e.client()
			if err != nil {
				return err
			}
			detail, err := client.GetAttempt(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("load attempt: %w", err)
			}
			review, err := exam.BuildReview(detail)
			if err != nil {
				return fmt.Errorf("build review: %w", err)
			}
			printReview(cmd.OutOrStdout(), review)
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List attempts taken from this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := setup(cmd)
			store, err := e.history()
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), e.v.GetInt("limit"))
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), entries)
			return nil
		},
	}
	cmd.Flags().IntP("limit", "n", 20, "Number of attempts to show (0 = all)")
	return cmd
}

func leaderboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboard <test-id>",
		Short: "Show a test's leaderboard",
		Args:  cobra.ExactArgs(1),
		RunE:  runLeaderboard,
	}
	cmd.Flags().BoolP("watch", "w", false, "Refresh every 30 seconds until interrupted")
	return cmd
}

func runLeaderboard(cmd *cobra.Command, args []string) error {
	e := setup(cmd)
	client, err := e.client()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	show := func() error {
		lb, err := client.GetLeaderboard(ctx, args[0])
		if err != nil {
			return fmt.Errorf("load leaderboard: %w", err)
		}
		printLeaderboard(out, service.RenderLeaderboard(lb, time.Now()))
		return nil
	}
	if err := show(); err != nil || !e.v.GetBool("watch") {
		return err
	}

	tk := time.NewTicker(30 * time.Second)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tk.C:
			if err := show(); err != nil {
				e.log.Warn().Err(err).Msg("Leaderboard refresh failed")
			}
		}
	}
}
