package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newRequeueCmd creates the 'requeue' subcommand. It recovers shards whose
// worker died by resetting stale queued records back to pending.
func newRequeueCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "requeue",
		Short: "Reset stale queued matches back to pending",
		Long: `Matches marked queued but not updated within the window belong to
shards whose worker never reported back. Resetting them to pending lets the
next export pick them up again. The attempt counter is not incremented; the
original queueing already paid for the attempt.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			cutoff := time.Now().UTC().Add(-olderThan)
			n, err := appInstance.Store().RequeueStale(cmd.Context(), cutoff)
			if err != nil {
				return fmt.Errorf("requeue stale: %w", err)
			}
			appInstance.Logger().Info("requeue complete",
				zap.Int("reset", n),
				zap.Duration("older_than", olderThan),
			)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 24*time.Hour, "minimum age of a queued record before it is reset")
	return cmd
}
