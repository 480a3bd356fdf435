package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/stratastor/tether/cmd/cmdutil"
)

func NewStatsCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the backend's keep-alive statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := cmdutil.Service(cmdutil.Logger("stats"))
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			stats, err := svc.KeepAliveStats(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Uptime:         %s\n", stats.UptimeDuration().Round(time.Second))
			fmt.Printf("Total requests: %d\n", stats.TotalRequests)
			if !stats.LastPing.IsZero() {
				fmt.Printf("Last ping:      %s\n", stats.LastPing.Format(time.RFC3339))
			}
			if !stats.StartedAt.IsZero() {
				fmt.Printf("Started at:     %s\n", stats.StartedAt.Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().DurationVarP(&timeout, "timeout", "t", time.Minute, "Request timeout")
	return cmd
}
