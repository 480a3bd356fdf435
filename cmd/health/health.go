package health

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/stratastor/tether/cmd/cmdutil"
)

func NewHealthCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe the backend once and report connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := cmdutil.Service(cmdutil.Logger("health"))
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			snap := svc.TestConnection(ctx)
			fmt.Printf("Backend:     %s\n", svc.Config().Backend.BaseURL)
			fmt.Printf("Connection:  %s\n", snap.Phase)
			if snap.Reason != "" {
				fmt.Printf("Reason:      %s\n", snap.Reason)
			}

			res := svc.HealthCheck(ctx)
			fmt.Printf("Heartbeat:   %s (status %d, %s)\n", res.Kind, res.StatusCode, res.Latency.Round(time.Millisecond))
			if !res.IsOK() {
				fmt.Printf("Error:       %s\n", res.ErrorString())
			}
			if d, ok := res.RetryAfter(); ok {
				fmt.Printf("Retry after: %s\n", d)
			}

			if !snap.IsConnected {
				return fmt.Errorf("backend unreachable")
			}
			return nil
		},
	}

	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 2*time.Minute, "Overall timeout for the probe")
	return cmd
}
