package status

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/stratastor/tether/config"
	"github.com/stratastor/tether/internal/constants"
	"github.com/stratastor/tether/pkg/httpclient"
	"github.com/stratastor/tether/pkg/lifecycle"
	"github.com/stratastor/tether/pkg/tether"
)

type statusResponse struct {
	Success bool          `json:"success"`
	Result  tether.Status `json:"result"`
}

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the watcher is running and its connection state",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, alive, err := lifecycle.ReadPID(config.PIDFilePath())
			if err != nil || !alive {
				fmt.Println("Tether watcher is not running")
				return nil
			}
			fmt.Printf("Tether watcher is running (PID: %d)\n", pid)

			cfg := config.GetConfig()
			if !cfg.Server.Enabled {
				return nil
			}

			cc := httpclient.NewClientConfig()
			cc.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
			cc.Timeout = 5 * time.Second
			client := httpclient.NewClient(cc)

			resp, err := client.NewRequest(httpclient.RequestConfig{
				Path:    constants.APIStatus,
				Context: cmd.Context(),
			}).Get()
			if err != nil {
				return fmt.Errorf("status API unreachable: %w", err)
			}
			if !resp.IsSuccess() {
				return fmt.Errorf("status API returned %s", resp.Status())
			}

			var out statusResponse
			if err := json.Unmarshal(resp.Body(), &out); err != nil {
				return fmt.Errorf("malformed status response: %w", err)
			}

			st := out.Result
			fmt.Printf("Backend:       %s\n", st.Backend)
			fmt.Printf("Connection:    %s (attempt %d/%d)\n",
				st.Connectivity.Phase, st.Connectivity.Attempt, st.Connectivity.MaxAttempts)
			fmt.Printf("Heartbeat:     %s every %s, %d consecutive failures\n",
				st.Heartbeat.State.Mode, st.Heartbeat.Interval, st.Heartbeat.State.ConsecutiveFailures)
			for _, f := range st.Feeds {
				state := "waiting"
				switch {
				case f.Error != "":
					state = "degraded: " + f.Error
				case f.HasData:
					state = "ok"
				}
				fmt.Printf("Feed %-14s %s, next in %s\n", f.Name+":", state, f.Schedule.NextDelay)
			}
			return nil
		},
	}
}
