package version

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/stratastor/tether/internal/constants"
)

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show Tether version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Tether Version: %s\n", constants.Version)
			fmt.Printf("Commit: %s\n", constants.CommitSHA)
			fmt.Printf("Build Time: %s\n", constants.BuildTime)
		},
	}
}
