package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <device-id>",
		Short: "Force a credential refresh for a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient()
			if err != nil {
				return err
			}

			resp, err := c.Refresh(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Refreshed credentials for %s\n", resp.DeviceID)
			fmt.Printf("New expiry: %s\n", resp.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}
}
