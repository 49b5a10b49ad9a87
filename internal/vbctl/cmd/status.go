package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <device-id>",
		Short: "Show a device's linking and token state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient()
			if err != nil {
				return err
			}

			status, err := c.DeviceStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Device:      %s\n", status.DeviceID)
			fmt.Printf("Linked:      %t\n", status.Linked)
			fmt.Printf("Token valid: %t\n", status.TokenValid)
			if status.ExpiresAt != nil {
				fmt.Printf("Expires:     %s\n", status.ExpiresAt.Format(time.RFC3339))
			}
			if status.Scopes != "" {
				fmt.Printf("Scopes:      %s\n", status.Scopes)
			}
			if status.LastUpdated != nil {
				fmt.Printf("Updated:     %s\n", status.LastUpdated.Format(time.RFC3339))
			}
			return nil
		},
	}
}
