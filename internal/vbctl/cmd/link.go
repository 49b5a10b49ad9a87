package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLinkCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "link <device-id>",
		Short: "Start linking a device and save its QR code",
		Long: `Begins a linking attempt for the device and saves the QR code
the user scans to authorize it. Each invocation supersedes any
previous pending attempt for the device.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := apiClient()
			if err != nil {
				return err
			}

			deviceID := args[0]
			if output == "" {
				output = deviceID + "-link.png"
			}

			if err := c.SaveQR(cmd.Context(), deviceID, output); err != nil {
				return err
			}

			fmt.Printf("QR code for %s saved to %s\n", deviceID, output)
			fmt.Println("Scan it with a phone to authorize the device.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output PNG path (default <device-id>-link.png)")
	return cmd
}
