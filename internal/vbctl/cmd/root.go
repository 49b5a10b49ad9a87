// Package cmd implements the voice bridge CLI commands
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/voicebridge/voicebridge/internal/vbctl/client"
	"github.com/voicebridge/voicebridge/internal/vbctl/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vbctl",
	Short: "Voice bridge control tool",
	Long: `vbctl is a command line tool for operating a voice bridge
deployment: linking devices, checking credential state, and forcing
token refreshes.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.vbctl/config.yaml)")
	rootCmd.PersistentFlags().String("server", "", "API server address")

	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newRefreshCmd())
	rootCmd.AddCommand(newLinkCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}

	if server, _ := rootCmd.PersistentFlags().GetString("server"); server != "" {
		cfg.Server = server
	}
}

// apiClient builds a client for the configured server
func apiClient() (*client.Client, error) {
	return client.NewClient(cfg.Server)
}
