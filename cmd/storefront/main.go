package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Storefront API, admin back office and point of sale",
	Long: `storefront serves the shop's JSON API: catalog, cart, checkout, orders,
the admin back office, the point of sale and service dispatch.

Configuration is read from the environment, optionally seeded from a .env file.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
