// Command kernelctl is a small demonstration and diagnostic CLI for the
// kernel package: it runs a handful of canned task trees under a real
// Kernel and reports on what happened.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "kernelctl",
	Short:         "Run and inspect kernel task trees",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a kernel.yaml config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "kernelctl:", err)
		os.Exit(1)
	}
}
