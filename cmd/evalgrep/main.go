// Package main provides the entry point for the evalgrep CLI tool.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/evalgrep/cmd/evalgrep/commands"
	"github.com/Sumatoshi-tech/evalgrep/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "evalgrep",
		Short: "Search evaluation-run archives for transcript messages",
		Long: `evalgrep searches the sample transcripts stored in evaluation-run
archives (.eval zip files) and prints the messages that match.

Commands:
  search    Search archives for matching messages
  validate  Check sample entries against the sample schema
  mcp       Serve search over the Model Context Protocol
  config    Print the effective configuration`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	global := commands.BindGlobalFlags(rootCmd)

	rootCmd.AddCommand(commands.NewSearchCommand(global))
	rootCmd.AddCommand(commands.NewValidateCommand(global))
	rootCmd.AddCommand(commands.NewMCPCommand(global))
	rootCmd.AddCommand(commands.NewConfigCommand(global))
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		var exitErr *commands.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}

		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
