package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Persistent flags
	typesPath     string
	selectorsPath string
)

var rootCmd = &cobra.Command{
	Use:   "memberguard",
	Short: "Member access ruleset tooling",
	Long: `memberguard - member access ruleset tooling

Lint selector lists against a declared type graph and answer exposure
queries offline, without a running server. The same parser and policy
engine the server uses back both commands, so what lints clean here
compiles clean there.`,
	SilenceUsage:  true, // Don't show usage on errors
	SilenceErrors: true, // We handle errors ourselves
}

func init() {
	rootCmd.PersistentFlags().StringVar(&typesPath, "types", "types.json", "path to the type graph JSON document")
	rootCmd.PersistentFlags().StringVar(&selectorsPath, "selectors", "selectors.txt", "path to the selector list, one entry per line")

	rootCmd.AddCommand(lintCmd)
	rootCmd.AddCommand(checkCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
