package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/memberguard/memberguard/internal/selector"
	"github.com/memberguard/memberguard/internal/typegraph"
)

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Lint a selector list against a type graph",
	Long: `Lint parses every entry of a selector list against the declared type
graph and reports problems without stopping at the first one.

Malformed entries are errors: the server would reject the whole list.
Entries that are well formed but reference unknown types or members are
warnings: the server accepts them, they just never match anything.`,
	Example: `  memberguard lint --types types.json --selectors selectors.txt`,
	RunE: func(cmd *cobra.Command, args []string) error {
		graph, lines, err := loadRuleset()
		if err != nil {
			return err
		}

		hardErrors := 0
		unresolved := 0
		resolved := 0
		for i, line := range lines {
			if selector.IsIgnoredLine(line) {
				continue
			}
			s, err := selector.Parse(line, graph)
			if err != nil {
				var perr *selector.ParseError
				if errors.As(err, &perr) {
					fmt.Printf("line %d: error: %s\n", i+1, perr.Error())
				} else {
					fmt.Printf("line %d: error: %v\n", i+1, err)
				}
				hardErrors++
				continue
			}
			if s.Unresolved() {
				fmt.Printf("line %d: warning: %v (%s)\n", i+1, s.Err(), s.Text())
				unresolved++
				continue
			}
			resolved++
		}

		fmt.Printf("\n%d resolved, %d unresolved, %d errors\n", resolved, unresolved, hardErrors)
		if hardErrors > 0 {
			os.Exit(1)
		}
		return nil
	},
}

// loadRuleset reads the type graph and selector list files named by the
// persistent flags.
func loadRuleset() (*typegraph.Graph, []string, error) {
	rawGraph, err := os.ReadFile(typesPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading type graph: %w", err)
	}
	graph, err := typegraph.Load(rawGraph)
	if err != nil {
		return nil, nil, fmt.Errorf("loading type graph: %w", err)
	}

	rawSelectors, err := os.ReadFile(selectorsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading selector list: %w", err)
	}
	return graph, strings.Split(string(rawSelectors), "\n"), nil
}
