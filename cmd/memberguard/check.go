package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/memberguard/memberguard/internal/policy"
	"github.com/memberguard/memberguard/internal/selector"
)

var (
	checkPolarity string
	checkTag      string
	checkContext  string
)

var checkCmd = &cobra.Command{
	Use:   "check <member>",
	Short: "Answer one exposure query offline",
	Long: `Check compiles the ruleset and answers whether a single member is
exposed. The member is given in selector syntax; --context sets the
type the access happens through (defaults to the member's own type).`,
	Example: `  # Is Foo.bar(int) exposed under the allow list?
  memberguard check "com.example.Foo.bar(int)"

  # Same method accessed through a subtype
  memberguard check --context com.example.SubFoo "com.example.Foo.bar(int)"

  # Deny list with a capability tag override
  memberguard check --polarity deny --tag unsafe "com.example.Foo.bar(int)"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		graph, lines, err := loadRuleset()
		if err != nil {
			return err
		}

		pol, err := policy.ParsePolarity(checkPolarity)
		if err != nil {
			return err
		}

		sels, err := selector.ParseLines(lines, graph)
		if err != nil {
			return fmt.Errorf("selector list: %w", err)
		}
		p := policy.NewListPolicy(sels, pol, checkTag, zap.NewNop())

		query, err := selector.Parse(args[0], graph)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		if query.Unresolved() {
			return fmt.Errorf("query: %w", query.Err())
		}

		contextType := query.UpperBound()
		if checkContext != "" {
			ct, ok := graph.ResolveType(checkContext)
			if !ok {
				return fmt.Errorf("unknown context type %q", checkContext)
			}
			contextType = ct
		}

		decision := p.ForType(contextType)
		var exposed bool
		var kind string
		switch {
		case query.Method() != nil:
			exposed = decision.IsMethodExposed(query.Method())
			kind = "method"
		case query.Constructor() != nil:
			exposed = decision.IsConstructorExposed(query.Constructor())
			kind = "constructor"
		case query.Field() != nil:
			exposed = decision.IsFieldExposed(query.Field())
			kind = "field"
		}

		verdict := "DENIED"
		if exposed {
			verdict = "EXPOSED"
		}
		fmt.Printf("%s: %s %s via %s (%s list)\n",
			verdict, kind, strings.TrimSpace(args[0]), contextType.Name(), pol)
		if !exposed {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkPolarity, "polarity", "allow", "list polarity: 'allow' or 'deny'")
	checkCmd.Flags().StringVar(&checkTag, "tag", "", "capability tag that overrides the list")
	checkCmd.Flags().StringVar(&checkContext, "context", "", "type the access happens through")
}
