package main

import (
	"fmt"

	"github.com/arnavshah/secret-santa-api/pkg/fingerprint"
	"github.com/arnavshah/secret-santa-api/pkg/rules"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <roster.txt>",
		Short: "Check a roster for rule conflicts and feasibility",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := readRoster(args[0])
			if err != nil {
				return err
			}
			participants := r.Participants()

			if err := rules.ValidateRoster(participants); err != nil {
				return err
			}
			if err := rules.CheckFeasibility(participants); err != nil {
				return err
			}

			ruleCount := 0
			for _, p := range participants {
				ruleCount += len(p.Rules)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s Roster is valid\n", color.GreenString("✓"))
			fmt.Fprintf(out, "  participants: %d\n", len(participants))
			fmt.Fprintf(out, "  rules:        %d\n", ruleCount)
			fmt.Fprintf(out, "  fingerprint:  %s\n", fingerprint.Compute(participants))
			return nil
		},
	}
}
