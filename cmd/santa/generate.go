package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/arnavshah/secret-santa-api/internal/config"
	"github.com/arnavshah/secret-santa-api/pkg/links"
	"github.com/arnavshah/secret-santa-api/pkg/matcher"
	"github.com/arnavshah/secret-santa-api/pkg/roster"
	"github.com/arnavshah/secret-santa-api/pkg/sealer"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func readRoster(path string) (*roster.Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}
	return roster.Parse(string(data), nil)
}

func newGenerateCmd() *cobra.Command {
	var (
		instructions string
		baseURL      string
		output       string
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "generate <roster.txt>",
		Short: "Draw an assignment and print one link per giver",
		Long: `Draws a Secret Santa assignment that honours every rule in the roster and
prints the links as CSV (Giver,Email,Link).

Examples:
  # Print links to stdout
  santa generate friends.txt

  # Write links to a file with gift instructions
  santa generate friends.txt --instructions "Budget 20 EUR" -o links.csv

  # Print the raw assignment with its fingerprint
  santa generate friends.txt --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}

			r, err := readRoster(args[0])
			if err != nil {
				return err
			}
			participants := r.Participants()

			assignment, err := matcher.Generate(participants, matcher.WithMaxSteps(cfg.MaxSearchSteps))
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(assignment)
			}

			s, err := sealer.New(cfg.LinkSecret)
			if err != nil {
				return err
			}
			if baseURL == "" {
				baseURL = cfg.PublicBaseURL
			}
			codec := links.NewCodec(baseURL, s)

			batch, err := links.ForAssignment(participants, assignment, links.Settings{Instructions: instructions})
			if err != nil {
				return err
			}
			encoded, encErr := codec.EncodeAll(cmd.Context(), batch)
			rows := links.Rows(batch, encoded)
			csvText, err := links.ExportCSV(rows)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if output != "" {
				if err := os.WriteFile(output, []byte(csvText), 0o600); err != nil {
					return fmt.Errorf("failed to write links: %w", err)
				}
			} else {
				fmt.Fprint(out, csvText)
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "%s %d links generated (fingerprint %s)\n",
				color.GreenString("✓"), len(rows), color.CyanString(assignment.Fingerprint))
			if encErr != nil {
				return fmt.Errorf("%d of %d links could not be encoded: %w", len(batch)-len(rows), len(batch), encErr)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&instructions, "instructions", "i", "", "instructions shown on every reveal page")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "origin of the reveal page (defaults to PUBLIC_BASE_URL)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the CSV to a file instead of stdout")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the assignment as JSON instead of links")
	return cmd
}
