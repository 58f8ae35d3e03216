package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/arnavshah/secret-santa-api/internal/config"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "santa",
		Short: "Secret Santa - draw gift exchange assignments from the command line.",
		Long: `santa draws Secret Santa assignments from a text roster and prints one
private link per giver.

Roster format, one participant per line:
  name,email,rules
where rules is a ; separated list of =Name (must give to) and !Name (must not give to).

Configuration is read from the environment or a .env file:
  LINK_SECRET         secret used to seal receiver names (required for generate)
  PUBLIC_BASE_URL     origin of the reveal page
  API_MASTER_SECRET   secret used to sign API keys
  JWT_SECRET          secret used to sign tracking tokens`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newGenerateCmd(), newValidateCmd(), newKeygenCmd(), newTokenCmd())
	return root
}

func main() {
	config.LoadDotEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("✗")+" "+err.Error())
		os.Exit(1)
	}
}
