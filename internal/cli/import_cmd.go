package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/shopfloor/internal/cli/formatter"
)

func newImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import resources, materials, pieces and tasks from a YAML seed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := app.Gateway.ImportSeedFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatImport(args[0], result))
			return nil
		},
	}
}
