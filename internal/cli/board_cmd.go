package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/shopfloor/internal/cli/formatter"
	"github.com/alexanderramin/shopfloor/internal/contract"
	"github.com/alexanderramin/shopfloor/internal/domain"
	"github.com/alexanderramin/shopfloor/internal/session"
)

func newBoardCmd(app *App) *cobra.Command {
	var (
		status     domain.TaskStatus
		resourceID string
		pieceArg   string
	)

	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show the task board grouped by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			filter := contract.TaskFilter{ResourceID: resourceID, Status: status}
			if pieceArg != "" {
				pieces, err := app.Gateway.ListPieces(ctx)
				if err != nil {
					return err
				}
				p, err := resolvePiece(pieces, pieceArg)
				if err != nil {
					return err
				}
				filter.PieceID = p.ID
			}

			s, err := app.openSession(ctx, session.WithTaskFilter(filter))
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, formatter.FormatBoard(s.Board(), app.Now()))
			fmt.Fprint(out, formatter.FormatAlerts(s.Alerts().List(), app.Now()))
			return nil
		},
	}

	cmd.Flags().Var(newStatusFlag(&status), "status", "Only show one column (e.g. in_progress)")
	cmd.Flags().StringVar(&resourceID, "resource", "", "Only show tasks assigned to a resource ID")
	cmd.Flags().StringVar(&pieceArg, "piece", "", "Only show tasks of a piece (ID or reference)")
	return cmd
}
