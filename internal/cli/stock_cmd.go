package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/shopfloor/internal/alerts"
	"github.com/alexanderramin/shopfloor/internal/cli/formatter"
	"github.com/alexanderramin/shopfloor/internal/domain"
)

func newStockCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stock",
		Short: "Show material stock levels and alerts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			materials, err := app.Gateway.ListMaterials(cmd.Context())
			if err != nil {
				return err
			}
			return printStock(cmd, app, materials)
		},
	}
	cmd.AddCommand(newStockUpdateCmd(app))
	return cmd
}

func printStock(cmd *cobra.Command, app *App, materials []domain.Material) error {
	store := alerts.NewStore(alerts.WithClock(app.Now))
	if _, err := alerts.NewMonitor(store, app.Logger).EvaluateSnapshot(materials); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, formatter.FormatStock(materials))
	fmt.Fprint(out, formatter.FormatAlerts(store.List(), app.Now()))
	return nil
}

func newStockUpdateCmd(app *App) *cobra.Command {
	var available, minimum float64

	cmd := &cobra.Command{
		Use:   "update <material> --available <amount>",
		Short: "Record a new available amount (mm for bars, mm² for plates)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("available") && !flags.Changed("min") {
				return errors.New("nothing to update; pass --available and/or --min")
			}
			if available < 0 || minimum < 0 {
				return &domain.ValidationError{Field: "available", Reason: "must not be negative"}
			}

			ctx := cmd.Context()
			materials, err := app.Gateway.ListMaterials(ctx)
			if err != nil {
				return err
			}
			m, err := resolveMaterial(materials, args[0])
			if err != nil {
				return err
			}

			avail, threshold := &m.AvailableLength, &m.MinLength
			if m.Shape == domain.ShapePlate {
				avail, threshold = &m.AvailableArea, &m.MinArea
			}
			if flags.Changed("available") {
				*avail = &available
			}
			if flags.Changed("min") {
				*threshold = &minimum
			}
			if err := app.Gateway.UpdateMaterial(ctx, m); err != nil {
				return err
			}

			for i := range materials {
				if materials[i].ID == m.ID {
					materials[i] = m
				}
			}
			return printStock(cmd, app, materials)
		},
	}
	cmd.Flags().Float64Var(&available, "available", 0, "Available length or area")
	cmd.Flags().Float64Var(&minimum, "min", 0, "Reorder threshold")
	return cmd
}
