package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/shopfloor/internal/cli/formatter"
	"github.com/alexanderramin/shopfloor/internal/coordinator"
	"github.com/alexanderramin/shopfloor/internal/domain"
	"github.com/alexanderramin/shopfloor/internal/session"
)

func newTaskCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Inspect and update tasks",
	}
	cmd.AddCommand(
		newTaskShowCmd(app),
		newTaskMoveCmd(app),
		newTaskProduceCmd(app),
		newTaskCommentCmd(app),
		newTaskWorkCmd(app),
	)
	return cmd
}

type mutateFunc func(ctx context.Context, s *session.Session, task domain.Task) (*coordinator.Mutation, error)

// mutate opens a session, applies one change to a task and waits for the
// store to confirm or reject it, even when ctx is cancelled meanwhile. A
// rejected change is returned as an error after the outcome is printed.
func (a *App) mutate(cmd *cobra.Command, taskArg string, fn mutateFunc) error {
	ctx := cmd.Context()
	s, err := a.openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	task, err := resolveTask(s.Board(), taskArg)
	if err != nil {
		return err
	}
	m, err := fn(ctx, s, task)
	if err != nil {
		return err
	}
	// Resolution is bounded by the remote call timeout.
	<-m.Done()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, formatter.FormatMutation(m))
	if updated, ok := s.Board().Task(task.ID); ok && m.State() == coordinator.StateConfirmed {
		piece, _ := pieceFor(s, task.ID)
		fmt.Fprintln(out, formatter.FormatTask(updated, piece, a.Now()))
	}
	fmt.Fprint(out, formatter.FormatNotifications(s.Notifications().List(), a.Now()))
	return m.Err()
}

func pieceFor(s *session.Session, taskID string) (*domain.Piece, bool) {
	p, ok := s.Board().PieceForTask(taskID)
	if !ok {
		return nil, false
	}
	return &p, true
}

func newTaskShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <task>",
		Short: "Show one task (ID, ID prefix or name)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			task, err := resolveTask(s.Board(), args[0])
			if err != nil {
				return err
			}
			piece, _ := pieceFor(s, task.ID)
			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatTask(task, piece, app.Now()))
			return nil
		},
	}
}

func newTaskMoveCmd(app *App) *cobra.Command {
	var to domain.TaskStatus

	cmd := &cobra.Command{
		Use:   "move <task> --to <status>",
		Short: "Move a task to another board column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if to == "" {
				return errors.New("--to is required")
			}
			return app.mutate(cmd, args[0], func(ctx context.Context, s *session.Session, task domain.Task) (*coordinator.Mutation, error) {
				return s.MoveTask(ctx, task.ID, task.Status, to)
			})
		},
	}
	cmd.Flags().Var(newStatusFlag(&to), "to", "Target column: todo, in_progress, completed or on_hold")
	return cmd
}

func newTaskProduceCmd(app *App) *cobra.Command {
	var delta int

	cmd := &cobra.Command{
		Use:   "produce <task> --by <n>",
		Short: "Record produced pieces (negative to correct a count)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.mutate(cmd, args[0], func(ctx context.Context, s *session.Session, task domain.Task) (*coordinator.Mutation, error) {
				return s.AdjustProducedQuantity(ctx, task.ID, delta)
			})
		},
	}
	cmd.Flags().IntVar(&delta, "by", 1, "Pieces to add to the produced count")
	return cmd
}

func newTaskCommentCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "comment <task> <text>...",
		Short: "Add a comment to a task",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args[1:], " ")
			return app.mutate(cmd, args[0], func(ctx context.Context, s *session.Session, task domain.Task) (*coordinator.Mutation, error) {
				return s.AddComment(ctx, task.ID, text)
			})
		},
	}
}

func newTaskWorkCmd(app *App) *cobra.Command {
	var (
		duration time.Duration
		delta    int
	)

	cmd := &cobra.Command{
		Use:   "work <task> --for <duration> --by <n>",
		Short: "Time work on a task, then record the pieces produced",
		Long: "Runs the task timer for the given duration (or until interrupted) and then " +
			"records the produced pieces. The elapsed time is saved with that change.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if delta == 0 {
				return errors.New("--by must not be zero; elapsed time is saved with the produced count")
			}
			return app.mutate(cmd, args[0], func(ctx context.Context, s *session.Session, task domain.Task) (*coordinator.Mutation, error) {
				if err := s.StartTimer(task.ID); err != nil {
					return nil, err
				}
				timer := time.NewTimer(duration)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
				}
				s.PauseTimer(task.ID)
				// Submitted even when interrupted so the timed work is kept.
				return s.AdjustProducedQuantity(context.WithoutCancel(ctx), task.ID, delta)
			})
		},
	}
	cmd.Flags().DurationVar(&duration, "for", time.Minute, "How long to run the timer")
	cmd.Flags().IntVar(&delta, "by", 1, "Pieces produced during the timed work")
	return cmd
}
