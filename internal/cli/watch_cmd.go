package cli

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/shopfloor/internal/board"
	"github.com/alexanderramin/shopfloor/internal/cli/formatter"
	"github.com/alexanderramin/shopfloor/internal/domain"
	"github.com/alexanderramin/shopfloor/internal/notify"
	"github.com/alexanderramin/shopfloor/internal/session"
)

func newWatchCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow pushed task changes, stock alerts and notifications until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			feeds := app.feeds()
			if len(feeds) == 0 {
				return errors.New("no push source configured; set push.url or push.materials_file")
			}

			ctx := cmd.Context()
			opts := make([]session.Option, 0, len(feeds))
			for _, f := range feeds {
				opts = append(opts, session.WithFeed(f))
			}
			s, err := app.openSession(ctx, opts...)
			if err != nil {
				return err
			}
			defer s.Close()

			w := newWatchPrinter(cmd.OutOrStdout(), app)
			w.println(formatter.FormatBoard(s.Board(), app.Now()))
			w.print(formatter.FormatAlerts(s.Alerts().List(), app.Now()))

			w.seenAlerts(s.Alerts().List())
			defer s.Alerts().Subscribe(w.alerts)()
			defer s.Notifications().Subscribe(w.notifications)()
			defer s.Board().Subscribe(w.board)()

			<-ctx.Done()
			return nil
		},
	}
}

// watchPrinter turns store updates into one line per change. Listeners run
// on the goroutine that changed the store, so output is serialized.
type watchPrinter struct {
	app *App

	mu    sync.Mutex
	out   io.Writer
	seen  map[string]bool
	notes map[string]bool
	tasks map[string]domain.Task
}

func newWatchPrinter(out io.Writer, app *App) *watchPrinter {
	return &watchPrinter{
		app:   app,
		out:   out,
		seen:  make(map[string]bool),
		notes: make(map[string]bool),
	}
}

func (w *watchPrinter) print(s string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprint(w.out, s)
}

func (w *watchPrinter) println(s string) {
	w.print(s + "\n")
}

func (w *watchPrinter) seenAlerts(list []domain.Alert) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, a := range list {
		w.seen[a.ID] = true
	}
}

// alerts prints alerts not seen before, oldest first.
func (w *watchPrinter) alerts(list []domain.Alert) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := len(list) - 1; i >= 0; i-- {
		a := list[i]
		if w.seen[a.ID] {
			continue
		}
		w.seen[a.ID] = true
		fmt.Fprintf(w.out, "%s %s  %s\n",
			formatter.Dim(formatter.Clock(a.Timestamp, w.app.Now())),
			formatter.SeverityColor(a.Severity).Render(a.Title),
			a.Message,
		)
	}
}

func (w *watchPrinter) notifications(items []notify.Notification) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := len(items) - 1; i >= 0; i-- {
		n := items[i]
		if w.notes[n.ID] {
			continue
		}
		w.notes[n.ID] = true
		fmt.Fprintln(w.out, formatter.FormatNotification(n, w.app.Now()))
	}
}

// board prints tasks whose column, produced count or progress changed.
// The first snapshot only records the starting state.
func (w *watchPrinter) board(snap *board.Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()

	first := w.tasks == nil
	next := make(map[string]domain.Task, snap.Len())
	for _, status := range domain.BoardStatuses {
		for _, t := range snap.Column(status) {
			next[t.ID] = t
			prev, ok := w.tasks[t.ID]
			if first || !ok {
				continue
			}
			if prev.Status != t.Status || prev.Produced != t.Produced || prev.Progress != t.Progress {
				fmt.Fprintf(w.out, "%s %s  %s  %s\n",
					formatter.Dim(w.app.Now().Format("15:04")),
					formatter.Bold(t.Name),
					formatter.StatusPill(t.Status),
					formatter.RenderProgress(t.Progress, 10),
				)
			}
		}
	}
	w.tasks = next
}
