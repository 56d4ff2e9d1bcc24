package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/shopfloor/internal/board"
	"github.com/alexanderramin/shopfloor/internal/coordinator"
	"github.com/alexanderramin/shopfloor/internal/domain"
)

const boardProgressBarWidth = 10

// FormatBoard renders every board column as a table, in column order.
// Empty columns are listed with a placeholder line.
func FormatBoard(store *board.Store, now time.Time) string {
	snap := store.Snapshot()
	var b strings.Builder

	for i, status := range domain.BoardStatuses {
		tasks := snap.Column(status)
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("%s %s\n", StatusPill(status), Dim(fmt.Sprintf("(%d)", len(tasks)))))
		if len(tasks) == 0 {
			b.WriteString(Dim("  no tasks") + "\n")
			continue
		}

		headers := []string{"ID", "TASK", "PIECE", "PRODUCED", "PROGRESS", "SPENT", "DUE"}
		rows := make([][]string, 0, len(tasks))
		for _, t := range tasks {
			var piece *domain.Piece
			pieceLabel := Dim("--")
			if p, ok := store.PieceForTask(t.ID); ok {
				piece = &p
				pieceLabel = StylePurple.Render(p.Reference)
			}
			rows = append(rows, []string{
				TruncID(t.ID),
				Bold(t.Name),
				pieceLabel,
				fmt.Sprintf("%d/%d", t.Produced, domain.ProductionTarget(t, piece)),
				RenderProgress(t.Progress, boardProgressBarWidth),
				spent(t),
				DueDate(t.DueDate, now, t.Status == domain.StatusCompleted),
			})
		}
		b.WriteString(RenderTable(headers, rows))
	}

	return RenderBox(fmt.Sprintf("Board (%d tasks)", snap.Len()), b.String())
}

func spent(t domain.Task) string {
	text := FormatHours(t.SpentTime)
	if t.EstimatedTime <= 0 {
		return text
	}
	label := fmt.Sprintf("%s / %s", text, FormatHours(t.EstimatedTime))
	if t.SpentTime > t.EstimatedTime {
		return StyleRed.Render(label)
	}
	return label
}

// FormatTask renders the detail view of one task.
func FormatTask(t domain.Task, piece *domain.Piece, now time.Time) string {
	var b strings.Builder
	line := func(label, value string) {
		b.WriteString(Dim(fmt.Sprintf("%-10s", label)) + " " + value + "\n")
	}

	line("Status", StatusPill(t.Status))
	if piece != nil {
		line("Piece", fmt.Sprintf("%s %s  %s", StylePurple.Render(piece.Reference), piece.Name,
			RenderProgress(piece.Progress, boardProgressBarWidth)))
	}
	line("Produced", fmt.Sprintf("%d/%d", t.Produced, domain.ProductionTarget(t, piece)))
	line("Progress", RenderProgress(t.Progress, boardProgressBarWidth))
	line("Spent", spent(t))
	line("Due", DueDate(t.DueDate, now, t.Status == domain.StatusCompleted))
	if t.ActualFinishDate != nil {
		line("Finished", t.ActualFinishDate.Format("Jan 2, 2006 15:04"))
	}
	if len(t.CommentIDs) > 0 {
		line("Comments", fmt.Sprintf("%d", len(t.CommentIDs)))
	}
	if t.Description != "" {
		b.WriteString("\n" + t.Description + "\n")
	}
	return RenderBox(t.Name, strings.TrimRight(b.String(), "\n"))
}

// FormatMutation reports how a mutation resolved.
func FormatMutation(m *coordinator.Mutation) string {
	switch m.State() {
	case coordinator.StateConfirmed:
		return StyleGreen.Render("✔ "+describe(m)) + Dim(" confirmed")
	case coordinator.StateRolledBack:
		return StyleRed.Render("✖ "+describe(m)+" rolled back") + "\n  " + Dim(m.Err().Error())
	default:
		return StyleYellow.Render("… "+describe(m)) + Dim(" pending")
	}
}

func describe(m *coordinator.Mutation) string {
	switch m.Kind {
	case coordinator.KindMove:
		return "Move"
	case coordinator.KindProduce:
		return "Quantity change"
	case coordinator.KindComment:
		return "Comment"
	default:
		return string(m.Kind)
	}
}
