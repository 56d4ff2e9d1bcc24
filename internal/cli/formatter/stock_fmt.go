package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/shopfloor/internal/domain"
	"github.com/alexanderramin/shopfloor/internal/notify"
	"github.com/alexanderramin/shopfloor/internal/service"
)

// FormatStock renders the material inventory with its stock levels and a
// summary line counting critical and low materials.
func FormatStock(materials []domain.Material) string {
	if len(materials) == 0 {
		return RenderBox("Stock", Dim("No materials recorded."))
	}

	headers := []string{"MATERIAL", "TYPE", "SHAPE", "REMAINING", "LEVEL"}
	rows := make([][]string, 0, len(materials))
	var critical, low int
	for _, m := range materials {
		level := domain.ClassifyStock(m)
		switch level {
		case domain.StockCritical:
			critical++
		case domain.StockLow:
			low++
		}
		rows = append(rows, []string{
			Bold(m.Name),
			m.Type,
			Dim(string(m.Shape)),
			domain.RemainingStock(m),
			StockIndicator(level),
		})
	}

	var b strings.Builder
	b.WriteString(RenderTable(headers, rows))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s, %s, %s\n",
		StyleRed.Render(fmt.Sprintf("%d Critical", critical)),
		StyleYellow.Render(fmt.Sprintf("%d Low", low)),
		StyleGreen.Render(fmt.Sprintf("%d OK", len(materials)-critical-low)),
	))
	return RenderBox("Stock", b.String())
}

// FormatAlerts renders stock alerts newest first, unread ones marked.
func FormatAlerts(alerts []domain.Alert, now time.Time) string {
	if len(alerts) == 0 {
		return Dim("No stock alerts.") + "\n"
	}
	var b strings.Builder
	b.WriteString(Header(fmt.Sprintf("Alerts (%d)", len(alerts))) + "\n")
	for _, a := range alerts {
		marker := " "
		if !a.Read {
			marker = StyleHeader.Render("•")
		}
		b.WriteString(fmt.Sprintf("%s %s %s  %s\n",
			marker,
			Dim(Clock(a.Timestamp, now)),
			SeverityColor(a.Severity).Render(a.Title),
			a.Message,
		))
	}
	return b.String()
}

// FormatNotification renders one notification as a single line.
func FormatNotification(n notify.Notification, now time.Time) string {
	style := StyleFg
	switch n.Kind {
	case notify.KindWarning:
		style = StyleRed
	case notify.KindSuccess, notify.KindProgress:
		style = StyleGreen
	case notify.KindInfo:
		style = StyleBlue
	}
	return fmt.Sprintf("%s %s  %s", Dim(Clock(n.Timestamp, now)), style.Render(n.Title), n.Message)
}

func FormatNotifications(items []notify.Notification, now time.Time) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(Header("Notifications") + "\n")
	for _, n := range items {
		b.WriteString(FormatNotification(n, now) + "\n")
	}
	return b.String()
}

// FormatImport summarizes a seed import.
func FormatImport(path string, r *service.ImportResult) string {
	rows := [][]string{
		{"Resources", fmt.Sprintf("%d", r.ResourceCount)},
		{"Materials", fmt.Sprintf("%d", r.MaterialCount)},
		{"Pieces", fmt.Sprintf("%d", r.PieceCount)},
		{"Tasks", fmt.Sprintf("%d", r.TaskCount)},
	}
	body := Dim(path) + "\n\n" + RenderTable([]string{"ENTITY", "IMPORTED"}, rows)
	return RenderBox("Import", body)
}
