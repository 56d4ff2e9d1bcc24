package domain

import (
	"fmt"
	"strconv"
	"time"
)

// ClassifyStock evaluates a material's available stock against its minimum
// threshold. Zero (or negative) stock is Critical; stock at or below the
// minimum is Low.
func ClassifyStock(m Material) StockLevel {
	ms := m.measure()
	if *ms.available <= 0 {
		return StockCritical
	}
	if ms.min != nil && *ms.available <= *ms.min {
		return StockLow
	}
	return StockNormal
}

// RemainingStock renders the available amount with its unit, e.g. "12.5 mm".
func RemainingStock(m Material) string {
	ms := m.measure()
	v := *ms.available
	if v < 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + ms.unit
}

// StockAlert builds the candidate alert for a material, or reports false
// when stock is normal. ID is left empty for the alert store to assign.
func StockAlert(m Material, now time.Time) (Alert, bool) {
	switch ClassifyStock(m) {
	case StockCritical:
		return Alert{
			Type:       AlertCriticalStock,
			Title:      "Critical Stock Level",
			Message:    fmt.Sprintf("%s (%s) completely out of stock", m.Name, m.Type),
			Severity:   SeverityHigh,
			MaterialID: m.ID,
			Timestamp:  now,
		}, true
	case StockLow:
		return Alert{
			Type:       AlertLowStock,
			Title:      "Low Stock Alert",
			Message:    fmt.Sprintf("%s (%s) inventory is running low (%s remaining)", m.Name, m.Type, RemainingStock(m)),
			Severity:   SeverityMedium,
			MaterialID: m.ID,
			Timestamp:  now,
		}, true
	}
	return Alert{}, false
}
