// Package push adapts external change sources into contract events: a
// websocket push channel and a watched materials export file.
package push

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/alexanderramin/shopfloor/internal/contract"
	"github.com/alexanderramin/shopfloor/internal/domain"
)

// frame is one push message: {"event": "task:updated", "data": {...}}.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type taskPayload struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	EstimatedTime    float64    `json:"estimatedTime"`
	SpentTime        float64    `json:"spentTime"`
	Quantity         int        `json:"quantity"`
	Produced         *int       `json:"produced"`
	Progress         int        `json:"progress"`
	Status           string     `json:"status"`
	Resources        []string   `json:"resources"`
	Comments         []string   `json:"comments"`
	Piece            string     `json:"piece"`
	DueDate          time.Time  `json:"dueDate"`
	ActualFinishDate *time.Time `json:"actualFinishDate"`
	CreatedBy        string     `json:"createdBy"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

type materialPayload struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Type            string    `json:"type"`
	Shape           string    `json:"shape"`
	Quantity        float64   `json:"quantity"`
	AvailableLength *float64  `json:"availableLength"`
	MinLength       *float64  `json:"minLength"`
	AvailableArea   *float64  `json:"availableArea"`
	MinArea         *float64  `json:"minArea"`
	Diameter        *float64  `json:"diameter"`
	Length          *float64  `json:"length"`
	X               *float64  `json:"x"`
	Y               *float64  `json:"y"`
	Thickness       *float64  `json:"thickness"`
	Pieces          []string  `json:"pieces"`
	LastUpdated     time.Time `json:"lastUpdated"`
	CreatedAt       time.Time `json:"createdAt"`
}

// decodeFrame turns a raw message into an event. ok is false for events the
// board does not consume.
func decodeFrame(raw []byte) (ev contract.Event, ok bool, err error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return contract.Event{}, false, fmt.Errorf("decoding frame: %w", err)
	}

	switch contract.EventKind(f.Event) {
	case contract.EventTaskUpdated:
		var p taskPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return contract.Event{}, false, fmt.Errorf("decoding %s payload: %w", f.Event, err)
		}
		t, err := p.toDomain()
		if err != nil {
			return contract.Event{}, false, err
		}
		return contract.TaskUpdated(t), true, nil
	case contract.EventMaterialStockUpdated:
		var p materialPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return contract.Event{}, false, fmt.Errorf("decoding %s payload: %w", f.Event, err)
		}
		if p.ID == "" {
			return contract.Event{}, false, fmt.Errorf("%s payload without id", f.Event)
		}
		return contract.StockUpdated(p.toDomain()), true, nil
	}
	return contract.Event{}, false, nil
}

func (p taskPayload) toDomain() (domain.Task, error) {
	if p.ID == "" {
		return domain.Task{}, fmt.Errorf("%s payload without id", contract.EventTaskUpdated)
	}
	status, err := domain.ParseTaskStatus(p.Status)
	if err != nil {
		return domain.Task{}, fmt.Errorf("task %s: %w", p.ID, err)
	}
	t := domain.Task{
		ID:               p.ID,
		Name:             p.Name,
		Description:      p.Description,
		EstimatedTime:    p.EstimatedTime,
		SpentTime:        p.SpentTime,
		Quantity:         p.Quantity,
		Progress:         p.Progress,
		Status:           status,
		ResourceIDs:      p.Resources,
		CommentIDs:       p.Comments,
		PieceID:          p.Piece,
		DueDate:          p.DueDate,
		ActualFinishDate: p.ActualFinishDate,
		CreatedBy:        p.CreatedBy,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
	// Zero produced is recovered from progress when folded into the board.
	if p.Produced != nil {
		t.Produced = *p.Produced
	}
	return t, nil
}

func (p materialPayload) toDomain() domain.Material {
	return domain.Material{
		ID:              p.ID,
		Name:            p.Name,
		Type:            p.Type,
		Shape:           domain.MaterialShape(p.Shape),
		Quantity:        p.Quantity,
		AvailableLength: p.AvailableLength,
		MinLength:       p.MinLength,
		AvailableArea:   p.AvailableArea,
		MinArea:         p.MinArea,
		Diameter:        p.Diameter,
		Length:          p.Length,
		X:               p.X,
		Y:               p.Y,
		Thickness:       p.Thickness,
		PieceIDs:        p.Pieces,
		LastUpdated:     p.LastUpdated,
		CreatedAt:       p.CreatedAt,
	}
}

// EncodeTask renders a task-updated frame. Servers and tests use it to
// produce frames the feed understands.
func EncodeTask(t domain.Task) ([]byte, error) {
	produced := t.Produced
	return encode(contract.EventTaskUpdated, taskPayload{
		ID:               t.ID,
		Name:             t.Name,
		Description:      t.Description,
		EstimatedTime:    t.EstimatedTime,
		SpentTime:        t.SpentTime,
		Quantity:         t.Quantity,
		Produced:         &produced,
		Progress:         t.Progress,
		Status:           string(t.Status),
		Resources:        t.ResourceIDs,
		Comments:         t.CommentIDs,
		Piece:            t.PieceID,
		DueDate:          t.DueDate,
		ActualFinishDate: t.ActualFinishDate,
		CreatedBy:        t.CreatedBy,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	})
}

// EncodeMaterial renders a material:stock-updated frame.
func EncodeMaterial(m domain.Material) ([]byte, error) {
	return encode(contract.EventMaterialStockUpdated, materialPayload{
		ID:              m.ID,
		Name:            m.Name,
		Type:            m.Type,
		Shape:           string(m.Shape),
		Quantity:        m.Quantity,
		AvailableLength: m.AvailableLength,
		MinLength:       m.MinLength,
		AvailableArea:   m.AvailableArea,
		MinArea:         m.MinArea,
		Diameter:        m.Diameter,
		Length:          m.Length,
		X:               m.X,
		Y:               m.Y,
		Thickness:       m.Thickness,
		Pieces:          m.PieceIDs,
		LastUpdated:     m.LastUpdated,
		CreatedAt:       m.CreatedAt,
	})
}

func encode(kind contract.EventKind, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", kind, err)
	}
	return json.Marshal(frame{Event: string(kind), Data: data})
}
