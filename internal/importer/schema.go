package importer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Seed is the top-level YAML structure for seeding a shop floor: resources,
// materials, pieces and tasks linked by file-local refs.
type Seed struct {
	Defaults  *DefaultsImport  `yaml:"defaults,omitempty"`
	Resources []ResourceImport `yaml:"resources"`
	Materials []MaterialImport `yaml:"materials"`
	Pieces    []PieceImport    `yaml:"pieces"`
	Tasks     []TaskImport     `yaml:"tasks"`
}

// DefaultsImport holds values that cascade to tasks that omit them.
type DefaultsImport struct {
	CreatedBy     string   `yaml:"created_by,omitempty"`
	EstimatedTime *float64 `yaml:"estimated_time,omitempty"`
	Quantity      *int     `yaml:"quantity,omitempty"`
}

type ResourceImport struct {
	Ref       string   `yaml:"ref"`
	Name      string   `yaml:"name"`
	Type      string   `yaml:"type"`
	Available *bool    `yaml:"available,omitempty"`
	Skills    []string `yaml:"skills,omitempty"`
}

// MaterialImport describes a stock material. Bars use the length fields,
// plates the area fields.
type MaterialImport struct {
	Ref             string   `yaml:"ref"`
	Name            string   `yaml:"name"`
	Type            string   `yaml:"type"`
	Shape           string   `yaml:"shape"`
	Quantity        *float64 `yaml:"quantity,omitempty"`
	AvailableLength *float64 `yaml:"available_length,omitempty"`
	MinLength       *float64 `yaml:"min_length,omitempty"`
	AvailableArea   *float64 `yaml:"available_area,omitempty"`
	MinArea         *float64 `yaml:"min_area,omitempty"`
	Diameter        *float64 `yaml:"diameter,omitempty"`
	Length          *float64 `yaml:"length,omitempty"`
	X               *float64 `yaml:"x,omitempty"`
	Y               *float64 `yaml:"y,omitempty"`
	Thickness       *float64 `yaml:"thickness,omitempty"`
}

type PieceImport struct {
	Reference        string  `yaml:"reference"`
	Name             string  `yaml:"name"`
	Description      string  `yaml:"description,omitempty"`
	MaterialRef      string  `yaml:"material_ref,omitempty"`
	MaterialQuantity float64 `yaml:"material_quantity,omitempty"`
	Quantity         int     `yaml:"quantity"`
	ProjectID        string  `yaml:"project_id,omitempty"`
}

type TaskImport struct {
	Ref           string   `yaml:"ref"`
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description,omitempty"`
	PieceRef      string   `yaml:"piece_ref,omitempty"`
	Quantity      *int     `yaml:"quantity,omitempty"`
	Produced      int      `yaml:"produced,omitempty"`
	Status        string   `yaml:"status,omitempty"`
	EstimatedTime *float64 `yaml:"estimated_time,omitempty"`
	SpentTime     float64  `yaml:"spent_time,omitempty"`
	DueDate       string   `yaml:"due_date,omitempty"`
	Resources     []string `yaml:"resources,omitempty"`
	CreatedBy     string   `yaml:"created_by,omitempty"`
}

// LoadSeed reads and decodes a seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes seed YAML. Unknown fields are rejected and an empty
// document yields an empty seed.
func ParseSeed(data []byte) (*Seed, error) {
	var s Seed
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing seed YAML: %w", err)
	}
	return &s, nil
}
