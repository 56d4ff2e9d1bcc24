package domain

import (
	"slices"
	"time"
)

type Material struct {
	ID       string
	Name     string
	Type     string
	Shape    MaterialShape
	Quantity float64

	// Bars track length, plates track area. Nil means the dimension does
	// not apply to this material.
	AvailableLength *float64
	MinLength       *float64
	AvailableArea   *float64
	MinArea         *float64

	Diameter  *float64
	Length    *float64
	X         *float64
	Y         *float64
	Thickness *float64

	PieceIDs    []string
	LastUpdated time.Time
	CreatedAt   time.Time
}

func (m Material) Clone() Material {
	c := m
	c.PieceIDs = slices.Clone(m.PieceIDs)
	for _, p := range []**float64{
		&c.AvailableLength, &c.MinLength, &c.AvailableArea, &c.MinArea,
		&c.Diameter, &c.Length, &c.X, &c.Y, &c.Thickness,
	} {
		if *p != nil {
			v := **p
			*p = &v
		}
	}
	return c
}

// stockMeasure is the dimension a material is tracked by.
type stockMeasure struct {
	available *float64
	min       *float64
	unit      string
}

func (m *Material) measure() stockMeasure {
	length := stockMeasure{available: m.AvailableLength, min: m.MinLength, unit: "mm"}
	area := stockMeasure{available: m.AvailableArea, min: m.MinArea, unit: "mm²"}
	switch m.Shape {
	case ShapeBar:
		if length.available != nil {
			return length
		}
	case ShapePlate:
		if area.available != nil {
			return area
		}
	}
	if length.available != nil {
		return length
	}
	if area.available != nil {
		return area
	}
	q := m.Quantity
	return stockMeasure{available: &q, unit: "units"}
}
