package fotobox

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownLayout is returned when a layout id is not in the registry.
var ErrUnknownLayout = errors.New("unknown layout")

// LayoutSpec is a grid shape and the number of shots needed to fill it.
type LayoutSpec struct {
	ID        int
	Name      string
	Columns   int
	Rows      int
	ShotCount int
}

// Cell returns the grid position of the photo at index i.
func (l LayoutSpec) Cell(i int) (col, row int) {
	return i % l.Columns, i / l.Columns
}

func (l LayoutSpec) String() string {
	return fmt.Sprintf("%s (%dx%d)", l.Name, l.Columns, l.Rows)
}

var layouts = map[int]LayoutSpec{
	1: {ID: 1, Name: "strip3", Columns: 1, Rows: 3, ShotCount: 3},
	2: {ID: 2, Name: "strip4", Columns: 1, Rows: 4, ShotCount: 4},
	3: {ID: 3, Name: "instax", Columns: 1, Rows: 1, ShotCount: 1},
	4: {ID: 4, Name: "grid2x2", Columns: 2, Rows: 2, ShotCount: 4},
}

// Lookup returns the layout registered under id.
func Lookup(id int) (LayoutSpec, error) {
	l, ok := layouts[id]
	if !ok {
		return LayoutSpec{}, fmt.Errorf("layout %d: %w", id, ErrUnknownLayout)
	}
	return l, nil
}

// Layouts returns every registered layout, ordered by id.
func Layouts() []LayoutSpec {
	ls := make([]LayoutSpec, 0, len(layouts))
	for _, l := range layouts {
		ls = append(ls, l)
	}
	sort.Slice(ls, func(i, j int) bool {
		return ls[i].ID < ls[j].ID
	})
	return ls
}
