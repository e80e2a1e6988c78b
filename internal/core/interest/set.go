// Package interest decides which characters a client must be told about and
// sends the spawn directives.
package interest

import "github.com/zeusync/cellsync/internal/core/models"

// Set is the collection of cells a player is currently interested in.
type Set struct {
	cells map[models.CellID]struct{}
}

// Neighborhood is the interest set of an exterior player: every cell of the
// grid neighborhood around it.
func Neighborhood(cells []models.CellID) Set {
	s := Set{cells: make(map[models.CellID]struct{}, len(cells))}
	for _, c := range cells {
		s.cells[c] = struct{}{}
	}
	return s
}

// Single is the interest set of an interior player: exactly its own cell.
func Single(cell models.CellID) Set {
	return Set{cells: map[models.CellID]struct{}{cell: {}}}
}

func (s Set) Contains(cell models.CellID) bool {
	_, ok := s.cells[cell]
	return ok
}

func (s Set) Len() int { return len(s.cells) }
