// Package board holds the in-memory canvas: a fixed-size grid of cell
// colors that is the single source of truth for reads and the target of
// all writes.
package board

import "sync"

const DefaultColor = "#FFFFFF"

type Board struct {
	mu     sync.RWMutex
	width  int
	height int
	cells  [][]string // rows indexed [y][x]
}

// New creates a blank width x height board filled with DefaultColor.
func New(width, height int) *Board {
	cells := make([][]string, height)
	for y := range cells {
		row := make([]string, width)
		for x := range row {
			row[x] = DefaultColor
		}
		cells[y] = row
	}
	return &Board{width: width, height: height, cells: cells}
}

func (b *Board) Width() int  { return b.width }
func (b *Board) Height() int { return b.height }

// Get returns the color at (x, y). Out-of-range coordinates report false.
func (b *Board) Get(x, y int) (string, bool) {
	if !b.inBounds(x, y) {
		return "", false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cells[y][x], true
}

// Set writes color at (x, y). Out-of-range coordinates are a no-op
// reporting false, never an error.
func (b *Board) Set(x, y int, color string) bool {
	if !b.inBounds(x, y) {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cells[y][x] = color
	return true
}

// Snapshot returns a deep copy of the grid, safe to serialize while paints
// continue on the live board.
func (b *Board) Snapshot() [][]string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	cells := make([][]string, b.height)
	for y, row := range b.cells {
		cells[y] = append([]string(nil), row...)
	}
	return cells
}

// Restore replaces the grid with the given cells if their dimensions match
// the board's. A mismatched grid is rejected so a document persisted under
// a different board size never becomes the live canvas.
func (b *Board) Restore(cells [][]string) bool {
	if len(cells) != b.height {
		return false
	}
	for _, row := range cells {
		if len(row) != b.width {
			return false
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for y, row := range cells {
		b.cells[y] = append([]string(nil), row...)
	}
	return true
}

func (b *Board) inBounds(x, y int) bool {
	return x >= 0 && x < b.width && y >= 0 && y < b.height
}
