// Package world models the spatial side of the classroom: the seat
// grid, agent locations across scenes, shared objects, and the teacher
// patrol row. Distances are Manhattan over a discrete grid; this is not
// a continuous-space model.
package world

import "fmt"

// Position is a (row, col) cell in the seat grid.
type Position struct {
	Row int
	Col int
}

// LayoutConfig describes a classroom seat grid. Either SeatMap gives
// explicit seat ids per cell (empty string = no seat), or a Rows×Cols
// grid is generated with ids "r<row>c<col>" minus EmptySeats.
type LayoutConfig struct {
	Rows       int        `yaml:"rows"`
	Cols       int        `yaml:"cols"`
	SeatMap    [][]string `yaml:"seat_map"`
	EmptySeats []string   `yaml:"empty_seats"`
}

// Layout is the immutable seat grid of one classroom.
type Layout struct {
	rows      int
	cols      int
	positions map[string]Position
	order     []string
}

// NewLayout builds a layout from config. Rows and Cols are clamped to
// at least 1; a generated grid numbers seats from r1c1.
func NewLayout(cfg LayoutConfig) *Layout {
	l := &Layout{
		rows:      max(1, cfg.Rows),
		cols:      max(1, cfg.Cols),
		positions: make(map[string]Position),
	}
	if len(cfg.SeatMap) > 0 {
		for rowIndex, row := range cfg.SeatMap {
			for colIndex, seatID := range row {
				if seatID == "" {
					continue
				}
				l.addSeat(seatID, rowIndex, colIndex)
			}
		}
		return l
	}
	empty := make(map[string]struct{}, len(cfg.EmptySeats))
	for _, seatID := range cfg.EmptySeats {
		empty[seatID] = struct{}{}
	}
	for row := 0; row < l.rows; row++ {
		for col := 0; col < l.cols; col++ {
			seatID := seatName(row, col)
			if _, skip := empty[seatID]; skip {
				continue
			}
			l.addSeat(seatID, row, col)
		}
	}
	return l
}

func seatName(row, col int) string {
	return fmt.Sprintf("r%dc%d", row+1, col+1)
}

func (l *Layout) addSeat(seatID string, row, col int) {
	if _, exists := l.positions[seatID]; exists {
		return
	}
	l.positions[seatID] = Position{Row: row, Col: col}
	l.order = append(l.order, seatID)
}

// Rows returns the grid height.
func (l *Layout) Rows() int { return l.rows }

// Cols returns the grid width.
func (l *Layout) Cols() int { return l.cols }

// AvailableSeats lists seat ids in grid order.
func (l *Layout) AvailableSeats() []string {
	return append([]string(nil), l.order...)
}

// SeatPosition returns the cell for a seat id.
func (l *Layout) SeatPosition(seatID string) (Position, bool) {
	pos, ok := l.positions[seatID]
	return pos, ok
}

// AdjacentSeats lists the 4-neighborhood of a seat: same row ±1 col or
// same col ±1 row. Diagonals are not adjacent.
func (l *Layout) AdjacentSeats(seatID string) []string {
	pos, ok := l.positions[seatID]
	if !ok {
		return nil
	}
	var neighbors []string
	for _, otherID := range l.order {
		if otherID == seatID {
			continue
		}
		other := l.positions[otherID]
		sameRow := pos.Row == other.Row && abs(pos.Col-other.Col) == 1
		sameCol := pos.Col == other.Col && abs(pos.Row-other.Row) == 1
		if sameRow || sameCol {
			neighbors = append(neighbors, otherID)
		}
	}
	return neighbors
}

// AreAdjacent reports whether two seats share an edge.
func (l *Layout) AreAdjacent(seatA, seatB string) bool {
	for _, neighbor := range l.AdjacentSeats(seatA) {
		if neighbor == seatB {
			return true
		}
	}
	return false
}

// Distance returns the Manhattan distance between two seats, or false
// when either seat is unknown.
func (l *Layout) Distance(seatA, seatB string) (int, bool) {
	posA, okA := l.positions[seatA]
	posB, okB := l.positions[seatB]
	if !okA || !okB {
		return 0, false
	}
	return abs(posA.Row-posB.Row) + abs(posA.Col-posB.Col), true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
