// Package grid holds the city grid and its blockage matrix, and answers
// shortest-path distance queries over the cells that are currently open.
package grid

import "math"

const (
	Width  = 70
	Height = 50
)

// Unreachable is returned by ShortestPath when no open path exists.
const Unreachable = math.MaxInt

// Point is a grid cell. One cell step is one kilometre.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Point) InBounds() bool {
	return p.X >= 0 && p.X < Width && p.Y >= 0 && p.Y < Height
}

func (p Point) Manhattan(q Point) int {
	dx, dy := p.X-q.X, p.Y-q.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

var dirs = [4][2]int{{0, 1}, {0, -1}, {1, 0}, {-1, 0}}

// Grid is the blockage matrix. The zero value is an open grid.
type Grid struct {
	blocked [Width][Height]bool

	// BFS scratch space, reused between calls.
	seen  [Width][Height]uint32
	epoch uint32
	queue []int
}

func New() *Grid { return &Grid{} }

func (g *Grid) Blocked(p Point) bool {
	if !p.InBounds() {
		return false
	}
	return g.blocked[p.X][p.Y]
}

// SetBlocked sets a single cell; out-of-bounds cells are ignored.
func (g *Grid) SetBlocked(p Point, v bool) {
	if p.InBounds() {
		g.blocked[p.X][p.Y] = v
	}
}

func (g *Grid) Clear() {
	g.blocked = [Width][Height]bool{}
}

// BlockedCount returns the number of blocked cells.
func (g *Grid) BlockedCount() int {
	n := 0
	for x := 0; x < Width; x++ {
		for y := 0; y < Height; y++ {
			if g.blocked[x][y] {
				n++
			}
		}
	}
	return n
}

// Matrix returns a copy of the blockage matrix indexed [x][y].
func (g *Grid) Matrix() [][]bool {
	out := make([][]bool, Width)
	for x := range out {
		out[x] = make([]bool, Height)
		copy(out[x], g.blocked[x][:])
	}
	return out
}

// ShortestPath returns the 4-connected BFS distance between two cells.
// Blocked cells cannot be crossed but either endpoint may itself be blocked.
func (g *Grid) ShortestPath(from, to Point) int {
	if !from.InBounds() || !to.InBounds() {
		return Unreachable
	}
	if from == to {
		return 0
	}
	g.epoch++
	if g.epoch == 0 {
		g.seen = [Width][Height]uint32{}
		g.epoch = 1
	}
	ep := g.epoch
	q := g.queue[:0]
	// queue entries pack (x, y, dist)
	q = append(q, pack(from.X, from.Y, 0))
	g.seen[from.X][from.Y] = ep
	for head := 0; head < len(q); head++ {
		x, y, d := unpack(q[head])
		for _, dv := range dirs {
			nx, ny := x+dv[0], y+dv[1]
			if nx == to.X && ny == to.Y {
				g.queue = q
				return d + 1
			}
			if nx < 0 || nx >= Width || ny < 0 || ny >= Height {
				continue
			}
			if g.seen[nx][ny] == ep || g.blocked[nx][ny] {
				continue
			}
			g.seen[nx][ny] = ep
			q = append(q, pack(nx, ny, d+1))
		}
	}
	g.queue = q
	return Unreachable
}

func pack(x, y, d int) int { return d<<16 | x<<8 | y }

func unpack(v int) (x, y, d int) { return (v >> 8) & 0xff, v & 0xff, v >> 16 }
