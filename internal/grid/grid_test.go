package grid

import "testing"

func TestShortestPathOpenGridIsManhattan(t *testing.T) {
	g := New()
	cases := []struct{ a, b Point }{
		{Point{12, 8}, Point{15, 10}},
		{Point{0, 0}, Point{69, 49}},
		{Point{42, 42}, Point{63, 3}},
	}
	for _, c := range cases {
		if got, want := g.ShortestPath(c.a, c.b), c.a.Manhattan(c.b); got != want {
			t.Fatalf("%v -> %v: got %d, want %d", c.a, c.b, got, want)
		}
	}
}

func TestShortestPathSameCellIsZero(t *testing.T) {
	g := New()
	p := Point{30, 30}
	if d := g.ShortestPath(p, p); d != 0 {
		t.Fatalf("want 0, got %d", d)
	}
	g.SetBlocked(p, true)
	if d := g.ShortestPath(p, p); d != 0 {
		t.Fatalf("blocked same cell: want 0, got %d", d)
	}
}

func TestShortestPathSymmetricWithoutBlockages(t *testing.T) {
	g := New()
	pts := []Point{{0, 0}, {12, 8}, {42, 42}, {63, 3}, {69, 49}, {35, 20}}
	for _, a := range pts {
		for _, b := range pts {
			if g.ShortestPath(a, b) != g.ShortestPath(b, a) {
				t.Fatalf("asymmetric distance between %v and %v", a, b)
			}
		}
	}
}

func TestShortestPathOutOfBounds(t *testing.T) {
	g := New()
	if d := g.ShortestPath(Point{-1, 0}, Point{3, 3}); d != Unreachable {
		t.Fatalf("want Unreachable, got %d", d)
	}
	if d := g.ShortestPath(Point{3, 3}, Point{Width, 0}); d != Unreachable {
		t.Fatalf("want Unreachable, got %d", d)
	}
}

func TestShortestPathDetoursAroundWall(t *testing.T) {
	g := New()
	for y := 0; y <= 20; y++ {
		g.SetBlocked(Point{30, y}, true)
	}
	a, b := Point{12, 8}, Point{40, 15}
	got := g.ShortestPath(a, b)
	// up to y=21, across, back down
	want := (21 - 8) + (40 - 12) + (21 - 15)
	if got != want {
		t.Fatalf("detour: got %d, want %d", got, want)
	}
	if got <= a.Manhattan(b) {
		t.Fatalf("detour should be longer than manhattan %d", a.Manhattan(b))
	}
}

func TestShortestPathBlockedEndpointReachable(t *testing.T) {
	g := New()
	dst := Point{20, 20}
	g.SetBlocked(dst, true)
	if d := g.ShortestPath(Point{18, 20}, dst); d != 2 {
		t.Fatalf("want 2, got %d", d)
	}
}

func TestShortestPathEnclosedIsUnreachable(t *testing.T) {
	g := New()
	c := Point{10, 10}
	for _, p := range []Point{{9, 10}, {11, 10}, {10, 9}, {10, 11}} {
		g.SetBlocked(p, true)
	}
	if d := g.ShortestPath(Point{0, 0}, c); d != Unreachable {
		t.Fatalf("enclosed cell should be unreachable, got %d", d)
	}
	g.SetBlocked(Point{9, 10}, false)
	if d := g.ShortestPath(Point{0, 0}, c); d != 20 {
		t.Fatalf("after reopening: want 20, got %d", d)
	}
}

func TestMatrixIsACopy(t *testing.T) {
	g := New()
	g.SetBlocked(Point{1, 2}, true)
	m := g.Matrix()
	if !m[1][2] {
		t.Fatal("matrix missing blocked cell")
	}
	m[1][2] = false
	if !g.Blocked(Point{1, 2}) {
		t.Fatal("mutating the copy changed the grid")
	}
	if g.BlockedCount() != 1 {
		t.Fatalf("want 1 blocked, got %d", g.BlockedCount())
	}
}
