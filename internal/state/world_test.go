package state

import (
	"errors"
	"testing"

	"lpgroute/internal/grid"
	"lpgroute/internal/model"
)

func TestDefaultLayoutFleet(t *testing.T) {
	w, err := New(DefaultLayout())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(w.Fleet) != 20 {
		t.Fatalf("want 20 trucks, got %d", len(w.Fleet))
	}
	wantIDs := []string{"TA01", "TA02", "TB01", "TB04", "TC01", "TD10"}
	for _, id := range wantIDs {
		if _, ok := w.Trucks[id]; !ok {
			t.Fatalf("missing truck %s", id)
		}
	}
	plant := w.MainPlant()
	if plant == nil || plant.ID != "Planta" || plant.Pos != (grid.Point{X: 12, Y: 8}) {
		t.Fatalf("bad main plant: %+v", plant)
	}
	for _, tr := range w.Fleet {
		if tr.Home != plant {
			t.Fatalf("truck %s not homed at plant", tr.ID)
		}
	}
	if got := len(w.AvailableTrucks(0)); got != 20 {
		t.Fatalf("all trucks should be available, got %d", got)
	}
}

func TestNewRejectsBadLayouts(t *testing.T) {
	_, err := New(Layout{Depots: []DepotSpec{{ID: "Norte", X: 1, Y: 1, Capacity: 10}}})
	if !errors.Is(err, ErrNoMainPlant) {
		t.Fatalf("want ErrNoMainPlant, got %v", err)
	}
	_, err = New(Layout{Depots: []DepotSpec{{ID: "P", X: 1, Y: 1}}, Fleet: []FleetSpec{{Type: "TZ", Count: 1}}})
	if err == nil {
		t.Fatal("unknown truck type should fail")
	}
	_, err = New(Layout{Depots: []DepotSpec{{ID: "P", X: 100, Y: 1}}})
	if err == nil {
		t.Fatal("off-grid depot should fail")
	}
}

func TestNearestReloadDepot(t *testing.T) {
	w, _ := New(DefaultLayout())
	d, dist := w.NearestReloadDepot(grid.Point{X: 40, Y: 40}, 20, nil)
	if d == nil || d.ID != "Norte" || dist != 4 {
		t.Fatalf("want Norte at 4, got %v at %d", d, dist)
	}
	w.Depot("Norte").CapacityCurrent = 10
	d, _ = w.NearestReloadDepot(grid.Point{X: 40, Y: 40}, 20, nil)
	if d == nil || d.ID != "Este" {
		t.Fatalf("want Este when Norte is short, got %v", d)
	}
	w.Depot("Este").CapacityCurrent = 19.995
	d, _ = w.NearestReloadDepot(grid.Point{X: 40, Y: 40}, 20, nil)
	if d == nil || d.ID != "Este" {
		t.Fatalf("tolerance should admit Este, got %v", d)
	}
	w.Depot("Este").CapacityCurrent = 19
	if d, _ = w.NearestReloadDepot(grid.Point{X: 40, Y: 40}, 20, nil); d != nil {
		t.Fatalf("no depot should qualify, got %v", d)
	}
}

func TestActivateOrderAndRemove(t *testing.T) {
	w, _ := New(DefaultLayout())
	w.SetOrders([]model.Order{
		{Pos: grid.Point{X: 5, Y: 5}, VolumeM3: 30, DeadlineHours: 4, ArrivalMinute: 10},
		{Pos: grid.Point{X: 6, Y: 6}, VolumeM3: 3, DeadlineHours: 4, ArrivalMinute: 0},
	})
	if w.PendingOrders[0].ArrivalMinute != 0 {
		t.Fatal("orders must be sorted by arrival")
	}
	a := w.ActivateOrder(w.PendingOrders[0])
	b := w.ActivateOrder(w.PendingOrders[1])
	if len(a) != 1 || len(b) != 2 || b[0].PartID != 1 || b[1].PartID != 2 {
		t.Fatalf("bad part numbering: %v %v", a, b)
	}
	if len(w.ActiveParts) != 3 {
		t.Fatalf("want 3 active parts, got %d", len(w.ActiveParts))
	}
	if !w.RemoveActivePart(b[0]) || w.RemoveActivePart(b[0]) {
		t.Fatal("remove should succeed once")
	}
	if len(w.ActiveParts) != 2 {
		t.Fatalf("want 2 active parts, got %d", len(w.ActiveParts))
	}
}
