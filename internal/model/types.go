package model

import (
    "fmt"
    "math"

    "lpgroute/internal/grid"
)

// Core domain types for the LPG delivery problem

type TruckType struct {
    Code        string  `json:"code"`
    TaraTon     float64 `json:"taraTon"`
    CapacityM3  float64 `json:"capacityM3"`
    MaxCargoTon float64 `json:"maxCargoTon"`
}

var (
    TypeTA = TruckType{Code: "TA", TaraTon: 2.5, CapacityM3: 25, MaxCargoTon: 12.5}
    TypeTB = TruckType{Code: "TB", TaraTon: 2.0, CapacityM3: 15, MaxCargoTon: 7.5}
    TypeTC = TruckType{Code: "TC", TaraTon: 1.5, CapacityM3: 10, MaxCargoTon: 5.0}
    TypeTD = TruckType{Code: "TD", TaraTon: 1.0, CapacityM3: 5, MaxCargoTon: 2.5}
)

// TruckTypes lists the known types in fleet order.
var TruckTypes = []TruckType{TypeTA, TypeTB, TypeTC, TypeTD}

func TruckTypeByCode(code string) (TruckType, bool) {
    for _, t := range TruckTypes {
        if t.Code == code {
            return t, true
        }
    }
    return TruckType{}, false
}

// CargoWeight returns the weight in tons of v m3 of LPG, capped at the type's max cargo.
func (t TruckType) CargoWeight(v float64) float64 {
    if t.CapacityM3 <= 0 || v <= 0 {
        return 0
    }
    return math.Min(1, v/t.CapacityM3) * t.MaxCargoTon
}

type Depot struct {
    ID              string     `json:"id"`
    Pos             grid.Point `json:"pos"`
    CapacityMax     float64    `json:"capacityMax"`
    CapacityCurrent float64    `json:"capacityCurrent"`
}

// NewDepot returns a full depot. A non-positive capacity means unbounded (main plant).
func NewDepot(id string, x, y int, capacity float64) *Depot {
    if capacity <= 0 {
        capacity = math.Inf(1)
    }
    return &Depot{ID: id, Pos: grid.Point{X: x, Y: y}, CapacityMax: capacity, CapacityCurrent: capacity}
}

func (d *Depot) IsMainPlant() bool { return math.IsInf(d.CapacityMax, 1) }

func (d *Depot) String() string { return "Depot[" + d.ID + "]" }

type Truck struct {
    ID   string    `json:"id"`
    Type TruckType `json:"type"`
    Home *Depot    `json:"-"`
}

func TruckID(t TruckType, n int) string { return fmt.Sprintf("%s%02d", t.Code, n) }

type Order struct {
    ID            int        `json:"id"`
    Customer      string     `json:"customer,omitempty"`
    Pos           grid.Point `json:"pos"`
    VolumeM3      float64    `json:"volumeM3"`
    DeadlineHours int        `json:"deadlineHours"`
    ArrivalMinute int        `json:"arrivalMinute"`
}

type CustomerPart struct {
    PartID         int        `json:"partId"`
    OrderID        int        `json:"orderId"`
    Customer       string     `json:"customer,omitempty"`
    Pos            grid.Point `json:"pos"`
    DemandM3       float64    `json:"demandM3"`
    ArrivalMinute  int        `json:"arrivalMinute"`
    DeadlineMinute int        `json:"deadlineMinute"`
    // ReachedMinute is when a truck got to the customer; 0 until then.
    ReachedMinute  int        `json:"reachedMinute,omitempty"`
    Served         bool       `json:"served"`
}

func (p *CustomerPart) String() string {
    return fmt.Sprintf("Part[%d(order %d)@(%d,%d) %.2fm3 by %d]", p.PartID, p.OrderID, p.Pos.X, p.Pos.Y, p.DemandM3, p.DeadlineMinute)
}

// SplitOrder cuts an order into parts of at most MaxPartM3, numbering them from firstID.
// Full parts come first and the remainder, if any, is last.
func SplitOrder(o Order, firstID int) []*CustomerPart {
    if o.VolumeM3 <= 0 {
        return nil
    }
    n := int(math.Ceil(o.VolumeM3 / MaxPartM3))
    parts := make([]*CustomerPart, 0, n)
    deadline := o.ArrivalMinute + o.DeadlineHours*60
    for i := 0; i < n; i++ {
        d := MaxPartM3
        if i == n-1 {
            d = o.VolumeM3 - float64(n-1)*MaxPartM3
        }
        parts = append(parts, &CustomerPart{
            PartID:         firstID + len(parts),
            OrderID:        o.ID,
            Customer:       o.Customer,
            Pos:            o.Pos,
            DemandM3:       d,
            ArrivalMinute:  o.ArrivalMinute,
            DeadlineMinute: deadline,
        })
    }
    return parts
}

type Blockage struct {
    StartMinute int          `json:"startMinute"`
    EndMinute   int          `json:"endMinute"`
    Cells       []grid.Point `json:"cells"`
}

// ActiveAt reports whether the blockage covers minute m (half-open interval).
func (b Blockage) ActiveAt(m int) bool { return b.StartMinute <= m && m < b.EndMinute }

// FuelForLeg returns gallons burned driving d km with load m3 on board.
func FuelForLeg(d int, load float64, t TruckType) float64 {
    if d <= 0 {
        return 0
    }
    return float64(d) * (t.TaraTon + t.CargoWeight(load)) / 180.0
}

// TravelMinutes converts a grid distance into whole minutes at SpeedKmh.
func TravelMinutes(d int) int {
    return int(math.Round(float64(d) * 60.0 / SpeedKmh))
}
