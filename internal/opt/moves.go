package opt

import "fmt"

type MoveKind int

const (
	MoveTwoOpt MoveKind = iota + 1
	MoveRelocate
	MoveAssign
)

// Move identifies a neighborhood step. Only the fields of its kind are set, so
// two moves are equal exactly when their identifying tuples are equal.
type Move struct {
	Kind      MoveKind
	TruckID   string
	I, J      int
	PartID    int
	DestTruck string
}

func TwoOptMove(truckID string, i, j int) Move {
	if j < i {
		i, j = j, i
	}
	return Move{Kind: MoveTwoOpt, TruckID: truckID, I: i, J: j}
}

// RelocateMove is keyed on the part and its destination only.
func RelocateMove(partID int, destTruck string) Move {
	return Move{Kind: MoveRelocate, PartID: partID, DestTruck: destTruck}
}

func AssignMove(partID int, destTruck string) Move {
	return Move{Kind: MoveAssign, PartID: partID, DestTruck: destTruck}
}

// Tabuable reports whether the move enters the tabu list once taken.
func (m Move) Tabuable() bool { return m.Kind == MoveTwoOpt || m.Kind == MoveRelocate }

func (m Move) String() string {
	switch m.Kind {
	case MoveTwoOpt:
		return fmt.Sprintf("2opt(%s,%d,%d)", m.TruckID, m.I, m.J)
	case MoveRelocate:
		return fmt.Sprintf("relocate(%d->%s)", m.PartID, m.DestTruck)
	case MoveAssign:
		return fmt.Sprintf("assign(%d->%s)", m.PartID, m.DestTruck)
	}
	return "none"
}

// tabuList is a FIFO of recent moves with a counting set for membership.
type tabuList struct {
	tenure int
	queue  []Move
	set    map[Move]int
}

func newTabuList(tenure int) *tabuList {
	return &tabuList{tenure: tenure, set: map[Move]int{}}
}

func (t *tabuList) Add(m Move) {
	t.queue = append(t.queue, m)
	t.set[m]++
	for len(t.queue) > t.tenure {
		old := t.queue[0]
		t.queue = t.queue[1:]
		if t.set[old]--; t.set[old] <= 0 {
			delete(t.set, old)
		}
	}
}

func (t *tabuList) Contains(m Move) bool { return t.set[m] > 0 }

func (t *tabuList) Len() int { return len(t.queue) }
