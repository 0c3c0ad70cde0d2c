package opt

import "lpgroute/internal/model"

// twoOptSwap returns a copy of seq with the segment [i..k] reversed.
func twoOptSwap(seq []*model.CustomerPart, i, k int) []*model.CustomerPart {
	out := make([]*model.CustomerPart, len(seq))
	copy(out, seq[:i])
	// reverse i..k
	pos := i
	for j := k; j >= i; j-- {
		out[pos] = seq[j]
		pos++
	}
	copy(out[pos:], seq[k+1:])
	return out
}

// fits is the capacity prefilter applied before any insertion is evaluated.
func fits(r *model.PlannedRoute, p *model.CustomerPart) bool {
	return r.Load()+p.DemandM3 <= r.Truck.Type.CapacityM3
}

// withPart returns a clone of r with p inserted at pos.
func withPart(r *model.PlannedRoute, pos int, p *model.CustomerPart) *model.PlannedRoute {
	c := r.Clone()
	c.Insert(pos, p)
	return c
}

func dropPart(parts []*model.CustomerPart, idx int) []*model.CustomerPart {
	out := make([]*model.CustomerPart, 0, len(parts)-1)
	out = append(out, parts[:idx]...)
	return append(out, parts[idx+1:]...)
}
