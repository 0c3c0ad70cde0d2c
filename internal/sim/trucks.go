package sim

import (
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"

	"lpgroute/internal/events"
	"lpgroute/internal/grid"
	"lpgroute/internal/metrics"
	"lpgroute/internal/model"
)

// Fault kinds, used as the metrics label.
const (
	faultUnreachable = "unreachable"
	faultFuel        = "fuel"
	faultNoReload    = "no_reload_depot"
	faultOverload    = "overload"
	faultBadPlan     = "bad_plan"
)

// advanceTruck steps a truck until it has to wait. A zero-length leg lands in
// the minute it starts, so its arrival is handled before the tick ends.
func (s *Simulator) advanceTruck(ts *model.TruckState, now int) {
	for {
		st, until := ts.Status, ts.TimeAvailable
		s.stepTruck(ts, now)
		if ts.Status == st && ts.TimeAvailable == until {
			return
		}
	}
}

// stepTruck advances one truck by at most one transition.
func (s *Simulator) stepTruck(ts *model.TruckState, now int) {
	if ts.Status == model.StatusInactive || ts.TimeAvailable > now {
		return
	}
	switch ts.Status {
	case model.StatusIdle:
		s.startTrip(ts, now)
	case model.StatusPreTrip:
		s.leaveDepot(ts, now)
	case model.StatusEnRoute:
		s.arrive(ts, now)
	case model.StatusDischarging:
		s.finishDischarge(ts, now)
	case model.StatusEnRouteToReload:
		s.reload(ts, now)
	case model.StatusReturning:
		s.returnHome(ts, now)
	}
}

func (s *Simulator) setStatus(ts *model.TruckState, st model.TruckStatus, now int) {
	prev := ts.Status
	ts.Status = st
	s.log.WithFields(log.Fields{
		"truck": ts.Truck.ID,
		"from":  prev,
		"to":    st,
		"at":    fmt.Sprintf("(%d,%d)", ts.Location.X, ts.Location.Y),
		"load":  ts.LoadM3,
		"fuel":  ts.FuelGal,
	}).Debug("transition")
	s.Events.Emit(events.TopicTrucks, "truck.transition", now, map[string]any{
		"truckId": ts.Truck.ID, "from": prev, "to": st, "x": ts.Location.X, "y": ts.Location.Y, "loadM3": ts.LoadM3, "fuelGal": ts.FuelGal,
	})
}

// abortTrip clears the plan of a truck that has not left its depot. The truck
// stays IDLE and can be planned again.
func (s *Simulator) abortTrip(ts *model.TruckState, now int, kind, msg string) {
	s.fault(ts, kind, msg)
	ts.Plan = nil
	ts.Destination = model.PlanStep{}
	ts.LegKm = 0
	if ts.AtHome() {
		ts.LoadM3 = 0
	}
	s.setStatus(ts, model.StatusIdle, now)
	ts.TimeAvailable = now
}

// deactivate takes a truck out of service for the rest of the run.
func (s *Simulator) deactivate(ts *model.TruckState, now int, kind, msg string) {
	s.fault(ts, kind, msg)
	ts.Plan = nil
	ts.Destination = model.PlanStep{}
	ts.ReloadDepot = nil
	ts.LegKm = 0
	s.inactivated = true
	s.setStatus(ts, model.StatusInactive, now)
	ts.TimeAvailable = model.Never
}

func (s *Simulator) fault(ts *model.TruckState, kind, msg string) {
	ts.LastFault = kind + ": " + msg
	s.faults++
	metrics.TruckFaults.WithLabelValues(kind).Inc()
	s.log.WithFields(log.Fields{"truck": ts.Truck.ID, "status": ts.Status, "kind": kind}).Warn(msg)
}

// depart starts a leg towards step. The leg's distance is fixed now and its
// fuel is debited on arrival. On failure it returns the fault kind and leaves
// the truck untouched.
func (s *Simulator) depart(ts *model.TruckState, step model.PlanStep, st model.TruckStatus, now, delay int) (string, string) {
	pos, ok := step.Position()
	if !ok {
		return faultBadPlan, "plan step has no position"
	}
	d := s.world.Distance(ts.Location, pos)
	if d == grid.Unreachable {
		return faultUnreachable, fmt.Sprintf("no path from (%d,%d) to %s", ts.Location.X, ts.Location.Y, step)
	}
	f := model.FuelForLeg(d, ts.LoadM3, ts.Truck.Type)
	if f > ts.FuelGal {
		return faultFuel, fmt.Sprintf("leg to %s needs %.3f gal, tank holds %.3f", step, f, ts.FuelGal)
	}
	ts.Destination = step
	ts.LegKm = d
	ts.ArrivalMinute = now + delay + model.TravelMinutes(d)
	ts.TimeAvailable = ts.ArrivalMinute
	s.setStatus(ts, st, now)
	return "", ""
}

// burnLeg debits the fuel of the leg just driven.
func (s *Simulator) burnLeg(ts *model.TruckState) {
	f := model.FuelForLeg(ts.LegKm, ts.LoadM3, ts.Truck.Type)
	ts.FuelGal = math.Max(0, ts.FuelGal-f)
	ts.FuelUsedGal += f
	ts.LegKm = 0
	metrics.FuelBurned.Add(f)
}

func popPlan(ts *model.TruckState) {
	if len(ts.Plan) > 0 {
		ts.Plan = ts.Plan[1:]
	}
}

// IDLE -> PRE_TRIP: load the plan's demand and top up fuel at home.
func (s *Simulator) startTrip(ts *model.TruckState, now int) {
	if len(ts.Plan) == 0 {
		return
	}
	demand := ts.PlanDemand()
	if demand > ts.Truck.Type.CapacityM3+model.LoadTolerance {
		s.abortTrip(ts, now, faultOverload, fmt.Sprintf("plan needs %.2f m3, capacity %.2f", demand, ts.Truck.Type.CapacityM3))
		return
	}
	ts.LoadM3 = math.Min(demand, ts.Truck.Type.CapacityM3)
	if ts.AtHome() {
		ts.FuelGal = model.MaxFuelGal
	}
	s.setStatus(ts, model.StatusPreTrip, now)
	ts.TimeAvailable = now + model.PreTripMinutes
}

// PRE_TRIP -> EN_ROUTE towards the first plan step.
func (s *Simulator) leaveDepot(ts *model.TruckState, now int) {
	if len(ts.Plan) == 0 {
		s.setStatus(ts, model.StatusIdle, now)
		ts.TimeAvailable = now
		return
	}
	if kind, msg := s.depart(ts, ts.Plan[0], model.StatusEnRoute, now, 0); kind != "" {
		s.abortTrip(ts, now, kind, msg)
	}
}

// EN_ROUTE arrival at a part (start discharging) or a depot (end or continue).
func (s *Simulator) arrive(ts *model.TruckState, now int) {
	pos, ok := ts.Destination.Position()
	if !ok {
		s.deactivate(ts, now, faultBadPlan, "en route without a destination")
		return
	}
	s.burnLeg(ts)
	ts.Location = pos

	switch ts.Destination.Kind {
	case model.StepPart:
		p := ts.Destination.Part
		p.ReachedMinute = now
		if now > p.DeadlineMinute {
			metrics.LateDeliveries.Inc()
			s.log.WithFields(log.Fields{"truck": ts.Truck.ID, "part": p.PartID, "late": now - p.DeadlineMinute}).Warn("delivery after deadline")
		}
		s.setStatus(ts, model.StatusDischarging, now)
		ts.TimeAvailable = now + model.DischargeMinutes
	case model.StepDepot:
		if ts.Destination.Depot.IsMainPlant() {
			ts.FuelGal = model.MaxFuelGal
		}
		ts.Destination = model.PlanStep{}
		popPlan(ts)
		if len(ts.Plan) == 0 {
			s.setStatus(ts, model.StatusIdle, now)
			ts.TimeAvailable = now
			return
		}
		s.setStatus(ts, model.StatusPreTrip, now)
		ts.TimeAvailable = now + model.PreTripMinutes
	}
}

// DISCHARGING done: the part is served, then the truck heads for the next step,
// detours to reload, or returns home.
func (s *Simulator) finishDischarge(ts *model.TruckState, now int) {
	p := ts.Destination.Part
	if p == nil {
		s.deactivate(ts, now, faultBadPlan, "discharging without a part")
		return
	}
	p.Served = true
	s.world.RemoveActivePart(p)
	ts.LoadM3 -= p.DemandM3
	if ts.LoadM3 < model.LoadTolerance {
		ts.LoadM3 = 0
	}
	ts.PartsServed++
	metrics.PartsServed.Inc()
	s.Events.Emit(events.TopicParts, "part.served", now, map[string]any{"partId": p.PartID, "orderId": p.OrderID, "truckId": ts.Truck.ID})
	s.log.WithFields(log.Fields{"truck": ts.Truck.ID, "part": p.PartID, "time": FormatTime(now)}).Info("part served")

	popPlan(ts)
	ts.Destination = model.PlanStep{}

	if len(ts.Plan) == 0 {
		if kind, msg := s.depart(ts, model.DepotStep(ts.Truck.Home), model.StatusReturning, now, 0); kind != "" {
			s.deactivate(ts, now, kind, msg)
		}
		return
	}

	next := ts.Plan[0]
	if next.Kind == model.StepPart && ts.LoadM3 < next.Part.DemandM3-model.LoadTolerance {
		depot, _ := s.world.NearestReloadDepot(ts.Location, next.Part.DemandM3, nil)
		if depot == nil {
			s.deactivate(ts, now, faultNoReload, fmt.Sprintf("no depot holds %.2f m3 for part %d", next.Part.DemandM3, next.Part.PartID))
			return
		}
		if kind, msg := s.depart(ts, model.DepotStep(depot), model.StatusEnRouteToReload, now, 0); kind != "" {
			s.deactivate(ts, now, kind, msg)
			return
		}
		ts.ReloadDepot = depot
		return
	}
	if kind, msg := s.depart(ts, next, model.StatusEnRoute, now, 0); kind != "" {
		s.deactivate(ts, now, kind, msg)
	}
}

// EN_ROUTE_TO_RELOAD arrival: refuel, take what the depot can give, then leave
// for the planned part once the reload is done.
func (s *Simulator) reload(ts *model.TruckState, now int) {
	depot := ts.ReloadDepot
	if depot == nil {
		s.deactivate(ts, now, faultBadPlan, "reloading without a depot")
		return
	}
	s.burnLeg(ts)
	ts.Location = depot.Pos
	ts.FuelGal = model.MaxFuelGal

	want := math.Max(0, math.Min(ts.PlanDemand(), ts.Truck.Type.CapacityM3-ts.LoadM3))
	got := math.Min(want, depot.CapacityCurrent)
	depot.CapacityCurrent -= got
	ts.LoadM3 += got
	ts.Reloads++
	ts.ReloadDepot = nil
	ts.Destination = model.PlanStep{}
	metrics.ReloadStops.Inc()
	s.log.WithFields(log.Fields{"truck": ts.Truck.ID, "depot": depot.ID, "loaded": got, "left": depot.CapacityCurrent}).Info("reloaded")

	if len(ts.Plan) == 0 {
		s.deactivate(ts, now, faultBadPlan, "reloaded with nothing left to deliver")
		return
	}
	if kind, msg := s.depart(ts, ts.Plan[0], model.StatusEnRoute, now, model.ReloadMinutes); kind != "" {
		s.deactivate(ts, now, kind, msg)
	}
}

// RETURNING arrival at home: refuel at the plant and wait for work.
func (s *Simulator) returnHome(ts *model.TruckState, now int) {
	ts.LoadM3 = 0
	s.burnLeg(ts)
	home := ts.Truck.Home
	ts.Location = home.Pos
	if home.IsMainPlant() {
		ts.FuelGal = model.MaxFuelGal
	}
	ts.Destination = model.PlanStep{}
	s.setStatus(ts, model.StatusIdle, now)
	ts.TimeAvailable = now
}
