// Package sim advances the world minute by minute: orders arrive, blockages
// toggle, depots refill at midnight, trucks run their plans and the planner is
// called again whenever new work shows up.
package sim

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"lpgroute/internal/events"
	"lpgroute/internal/metrics"
	"lpgroute/internal/model"
	"lpgroute/internal/opt"
	"lpgroute/internal/state"
)

type Options struct {
	// Duration is the last simulated minute, inclusive.
	Duration int
	Replan   bool
	// TickDelay is a wall-clock pause after each minute, for live viewing.
	TickDelay time.Duration
	// ProgressEvery is the progress log interval in minutes; 0 disables it.
	ProgressEvery int
	// SnapshotEvery is the snapshot event interval in minutes; 0 disables it.
	SnapshotEvery int
	Planner       opt.Config
}

func DefaultOptions() Options {
	return Options{
		Duration:      8 * model.MinutesPerDay,
		Replan:        true,
		ProgressEvery: 60,
		Planner:       opt.DefaultConfig(),
	}
}

// Simulator owns the world for the duration of a run. Ticks hold the write
// lock; Snapshot, TruckViews, UnservedParts and Report hold the read lock.
type Simulator struct {
	mu      sync.RWMutex
	world   *state.World
	opts    Options
	planner *opt.Planner
	log     *log.Entry

	// Events receives truck, part, plan and snapshot events; nil disables them.
	Events *events.Publisher
	RunID  string

	started, finished time.Time
	nextOrder         int
	ordersActivated   int
	replans           int
	faults            int
	// inactivated is set when a truck went INACTIVE during the current minute.
	inactivated bool
}

func New(w *state.World, opts Options) *Simulator {
	id := uuid.NewString()
	return &Simulator{
		world:   w,
		opts:    opts,
		planner: opt.NewPlanner(w, opts.Planner),
		log:     log.WithFields(log.Fields{"component": "sim", "run": id}),
		RunID:   id,
	}
}

// Run builds a simulator over w and runs it to completion.
func Run(ctx context.Context, w *state.World, opts Options) (*Simulator, error) {
	s := New(w, opts)
	return s, s.Run(ctx)
}

// Run advances from minute 0 to the configured duration. Cancellation is
// honoured between minutes.
func (s *Simulator) Run(ctx context.Context) error {
	s.mu.Lock()
	s.started = time.Now()
	s.mu.Unlock()
	s.log.WithFields(log.Fields{"duration": s.opts.Duration, "replan": s.opts.Replan, "orders": len(s.world.PendingOrders)}).Info("simulation started")

	var timer *time.Timer
	for now := 0; now <= s.opts.Duration; now++ {
		if err := ctx.Err(); err != nil {
			s.finish(now - 1)
			return err
		}
		s.tick(now)
		if s.opts.TickDelay > 0 {
			if timer == nil {
				timer = time.NewTimer(s.opts.TickDelay)
			} else {
				timer.Reset(s.opts.TickDelay)
			}
			select {
			case <-ctx.Done():
				timer.Stop()
				s.finish(now)
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	s.finish(s.opts.Duration)
	return nil
}

func (s *Simulator) finish(last int) {
	s.mu.Lock()
	s.finished = time.Now()
	active := len(s.world.ActiveParts)
	s.mu.Unlock()
	s.log.WithFields(log.Fields{
		"minute":   last,
		"time":     FormatTime(max(last, 0)),
		"replans":  s.replans,
		"faults":   s.faults,
		"unserved": active,
	}).Info("simulation finished")
}

// tick processes one minute: activate orders, update blockages, midnight
// refill, step trucks in fleet order, then replan.
func (s *Simulator) tick(now int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.world
	w.Now = now
	s.inactivated = false

	activated := s.activateOrders(now)
	s.updateBlockages(now)
	s.refillDepots(now)
	for _, t := range w.Fleet {
		s.advanceTruck(w.Trucks[t.ID], now)
	}
	if s.opts.Replan && (activated || s.inactivated) {
		s.replan(now)
	}

	s.observe(now)
	if s.opts.ProgressEvery > 0 && now > 0 && now%s.opts.ProgressEvery == 0 {
		s.log.WithFields(log.Fields{"time": FormatTime(now), "activeParts": len(w.ActiveParts)}).Info("progress")
	}
	if s.Events != nil && s.opts.SnapshotEvery > 0 && now%s.opts.SnapshotEvery == 0 {
		s.Events.Emit(events.TopicSnapshot, "snapshot", now, map[string]any{"snapshot": s.snapshotLocked()})
	}
}

func (s *Simulator) activateOrders(now int) bool {
	w := s.world
	activated := false
	for s.nextOrder < len(w.PendingOrders) && w.PendingOrders[s.nextOrder].ArrivalMinute <= now {
		o := w.PendingOrders[s.nextOrder]
		s.nextOrder++
		parts := w.ActivateOrder(o)
		s.ordersActivated++
		activated = true
		metrics.PartsActivated.Add(float64(len(parts)))
		s.log.WithFields(log.Fields{"order": o.ID, "parts": len(parts), "volume": o.VolumeM3, "time": FormatTime(now)}).Debug("order activated")
		for _, p := range parts {
			s.Events.Emit(events.TopicParts, "part.activated", now, map[string]any{
				"partId": p.PartID, "orderId": p.OrderID, "x": p.Pos.X, "y": p.Pos.Y, "demandM3": p.DemandM3, "deadline": p.DeadlineMinute,
			})
		}
	}
	return activated
}

// updateBlockages rebuilds the matrix whenever a blockage starts or ends at now,
// so overlapping blockages on the same cell stay consistent.
func (s *Simulator) updateBlockages(now int) bool {
	w := s.world
	changed := false
	for _, b := range w.Blockages {
		if b.StartMinute == now || b.EndMinute == now {
			changed = true
			break
		}
	}
	if !changed {
		return false
	}
	w.Grid.Clear()
	active := 0
	for _, b := range w.Blockages {
		if !b.ActiveAt(now) {
			continue
		}
		active++
		for _, c := range b.Cells {
			w.Grid.SetBlocked(c, true)
		}
	}
	s.log.WithFields(log.Fields{"time": FormatTime(now), "active": active, "cells": w.Grid.BlockedCount()}).Debug("blockages updated")
	return true
}

func (s *Simulator) refillDepots(now int) {
	if now <= 0 || now%model.MinutesPerDay != 0 {
		return
	}
	for _, d := range s.world.Depots {
		if !d.IsMainPlant() {
			d.CapacityCurrent = d.CapacityMax
		}
	}
	s.log.WithField("day", now/model.MinutesPerDay).Info("intermediate depots refilled")
}

func (s *Simulator) replan(now int) {
	parts := s.unservedLocked()
	if len(parts) == 0 {
		return
	}
	// Trucks have already moved this minute, so a new plan starts at the next.
	dispatch := now + 1
	s.log.WithFields(log.Fields{"time": FormatTime(now), "parts": len(parts)}).Info("replanning")
	sol, m := s.planner.Plan(parts, dispatch)
	opt.RecordMetrics(s.RunID, now, m)
	metrics.PlannerRuns.Inc()
	metrics.PlannerIterations.Add(float64(m.Iterations))
	metrics.PlannerDuration.Observe(m.Elapsed.Seconds())
	metrics.PlannerUnassigned.Set(float64(len(sol.Unassigned)))

	applied := s.applyLocked(sol, now)
	s.replans++
	metrics.Replans.Inc()
	s.log.WithFields(log.Fields{"cost": FormatCost(sol.TotalCost), "unassigned": len(sol.Unassigned), "trucks": applied}).Info("plan applied")
	s.Events.Emit(events.TopicPlans, "plan.applied", now, map[string]any{
		"cost": finite(sol.TotalCost), "fuel": finite(sol.OperationalFuelCost), "unassigned": len(sol.Unassigned), "trucks": applied,
	})
}

// ApplySolution writes each route, followed by its end depot, into the plan of
// its truck when that truck is IDLE and free at now. It returns the number of
// trucks that received a plan.
func (s *Simulator) ApplySolution(sol *model.Solution, now int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(sol, now)
}

func (s *Simulator) applyLocked(sol *model.Solution, now int) int {
	if sol == nil {
		return 0
	}
	n := 0
	for _, r := range sol.Routes {
		ts := s.world.Trucks[r.Truck.ID]
		if ts == nil || ts.Status != model.StatusIdle || ts.TimeAvailable > now {
			continue
		}
		plan := make([]model.PlanStep, 0, len(r.Sequence)+1)
		for _, p := range r.Sequence {
			plan = append(plan, model.PartStep(p))
		}
		plan = append(plan, model.DepotStep(r.EndDepot))
		ts.Plan = plan
		ts.History = append(ts.History, r.Clone())
		n++
		s.log.WithFields(log.Fields{"truck": ts.Truck.ID, "parts": len(r.Sequence)}).Debug("route assigned")
	}
	return n
}

// UnservedParts returns the active parts that no busy truck is carrying or
// driving towards. Parts in the plan of an IDLE truck count as unserved.
func (s *Simulator) UnservedParts() []*model.CustomerPart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unservedLocked()
}

func (s *Simulator) unservedLocked() []*model.CustomerPart {
	taken := map[int]bool{}
	for _, t := range s.world.Fleet {
		ts := s.world.Trucks[t.ID]
		if !ts.Busy() {
			continue
		}
		for _, step := range ts.Plan {
			if step.Kind == model.StepPart {
				taken[step.Part.PartID] = true
			}
		}
		if ts.Destination.Kind == model.StepPart {
			taken[ts.Destination.Part.PartID] = true
		}
	}
	var out []*model.CustomerPart
	for _, p := range s.world.ActiveParts {
		if !taken[p.PartID] {
			out = append(out, p)
		}
	}
	return out
}

func (s *Simulator) observe(now int) {
	metrics.SimMinute.Set(float64(now))
	counts := map[model.TruckStatus]int{}
	for _, ts := range s.world.Trucks {
		counts[ts.Status]++
	}
	for _, st := range model.Statuses {
		metrics.TruckStatus.WithLabelValues(string(st)).Set(float64(counts[st]))
	}
	for _, d := range s.world.Depots {
		if !d.IsMainPlant() {
			metrics.DepotLevel.WithLabelValues(d.ID).Set(d.CapacityCurrent)
		}
	}
}

// finite maps infinite costs to nil for JSON payloads.
func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}
