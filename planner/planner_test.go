// Copyright 2017 Anki, Inc.
// Author: gwenz@anki.com

package planner

import (
	"math"
	"testing"

	"github.com/anki/riskplanner/agent"
	"github.com/anki/riskplanner/config"
	"github.com/anki/riskplanner/environment"
	"github.com/anki/riskplanner/geometry"
	"github.com/anki/riskplanner/phys"
)

func newTestPlanner(cfg config.Config, env *environment.Environment) *EgoPlanner {
	return New(cfg, env, 4, 2, 0, 0, 0, 0.01, 0.01, 0, 0, 0)
}

func TestGoldenSectionMinFindsQuadraticVertex(t *testing.T) {
	f := func(u phys.MetersPerSec2) float64 {
		d := float64(u) - 1.3
		return d * d
	}
	got := goldenSectionMin(-3, 3, f, 30)
	if math.Abs(float64(got)-1.3) > 0.05 {
		t.Errorf("expected minimizer near 1.3, got %v", got)
	}
}

func TestGoldenSectionMinRespectsIterationCap(t *testing.T) {
	calls := 0
	f := func(u phys.MetersPerSec2) float64 {
		calls++
		return float64(u) * float64(u)
	}
	goldenSectionMin(-1, 1, f, 5)
	// two bracket seeds plus at most maxIter further evaluations.
	if calls > 7 {
		t.Errorf("expected at most 7 evaluations for maxIter=5, got %d", calls)
	}
}

func TestGoldenSectionMinDegenerateBounds(t *testing.T) {
	got := goldenSectionMin(2, 2, func(u phys.MetersPerSec2) float64 { return float64(u) }, 5)
	if got != 2 {
		t.Errorf("expected degenerate bounds to return the single point 2, got %v", got)
	}
}

func TestSearchBoundsDispatchesByMode(t *testing.T) {
	cfg := config.New()
	env := environment.New(30, 8)
	p := newTestPlanner(cfg, env)

	p.mode = Stop
	lo, hi := p.searchBounds()
	if lo != 0 || hi != cfg.JMax() {
		t.Errorf("Stop bounds = [%v,%v], want [0,%v]", lo, hi, cfg.JMax())
	}

	p.mode = Default
	p.u = 0
	lo, hi = p.searchBounds()
	if lo > hi {
		t.Errorf("Default bounds inverted: [%v,%v]", lo, hi)
	}
	if lo < cfg.AMin()-1e-9 || hi > cfg.AMax()+1e-9 {
		t.Errorf("Default bounds [%v,%v] outside [AMin,AMax]=[%v,%v]", lo, hi, cfg.AMin(), cfg.AMax())
	}

	p.mode = Emergency
	p.u = -2
	lo, hi = p.searchBounds()
	if lo > hi {
		t.Errorf("Emergency bounds inverted: [%v,%v]", lo, hi)
	}
}

func TestOptimizeFreeCruiseAcceleratesTowardVCruise(t *testing.T) {
	cfg := config.New()
	env := environment.New(30, 8)
	p := newTestPlanner(cfg, env)

	for i := 0; i < 40; i++ {
		p.Optimize()
	}

	if p.CurrentVelocity() <= 0 {
		t.Fatalf("expected ego to have accelerated from rest, got vx=%v", p.CurrentVelocity())
	}
	if p.Mode() == Stop {
		t.Errorf("expected ego to leave Stop mode on an empty road, stayed in %v", p.Mode())
	}
	if p.MinColValue() > 0.01 {
		t.Errorf("expected ~0 collision indicator on an empty road, got %v", p.MinColValue())
	}
}

func TestOptimizeBrakesForStaticObstacleAhead(t *testing.T) {
	cfg := config.New()
	env := environment.New(30, 8)
	p := New(cfg, env, 4, 2, 0, 0, 0, 0.01, 0.01, 8, 0, 0)
	p.mode = Default

	env.AddStaticObject(rectAt(1, 0))

	p.Optimize()

	if !p.Brake() {
		t.Errorf("expected brake to be armed with a static obstacle overlapping the ego's footprint")
	}
}

func TestOptimizeStopModeHoldsUntilClear(t *testing.T) {
	cfg := config.New()
	env := environment.New(30, 8)
	p := newTestPlanner(cfg, env)
	p.mode = Stop

	env.AddStaticObject(rectAt(1, 0))
	p.Optimize()

	if p.Mode() != Stop {
		t.Errorf("expected to remain in Stop with an immediate obstacle, got %v", p.Mode())
	}
	if p.CurrentVelocity() != 0 {
		t.Errorf("expected velocity to remain 0 while holding Stop, got %v", p.CurrentVelocity())
	}
}

func TestMoveTransitionsStopOnZeroVelocity(t *testing.T) {
	cfg := config.New()
	env := environment.New(30, 8)
	p := newTestPlanner(cfg, env)
	p.mode = Emergency

	p.move(0)

	if p.Mode() != Stop {
		t.Errorf("expected a step that lands at vx=0 to transition to Stop, got %v", p.Mode())
	}
}

func TestMoveTransitionsDriveOffToDefaultAboveThreshold(t *testing.T) {
	cfg := config.New()
	env := environment.New(30, 8)
	p := newTestPlanner(cfg, env)
	p.mode = DriveOff
	p.history[0].Pose.VDY.Vx = 6
	p.u = 0

	p.move(0)

	if p.Mode() != Default {
		t.Errorf("expected DriveOff to transition to Default above 5 m/s, got %v", p.Mode())
	}
}

func TestRestartResetsModeAndHistory(t *testing.T) {
	cfg := config.New()
	env := environment.New(30, 8)
	p := newTestPlanner(cfg, env)

	for i := 0; i < 5; i++ {
		p.Optimize()
	}
	p.Restart()

	if len(p.History()) != 1 {
		t.Errorf("expected history truncated to 1 entry after Restart, got %d", len(p.History()))
	}
	if p.Mode() != Default {
		t.Errorf("expected mode reset to Default after Restart, got %v", p.Mode())
	}
	if p.CurrentAcceleration() != p.initialU {
		t.Errorf("expected acceleration reset to initial input after Restart")
	}
}

func TestHistoricalRiskLengthMatchesHistory(t *testing.T) {
	cfg := config.New()
	env := environment.New(30, 8)
	p := newTestPlanner(cfg, env)

	v := agent.NewOtherVehicle(4, 2, 30, 0, -30, 0, 0.01, 0.01, 8, 0, cfg.DT(), false)
	env.AddVehicle(v)

	for i := 0; i < 10; i++ {
		p.Optimize()
		env.Move(cfg.DT(), cfg.ProcessNoise())
	}

	samples := p.HistoricalRisk()
	if len(samples) != len(p.History()) {
		t.Errorf("expected one risk sample per history entry, got %d samples for %d history entries",
			len(samples), len(p.History()))
	}
	for _, s := range samples {
		if s.Survival < 0 || s.Survival > 1 {
			t.Errorf("survival out of [0,1] at t=%v: %v", s.T, s.Survival)
		}
	}
}

func TestExportCurrentReflectsLatestOptimize(t *testing.T) {
	cfg := config.New()
	env := environment.New(30, 8)
	p := newTestPlanner(cfg, env)

	p.Optimize()
	exp := p.ExportCurrent()

	if exp.Mode != p.Mode() {
		t.Errorf("Export.Mode=%v does not match planner Mode()=%v", exp.Mode, p.Mode())
	}
	if len(exp.Predicted) == 0 {
		t.Errorf("expected a non-empty predicted-state table after Optimize")
	}
	for _, ps := range exp.Predicted {
		if ps.Std[0] <= 0 || ps.Std[1] <= 0 {
			t.Errorf("expected strictly positive exported std, got %v", ps.Std)
		}
	}
}

func TestOptimizeRecordsCollisionProbOnHypotheticalAgents(t *testing.T) {
	cfg := config.New()
	env := environment.New(30, 8)
	p := newTestPlanner(cfg, env)

	hv := agent.NewHypotheticalVehicle(4, 2, 1, 0, 1, 0, 0.01, 0.01, 0, 0, cfg.DT(), false, 1, 1)
	env.AddHypoVehicle(hv)
	hp := agent.NewHypotheticalPedestrian(1, 0, 1, 0, 0.01, 0.01, 0, 0, cfg.DT(), true, 1, 1)
	env.AddHypoPedestrian(hp)

	p.Optimize()

	if hv.Pcoll() <= 0 {
		t.Errorf("expected a hypothetical vehicle overlapping the ego footprint to record a nonzero Pcoll, got %v", hv.Pcoll())
	}
	if hp.Pcoll() <= 0 {
		t.Errorf("expected a hypothetical pedestrian overlapping the ego footprint to record a nonzero Pcoll, got %v", hp.Pcoll())
	}
}

func rectAt(x, y float64) geometry.Polygon {
	pose := phys.Pose{Point: phys.Point{X: phys.Meters(x), Y: phys.Meters(y)}, Theta: 0}
	return geometry.Rectangle(pose, 2, 2)
}
