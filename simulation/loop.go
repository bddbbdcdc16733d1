// Copyright 2017 Anki, Inc.
// Author: gwenz@anki.com
//
// Package simulation drives the fixed-step outer loop: tick the ego
// planner, advance every other agent, repeat until the configured
// simulation time elapses. This is the external surface a caller (a demo
// binary, a batch scenario runner, a test) embeds; it owns no rendering
// and no user input.
package simulation

import (
	"fmt"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"

	"github.com/anki/riskplanner/agent"
	"github.com/anki/riskplanner/config"
	"github.com/anki/riskplanner/environment"
	"github.com/anki/riskplanner/geometry"
	"github.com/anki/riskplanner/phys"
	"github.com/anki/riskplanner/planner"
)

// Loop is one simulation run: a config, an environment of agents, and the
// ego planner being evaluated against them. It doubles as the external
// facade a caller drives incrementally (AddEgoVehicle, AddOtherVehicle,
// AddPedestrian, AddStaticObject, Move, Reset, Restart) rather than
// requiring env and ego to be fully assembled up front.
type Loop struct {
	cfg config.Config
	env *environment.Environment
	ego *planner.EgoPlanner

	t     phys.Seconds
	ticks int
}

// New constructs a Loop ready to Step or Run around an already-built
// environment and ego planner. The caller is responsible for populating
// env with agents and static objects before the first Step; adding
// agents mid-run is supported (Environment.Add* has no "closed for
// registration" state) but any agent added after Optimize has already
// built its current-tick snapshot won't be seen until the next tick.
func New(cfg config.Config, env *environment.Environment, ego *planner.EgoPlanner) *Loop {
	return &Loop{cfg: cfg, env: env, ego: ego}
}

// NewEmpty constructs a Loop with its own fresh environment and no ego
// vehicle yet, for callers that build up a scenario incrementally through
// AddEgoVehicle/AddOtherVehicle/AddPedestrian/AddStaticObject instead of
// assembling an Environment and EgoPlanner up front.
func NewEmpty(cfg config.Config) *Loop {
	return &Loop{cfg: cfg, env: environment.New(cfg.FOVRange(), cfg.FOVWidth())}
}

// AddEgoVehicle constructs the ego planner at the given starting pose and
// input and installs it, replacing any previously added ego vehicle.
func (l *Loop) AddEgoVehicle(length, width phys.Meters, x, y phys.Meters, yaw phys.Radians,
	covLong, covLat float64, vx phys.MetersPerSec, u phys.MetersPerSec2, startTime phys.Seconds) {
	l.ego = planner.New(l.cfg, l.env, length, width, x, y, yaw, covLong, covLat, vx, u, startTime)
}

// AddOtherVehicle registers a vehicle agent with the environment.
func (l *Loop) AddOtherVehicle(length, width, fromX, fromY, toX, toY phys.Meters,
	covLong, covLat float64, vx phys.MetersPerSec, startTime phys.Seconds, isStop bool) {
	l.env.AddVehicle(agent.NewOtherVehicle(length, width, fromX, fromY, toX, toY, covLong, covLat, vx, startTime, l.cfg.DT(), isStop))
}

// AddPedestrian registers a pedestrian agent with the environment.
func (l *Loop) AddPedestrian(fromX, fromY, toX, toY phys.Meters,
	covLong, covLat float64, vx phys.MetersPerSec, startTime phys.Seconds, isStop bool) {
	l.env.AddPedestrian(agent.NewPedestrian(fromX, fromY, toX, toY, covLong, covLat, vx, startTime, l.cfg.DT(), isStop))
}

// AddStaticObject registers a fixed obstacle polygon with the environment.
func (l *Loop) AddStaticObject(poly geometry.Polygon) {
	l.env.AddStaticObject(poly)
}

// Step runs exactly one fixed-dT tick: the ego planner searches and
// commits its next input, then every other agent advances by the same
// dT. Order matters: the ego's search must see agents at their
// pre-tick poses, matching robo/system.go's Tick, which simulates motion
// before applying lights/collision bookkeeping for that same instant.
func (l *Loop) Step() {
	l.Move(l.cfg.DT())
}

// Move advances the simulation clock by dT and reports whether it did:
// it is a no-op, returning false, once an ego vehicle hasn't been added
// yet or the configured simulation time has already elapsed. Run()/Step()
// drive this internally; a caller assembling a scenario through
// AddEgoVehicle et al. can also call it directly.
func (l *Loop) Move(dT phys.Seconds) bool {
	if l.ego == nil || float64(l.t+dT) > float64(l.cfg.SimulationTime())+1e-9 {
		return false
	}
	l.ego.Optimize()
	l.env.Move(dT, l.cfg.ProcessNoise())
	l.t = phys.Seconds(floats.Round(float64(l.t+dT), 3))
	l.ticks++
	return true
}

// Reset tears the run down completely: the ego vehicle is discarded, the
// environment is replaced with a fresh empty one, and the clock returns
// to zero. This is a full teardown, distinct from Restart which keeps
// the same agents and only truncates history.
func (l *Loop) Reset() {
	l.ego = nil
	l.env = environment.New(l.cfg.FOVRange(), l.cfg.FOVWidth())
	l.t = 0
	l.ticks = 0
}

// Restart rewinds the clock and truncates every agent's history back to
// its starting pose without discarding any of them. It is a no-op if no
// ego vehicle has been added yet.
func (l *Loop) Restart() {
	if l.ego == nil {
		return
	}
	l.t = 0
	l.ticks = 0
	l.ego.Restart()
	l.env.Restart()
}

// CurrentTime is the simulation clock, advanced by Move/Step.
func (l *Loop) CurrentTime() phys.Seconds { return l.t }

// SimulationTime is the configured run length.
func (l *Loop) SimulationTime() phys.Seconds { return l.cfg.SimulationTime() }

// Done reports whether the configured simulation time has elapsed.
func (l *Loop) Done() bool {
	return float64(l.t) >= float64(l.cfg.SimulationTime())-1e-9
}

// Run steps the loop to completion, calling onTick (if non-nil) after
// every Step so a caller can narrate progress or collect per-tick
// diagnostics without the loop itself depending on any output surface.
func (l *Loop) Run(onTick func(l *Loop)) {
	for !l.Done() {
		l.Step()
		if onTick != nil {
			onTick(l)
		}
	}
}

// Ticks is the number of Step calls completed so far.
func (l *Loop) Ticks() int { return l.ticks }

// Ego exposes the planner being evaluated, for callers that need its
// Export or History beyond what Summary aggregates.
func (l *Loop) Ego() *planner.EgoPlanner { return l.ego }

// Environment exposes the tracked agents, for callers building their own
// diagnostics or visualizations.
func (l *Loop) Environment() *environment.Environment { return l.env }

// Summary is the end-of-run risk report: descriptive statistics over the
// ego's entire committed-history collision indicator, playing the same
// role lapmetrics.CompletedLapInfo plays for a race — a compact,
// printable record of how the run went.
type Summary struct {
	Ticks      int
	MeanRisk   float64
	StdDevRisk float64
	MaxRisk    float64
	P95Risk    float64
	// Braked reflects only the most recent tick's brake state; the
	// planner does not keep a per-tick brake history, so a true "was the
	// brake ever armed during this run" figure isn't available here.
	Braked     bool
	FinalSpeed float64
}

func (s Summary) String() string {
	return fmt.Sprintf(
		"Summary{ticks=%d, meanRisk=%.4f, stdDevRisk=%.4f, maxRisk=%.4f, p95Risk=%.4f, braked=%v, finalSpeed=%.3f}",
		s.Ticks, s.MeanRisk, s.StdDevRisk, s.MaxRisk, s.P95Risk, s.Braked, s.FinalSpeed)
}

// Summarize aggregates the ego's historical risk curve with
// github.com/montanaflynn/stats: mean and standard deviation are a
// one-line call, and a 95th-percentile over an entire run's samples is
// not worth hand-rolling a second-pass variance computation for.
func (l *Loop) Summarize() (Summary, error) {
	samples := l.ego.HistoricalRisk()
	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = s.MinColValue
	}

	mean, err := stats.Mean(values)
	if err != nil {
		return Summary{}, fmt.Errorf("simulation: computing mean risk: %w", err)
	}
	stddev, err := stats.StandardDeviation(values)
	if err != nil {
		return Summary{}, fmt.Errorf("simulation: computing risk stddev: %w", err)
	}
	maxRisk, err := stats.Max(values)
	if err != nil {
		return Summary{}, fmt.Errorf("simulation: computing max risk: %w", err)
	}
	p95, err := stats.Percentile(values, 95)
	if err != nil {
		return Summary{}, fmt.Errorf("simulation: computing p95 risk: %w", err)
	}

	return Summary{
		Ticks:      l.ticks,
		MeanRisk:   mean,
		StdDevRisk: stddev,
		MaxRisk:    maxRisk,
		P95Risk:    p95,
		Braked:     l.ego.Brake(),
		FinalSpeed: float64(l.ego.CurrentVelocity()),
	}, nil
}
