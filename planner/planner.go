// Copyright 2017 Anki, Inc.
// Author: gwenz@anki.com
//
// EgoPlanner is the ego vehicle's mode-switched bounded-scalar optimizer: at
// each tick it searches a small acceleration window for the input that
// minimizes a finite-horizon cost blending driving utility against
// probabilistic collision risk, commits that input, and advances its own
// pose. It owns its own mode; no other component may change it.

package planner

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/anki/riskplanner/config"
	"github.com/anki/riskplanner/environment"
	"github.com/anki/riskplanner/geometry"
	"github.com/anki/riskplanner/kinematics"
	"github.com/anki/riskplanner/phys"
	"github.com/anki/riskplanner/risk"
)

// Mode is the planner's driving phase. Exactly one mode is active at a time;
// it determines the search bounds for the next acceleration and the
// transition rules out of it. Encoded as a single enum with an exhaustive
// dispatch table rather than parallel booleans.
type Mode int

const (
	Stop Mode = iota
	DriveOff
	Default
	Emergency
)

func (m Mode) String() string {
	switch m {
	case Stop:
		return "Stop"
	case DriveOff:
		return "DriveOff"
	case Default:
		return "Default"
	case Emergency:
		return "Emergency"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// candidate is the per-u side effect recorded by totalCost: whether that
// candidate armed the brake, and the worst collision indicator it observed.
// Keyed by a fixed-precision integer so float64 values never collide or
// miss as map keys.
type candidate struct {
	brake       bool
	minColValue float64
}

func optKey(u phys.MetersPerSec2) int64 {
	return int64(math.Round(floats.Round(float64(u), 3) * 1000))
}

// eventRateAt is one entry of the predicted per-step event-rate table
// (escape rate excluded; see totalCost).
type eventRateAt struct {
	T    phys.Seconds
	Rate float64
}

// RiskSample is one tick of the non-live replay risk curve HistoricalRisk
// produces: the worst observed collision indicator, the total hazard rate,
// and the survival weight at that instant, re-derived from already
// committed history rather than a live prediction.
type RiskSample struct {
	T           phys.Seconds
	MinColValue float64
	EventRate   float64
	Survival    float64
}

// PredictedState is one entry of an ego export's predicted-state list: the
// predicted pose, its exported position standard deviation (position std
// plus the vehicle's own half-extent, left unmodeled-but-folded-in rather
// than separated out), and the bounding polygon at that point.
type PredictedState struct {
	Pose kinematics.Pose
	Std  [2]float64 // (longitudinal, lateral)
	Poly geometry.Polygon
}

// Export is the read-only snapshot of the ego vehicle's current state,
// returned to external callers.
type Export struct {
	X, Y      phys.Meters
	Yaw       phys.Radians
	Cov       kinematics.Cov2
	Poly      geometry.Polygon
	Pcoll     float64
	Mode      Mode
	Brake     bool
	Predicted []PredictedState
}

// EgoPlanner is the ego vehicle: its own kinematic state plus the mode
// machine and bounded search that chooses its next input.
type EgoPlanner struct {
	cfg config.Config
	env *environment.Environment

	length, width phys.Meters

	history  []kinematics.PoseAt
	uHistory []phys.MetersPerSec2

	u        phys.MetersPerSec2 // current committed input
	initialU phys.MetersPerSec2

	mode Mode

	brake        bool
	ttb          phys.Seconds
	minColValue  float64
	minRiskValue float64

	// Dynamic per-tick caches, cleared at the start of every Optimize call
	// and rewritten as a side effect of each totalCost(u) evaluation.
	snapshot environment.Snapshot
	ppose    []kinematics.PoseAt
	perate   []eventRateAt
	opt      map[int64]candidate
}

// New constructs the ego vehicle at the given starting pose and input,
// snapped onto the dT grid, in mode Default (the planner's documented
// initial state).
func New(cfg config.Config, env *environment.Environment, length, width phys.Meters,
	x, y phys.Meters, yaw phys.Radians, covLong, covLat float64,
	vx phys.MetersPerSec, u phys.MetersPerSec2, startTime phys.Seconds) *EgoPlanner {

	gridTime := phys.Seconds(floats.Round(float64(startTime)/float64(cfg.DT()), 0) * float64(cfg.DT()))
	startPose := kinematics.Pose{
		X: x, Y: y, Yaw: yaw,
		Cov: kinematics.Cov2{Long: covLong, Lat: covLat},
		VDY: kinematics.VehicleDynamic{Vx: vx, Dvx: 0},
		T:   gridTime,
	}

	return &EgoPlanner{
		cfg:      cfg,
		env:      env,
		length:   length,
		width:    width,
		history:  []kinematics.PoseAt{{T: gridTime, Pose: startPose}},
		u:        u,
		initialU: u,
		mode:     Default,
	}
}

// CurrentPose is the most recently committed pose.
func (p *EgoPlanner) CurrentPose() kinematics.Pose {
	return p.history[len(p.history)-1].Pose
}

// CurrentVelocity is the ego's current longitudinal speed.
func (p *EgoPlanner) CurrentVelocity() phys.MetersPerSec {
	return p.CurrentPose().VDY.Vx
}

// CurrentAcceleration is the most recently committed input.
func (p *EgoPlanner) CurrentAcceleration() phys.MetersPerSec2 {
	return p.u
}

// CurrentPoly is the ego's bounding rectangle at its current pose.
func (p *EgoPlanner) CurrentPoly() geometry.Polygon {
	return geometry.Rectangle(p.CurrentPose().ToPhysPose(), p.length, p.width)
}

// Mode is the planner's current driving phase.
func (p *EgoPlanner) Mode() Mode { return p.mode }

// Brake reports whether the most recent tick armed the emergency brake.
func (p *EgoPlanner) Brake() bool { return p.brake }

// MinColValue is the worst collision indicator observed during the most
// recent tick's chosen candidate.
func (p *EgoPlanner) MinColValue() float64 { return p.minColValue }

// TTB is the time-to-brake horizon computed at the most recent tick.
func (p *EgoPlanner) TTB() phys.Seconds { return p.ttb }

// History is the ordered, append-only list of committed poses.
func (p *EgoPlanner) History() []kinematics.PoseAt { return p.history }

// Restart truncates history back to the first recorded pose and resets the
// mode machine to its initial state, discarding every per-tick cache.
func (p *EgoPlanner) Restart() {
	p.history = p.history[:1]
	p.uHistory = nil
	p.u = p.initialU
	p.mode = Default
	p.brake = false
	p.minColValue = 0
	p.minRiskValue = 0
	p.ppose = nil
	p.perate = nil
	p.opt = nil
}

// searchBounds returns the [lo, hi] acceleration window for the current
// mode, per the mode-dispatched bounded search table, substituting the
// documented fallback interval whenever the natural bounds collapse
// (lo >= hi).
func (p *EgoPlanner) searchBounds() (lo, hi phys.MetersPerSec2) {
	cfg := p.cfg
	u := p.u

	switch p.mode {
	case Stop:
		return 0, cfg.JMax()

	case DriveOff:
		lo = maxAcc(u-cfg.JMax(), 0.5*cfg.AMin())
		hi = minAcc(u+cfg.JMax(), 0.5*cfg.AMax())
		if lo >= hi {
			lo, hi = 0.5*cfg.AMin(), 0.5*cfg.AMin()+cfg.JMax()
		}
		return lo, hi

	case Default:
		lo = maxAcc(u-cfg.JMax(), cfg.AMin())
		hi = minAcc(u+cfg.JMax(), cfg.AMax())
		if lo >= hi {
			lo, hi = cfg.AMin(), cfg.AMin()+cfg.JMax()
		}
		return lo, hi

	case Emergency:
		lo = maxAcc(u-cfg.JMaxBrake(), cfg.AMaxBrake())
		hi = u - cfg.JMaxBrake()
		if lo >= hi {
			lo, hi = cfg.AMaxBrake(), u
		}
		return lo, hi
	}

	panic(fmt.Sprintf("planner: unhandled mode %v", p.mode))
}

func maxAcc(a, b phys.MetersPerSec2) phys.MetersPerSec2 {
	if a > b {
		return a
	}
	return b
}

func minAcc(a, b phys.MetersPerSec2) phys.MetersPerSec2 {
	if a < b {
		return a
	}
	return b
}

// Optimize runs one full planner tick: refresh the environment snapshot,
// compute TTB, search the mode's acceleration window for the minimizing
// input, apply the mode transition rules, and commit one dT step of motion.
// Precondition: the ego vehicle must exist, which New guarantees by
// construction; there is no separate "no ego configured" state within a
// single EgoPlanner (that precondition is enforced one level up, by
// simulation.Loop, which is the only caller that can lack an ego).
func (p *EgoPlanner) Optimize() {
	cfg := p.cfg
	egoPose := p.CurrentPose()

	p.env.UpdateFOV(egoPose.ToPhysPose())
	p.snapshot = p.env.CurrentObjectList(egoPose.T, cfg.DT(), cfg.PredictStep(), cfg.PredictTime(), cfg.ProcessNoise())

	p.ttb = phys.Seconds(math.Abs(float64(egoPose.VDY.Vx)/float64(cfg.AMaxBrake()))) + cfg.TBrake()

	p.opt = make(map[int64]candidate)
	p.brake = false
	p.minColValue = 0
	p.ppose = nil
	p.perate = nil

	lo, hi := p.searchBounds()
	val := goldenSectionMin(lo, hi, p.totalCost, 5)

	// Re-evaluate at the winning candidate so the exported predicted-pose
	// and event-rate tables (p.ppose, p.perate) reflect the committed
	// trajectory rather than whatever candidate the search evaluated last.
	p.minRiskValue = p.totalCost(val)
	cand := p.opt[optKey(val)]
	p.brake, p.minColValue = cand.brake, cand.minColValue

	jerkFrac := phys.MetersPerSec2(float64(cfg.DT()) / float64(cfg.PredictStep()))
	var pu phys.MetersPerSec2

	switch p.mode {
	case Stop:
		if p.brake || p.minColValue > 0.5 {
			pu = 0
		} else {
			p.mode = DriveOff
			pu = p.u + (val-p.u)*jerkFrac
		}
	case DriveOff:
		if p.brake {
			p.mode = Emergency
		}
		pu = p.u + (val-p.u)*jerkFrac
	case Default:
		if p.brake {
			p.mode = Emergency
		}
		pu = p.u + (val-p.u)*jerkFrac
	case Emergency:
		pu = p.u + (val-p.u)*jerkFrac
	}

	p.move(pu)
}

// move commits one fixed dT step of motion under input pu, then applies the
// two motion-triggered mode transitions: reaching a standstill always moves
// to Stop (the only way out of Emergency), and crossing 5 m/s while in
// DriveOff moves to Default.
func (p *EgoPlanner) move(pu phys.MetersPerSec2) {
	last := p.CurrentPose()
	next := kinematics.UpdatePose(last, pu, p.cfg.DT(), p.cfg.ProcessNoise())

	p.history = append(p.history, kinematics.PoseAt{T: next.T, Pose: next})
	p.uHistory = append(p.uHistory, pu)
	p.u = pu

	if next.VDY.Vx == 0 {
		p.mode = Stop
		p.u = 0
	}
	if p.mode == DriveOff && next.VDY.Vx > 5 {
		p.mode = Default
	}
}

// utility is the driving-comfort term of the per-step cost: a steep penalty
// for exceeding cruise speed, a light penalty on the acceleration magnitude
// itself, and a jerk penalty against the currently committed input.
func (p *EgoPlanner) utility(pose kinematics.Pose, u phys.MetersPerSec2) float64 {
	cfg := p.cfg
	vx := float64(pose.VDY.Vx)
	vCruise := float64(cfg.VCruise())
	diff := vx - vCruise
	mult := 1.0
	if vx > vCruise {
		mult = 10.0
	}
	uCur := float64(p.u)
	uf := float64(u)
	return cfg.WV()*diff*diff*mult + cfg.WA()*uf*uf + cfg.WJ()*(uf-uCur)*(uf-uCur)
}

// totalCost is the objective the bounded search minimizes: predict the
// ego's own trajectory under u out to the horizon, and at each predicted
// step accumulate utility and risk discounted by the survival probability
// that no collision-terminating event has yet occurred. As a side effect it
// rewrites p.ppose, p.perate, p.brake, and p.minColValue for this
// candidate, and records (brake, minColValue) into p.opt keyed by u, where
// Optimize looks up the winning candidate's values after re-running
// totalCost at that candidate.
func (p *EgoPlanner) totalCost(u phys.MetersPerSec2) float64 {
	p.ppose = nil
	p.perate = nil
	p.brake = false
	p.minColValue = 0

	cfg := p.cfg
	last := p.CurrentPose()
	tNow := last.T

	p.ppose = kinematics.UpdatePoseList(last, u, tNow+cfg.PredictTime(), cfg.PredictStep(), cfg.ProcessNoise())

	cumRate := 0.0
	cost := 0.0
	survival := 1.0
	for _, k := range p.ppose {
		utilityCost := p.utility(k.Pose, u)
		riskCost, stepRate := p.riskAt(k, tNow)
		dCost := utilityCost + riskCost

		cumRate += stepRate
		survival = risk.Survival(cfg.EscapeRate()+cumRate, float64(cfg.PredictStep()))

		cost += dCost * survival
		p.perate = append(p.perate, eventRateAt{T: k.T, Rate: stepRate})
	}

	total := cost * survival * float64(cfg.PredictStep())
	p.opt[optKey(u)] = candidate{brake: p.brake, minColValue: p.minColValue}
	return total
}

// riskAt accumulates the per-step risk cost and event rate contributed by
// every hazard in the snapshot at predicted step k. Hypothetical agents are
// a what-if signal folded into cost and event rate only; they never set
// p.brake or p.minColValue, the two fields that drive the planner's own
// braking decision.
func (p *EgoPlanner) riskAt(k kinematics.PoseAt, tNow phys.Seconds) (cost, stepRate float64) {
	cfg := p.cfg
	egoPose := k.Pose
	egoVx := egoPose.VDY.Vx
	egoPhysPose := egoPose.ToPhysPose()
	egoPoly := geometry.Rectangle(egoPhysPose, p.length, p.width)

	if cfg.EnableFOVAware() {
		stdLon := phys.Meters(math.Sqrt(egoPose.Cov.Long))
		rate, riskVal := cfg.LimitViewRisk(egoVx, stdLon)
		stepRate += rate
		cost += riskVal
	}

	inflated := geometry.InflatedEgoPolygon(egoPhysPose, p.length, p.width, cfg.DBrakeMin())

	withinTTB := k.T <= tNow+p.ttb

	for _, so := range p.snapshot.StaticObjects {
		if !geometry.PolygonIntersects(inflated, so.Poly) {
			continue
		}
		sev := risk.CollisionEventSeverityDefault(egoVx, 0, cfg.SevVehicleMinWeight(), cfg.SevVehicleWeight())
		cost += cfg.CollisionRateMax() * sev
		stepRate += cfg.CollisionRateMax()
		p.minColValue = 1
		if withinTTB {
			p.brake = true
		}
	}

	for _, sv := range p.snapshot.StaticVehicles {
		_, svPoly, ok := sv.PredictAt(k.T, cfg.PredictStep(), cfg.PredictTime(), cfg.ProcessNoise())
		if !ok {
			continue
		}
		if !geometry.PolygonIntersects(inflated, svPoly) {
			continue
		}
		sev := risk.CollisionEventSeverityDefault(egoVx, 0, cfg.SevVehicleMinWeight(), cfg.SevVehicleWeight())
		cost += cfg.CollisionRateMax() * sev
		stepRate += cfg.CollisionRateMax()
		p.minColValue = 1
		if withinTTB {
			p.brake = true
		}
	}

	for _, v := range p.snapshot.Vehicles {
		vPose, vPoly, ok := v.PredictAt(k.T, cfg.PredictStep(), cfg.PredictTime(), cfg.ProcessNoise())
		if !ok {
			continue
		}
		indicator := risk.CollisionIndicator(egoPhysPose, vPose.ToPhysPose(), egoPoly, vPoly, egoPose.Cov, vPose.Cov)
		rate := risk.CollisionEventRate(indicator, cfg.CollisionRateMax(), cfg.CollisionRateExpBeta(), risk.RateExp)
		sev := risk.CollisionEventSeverityDefault(egoVx, vPose.VDY.Vx, cfg.SevVehicleMinWeight(), cfg.SevVehicleWeight())
		cost += risk.CollisionRisk(sev, rate)
		stepRate += rate
		if indicator > p.minColValue {
			p.minColValue = indicator
		}
		if withinTTB && indicator > cfg.MinColBrakeVehicle() {
			p.brake = true
		}
		v.SetCollisionProb(indicator)
	}

	for _, ped := range p.snapshot.Pedestrians {
		pPose, pPoly, ok := ped.PredictAt(k.T, cfg.PredictStep(), cfg.PredictTime(), cfg.ProcessNoise())
		if !ok {
			continue
		}
		indicator := risk.CollisionIndicator(egoPhysPose, pPose.ToPhysPose(), egoPoly, pPoly, egoPose.Cov, pPose.Cov)
		rate := risk.CollisionEventRate(indicator, cfg.CollisionRateMax(), cfg.CollisionRateExpBetaPed(), risk.RateExp)
		avgVx := (egoVx + pPose.VDY.Vx) / 2
		sev := risk.CollisionEventSeveritySigAvgVx(avgVx, cfg.SevPedMinWeight(), cfg.SevPedMaxWeight(), cfg.SevPedBeta(), float64(cfg.SevPedAvgVx()))
		cost += risk.CollisionRisk(sev, rate)
		stepRate += rate
		if indicator > p.minColValue {
			p.minColValue = indicator
		}
		if withinTTB && indicator > cfg.MinColBrakePedestrian() {
			p.brake = true
		}
		ped.SetCollisionProb(indicator)
	}

	for _, hp := range p.snapshot.HypoPedestrians {
		pPose, pPoly, ok := hp.PredictAt(k.T, cfg.PredictStep(), cfg.PredictTime(), cfg.ProcessNoise())
		if !ok {
			continue
		}
		indicator := risk.CollisionIndicator(egoPhysPose, pPose.ToPhysPose(), egoPoly, pPoly, egoPose.Cov, pPose.Cov)
		rate := risk.CollisionEventRate(indicator*hp.AppearRate, cfg.CollisionRateMax(), cfg.CollisionRateExpBetaPed(), risk.RateExp)
		if cfg.EnableFOVAware() {
			rate *= hp.InteractRate
		}
		sev := risk.CollisionEventSeverityHypoPedestrian(egoVx, cfg.SevHypoPedMinWeight(), float64(cfg.SevHypoPedAvgVx()),
			cfg.SevHypoPedSigMax(), cfg.SevHypoPedSigBeta(), cfg.SevHypoPedGomMax(), cfg.SevHypoPedGomBeta())
		cost += risk.CollisionRisk(sev, rate)
		stepRate += rate
		hp.SetCollisionProb(indicator)
	}

	for _, hv := range p.snapshot.HypoVehicles {
		vPose, vPoly, ok := hv.PredictAt(k.T, cfg.PredictStep(), cfg.PredictTime(), cfg.ProcessNoise())
		if !ok {
			continue
		}
		indicator := risk.CollisionIndicator(egoPhysPose, vPose.ToPhysPose(), egoPoly, vPoly, egoPose.Cov, vPose.Cov)
		rate := risk.CollisionEventRate(indicator*hv.AppearRate, cfg.CollisionRateMax(), cfg.CollisionRateExpBeta(), risk.RateExp)
		if cfg.EnableFOVAware() {
			rate *= hv.InteractRate
		}
		sev := risk.CollisionEventSeverityHypoVehicle(egoVx, cfg.SevHypoVehQuadWeight(), cfg.SevHypoVehMinWeight(),
			cfg.SevHypoVehSigMax(), float64(cfg.SevHypoVehSigAvgVx()), cfg.SevHypoVehSigBeta())
		cost += risk.CollisionRisk(sev, rate)
		stepRate += rate
		hv.SetCollisionProb(indicator)
	}

	return cost, stepRate
}

// HistoricalRisk replays the ego's already-committed history against the
// environment's own committed agent histories (not predictions), producing
// a non-live diagnostic risk/rate/survival curve distinct from the live
// totalCost used during optimization. There is no plotting here, unlike the
// original implementation this is grounded on; the caller decides what to
// do with the samples.
func (p *EgoPlanner) HistoricalRisk() []RiskSample {
	cfg := p.cfg
	samples := make([]RiskSample, 0, len(p.history))
	cumRate := 0.0

	for _, h := range p.history {
		minCol := 0.0
		rate := 0.0
		egoPoly := geometry.Rectangle(h.Pose.ToPhysPose(), p.length, p.width)

		score := func(a interface {
			PoseAt(t phys.Seconds) (kinematics.Pose, bool)
			GetPoly(t phys.Seconds) (geometry.Polygon, bool)
		}, beta float64) {
			pose, ok := a.PoseAt(h.T)
			if !ok {
				return
			}
			poly, ok := a.GetPoly(h.T)
			if !ok {
				return
			}
			indicator := risk.CollisionIndicator(h.Pose.ToPhysPose(), pose.ToPhysPose(), egoPoly, poly, h.Pose.Cov, pose.Cov)
			if indicator > minCol {
				minCol = indicator
			}
			rate += risk.CollisionEventRate(indicator, cfg.CollisionRateMax(), beta, risk.RateExp)
		}

		for _, v := range p.env.Vehicles() {
			score(v, cfg.CollisionRateExpBeta())
		}
		for _, ped := range p.env.Pedestrians() {
			score(ped, cfg.CollisionRateExpBetaPed())
		}

		rate += cfg.EscapeRate()
		cumRate += rate
		s := risk.Survival(cumRate, float64(cfg.DT()))

		samples = append(samples, RiskSample{T: h.T, MinColValue: minCol, EventRate: rate, Survival: s})
	}

	return samples
}

// ExportCurrent is a pure function of current state: the committed pose,
// plus the predicted-state list left over from the most recent Optimize
// call.
func (p *EgoPlanner) ExportCurrent() Export {
	pose := p.CurrentPose()
	halfLen := float64(p.length) / 2
	halfWid := float64(p.width) / 2

	predicted := make([]PredictedState, 0, len(p.ppose))
	for _, k := range p.ppose {
		predicted = append(predicted, PredictedState{
			Pose: k.Pose,
			Std: [2]float64{
				math.Sqrt(k.Pose.Cov.Long) + halfLen,
				math.Sqrt(k.Pose.Cov.Lat) + halfWid,
			},
			Poly: geometry.Rectangle(k.Pose.ToPhysPose(), p.length, p.width),
		})
	}

	return Export{
		X: pose.X, Y: pose.Y, Yaw: pose.Yaw,
		Cov:       pose.Cov,
		Poly:      geometry.Rectangle(pose.ToPhysPose(), p.length, p.width),
		Pcoll:     p.minColValue,
		Mode:      p.mode,
		Brake:     p.brake,
		Predicted: predicted,
	}
}

// goldenSectionMin minimizes f over [lo, hi] using golden-section search
// with a hard iteration cap: a fixed algorithm with no adaptive retries,
// so two runs over the same bracket always take the same number of steps.
// It tracks and returns the best
// of every point f was actually evaluated at, rather than just the final
// bracket midpoint, so the returned value is always a key already present
// in any per-candidate cache f populated as a side effect.
func goldenSectionMin(lo, hi phys.MetersPerSec2, f func(phys.MetersPerSec2) float64, maxIter int) phys.MetersPerSec2 {
	const invPhi = 0.6180339887498949 // (sqrt(5)-1)/2

	bestU := lo
	bestCost := math.Inf(1)
	eval := func(u float64) float64 {
		cost := f(phys.MetersPerSec2(u))
		if cost < bestCost {
			bestCost = cost
			bestU = phys.MetersPerSec2(u)
		}
		return cost
	}

	a, b := float64(lo), float64(hi)
	if b <= a {
		eval(a)
		return bestU
	}

	c := b - invPhi*(b-a)
	d := a + invPhi*(b-a)
	fc := eval(c)
	fd := eval(d)

	for i := 0; i < maxIter; i++ {
		if fc < fd {
			b, d, fd = d, c, fc
			c = b - invPhi*(b-a)
			fc = eval(c)
		} else {
			a, c, fc = c, d, fd
			d = a + invPhi*(b-a)
			fd = eval(d)
		}
	}

	return bestU
}
