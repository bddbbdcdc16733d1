// Copyright 2017 Anki, Inc.
// Author: gwenz@anki.com
//
// Agent models everything in the environment that isn't the ego vehicle:
// other vehicles, pedestrians, and the hypothetical (occluded) variants of
// each. All four share one capability set so the environment and the
// planner can treat them uniformly; the Kind field tags the variant,
// rather than an interface hierarchy.

package agent

import (
	"fmt"
	"image/color"
	"math"
	"sort"

	"github.com/google/uuid"
	cn "golang.org/x/image/colornames"

	"github.com/anki/riskplanner/geometry"
	"github.com/anki/riskplanner/kinematics"
	"github.com/anki/riskplanner/phys"
)

// Kind tags the four agent variants. Construction and Move branch on Kind
// explicitly (an isStop pedestrian variant freezes at a stop timestamp, an
// isStop vehicle variant decelerates to its goal); the planner's risk pass
// iterates the environment's per-kind lists rather than a type hierarchy.
type Kind int

const (
	OtherVehicle Kind = iota
	Pedestrian
	HypotheticalVehicle
	HypotheticalPedestrian
)

func (k Kind) String() string {
	switch k {
	case OtherVehicle:
		return "OtherVehicle"
	case Pedestrian:
		return "Pedestrian"
	case HypotheticalVehicle:
		return "HypotheticalVehicle"
	case HypotheticalPedestrian:
		return "HypotheticalPedestrian"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// IsHypothetical reports whether this variant represents a postulated,
// unconfirmed agent rather than one observed directly.
func (k Kind) IsHypothetical() bool {
	return k == HypotheticalVehicle || k == HypotheticalPedestrian
}

// pedestrianLength and pedestrianWidth are a pedestrian's fixed footprint;
// pedestrians don't carry independently configured dimensions.
const (
	pedestrianLength phys.Meters = 1
	pedestrianWidth  phys.Meters = 1
)

// KindInfo carries a suggested display color per agent Kind, for the
// out-of-scope external visualizer. Modeled directly on robo/vehicle.go's
// vehTypeInfoTable: a small lookup table keyed by the variant tag rather
// than a field on every instance, since the color only ever depends on
// Kind, never on the individual agent.
type KindInfo struct {
	Name  string
	Color color.Color
}

var kindInfoTable = map[Kind]KindInfo{
	OtherVehicle:           {Name: "OtherVehicle", Color: cn.Royalblue},
	Pedestrian:             {Name: "Pedestrian", Color: cn.Orangered},
	HypotheticalVehicle:    {Name: "HypotheticalVehicle", Color: cn.Skyblue},
	HypotheticalPedestrian: {Name: "HypotheticalPedestrian", Color: cn.Sandybrown},
}

// Info returns this agent's display metadata.
func (k Kind) Info() KindInfo {
	info, ok := kindInfoTable[k]
	if !ok {
		panic(fmt.Sprintf("agent: Kind=%v has no KindInfo entry", k))
	}
	return info
}

// Export is the read-only snapshot returned to external callers: position,
// orientation, covariance, bounding polygon, detection state, and the
// latest observed collision indicator.
type Export struct {
	X, Y    phys.Meters
	Yaw     phys.Radians
	Cov     kinematics.Cov2
	Poly    geometry.Polygon
	Visible bool
	Pcoll   float64
	Kind    Kind
	Color   color.Color
}

// Agent is one other vehicle, pedestrian, or hypothetical variant thereof.
type Agent struct {
	ID            uuid.UUID
	Kind          Kind
	Length, Width phys.Meters

	// AppearRate and InteractRate only apply to hypothetical variants; they
	// are left at their zero value (0) for real agents, which is harmless
	// since real agents never have these multiplied into a rate.
	AppearRate   float64
	InteractRate float64

	u             phys.MetersPerSec2 // constant longitudinal acceleration input
	stopTimestamp phys.Seconds       // pedestrians only; +Inf if never stops

	detected bool
	pcoll    float64

	history []kinematics.PoseAt // append-only, strictly increasing T
	ppose   []kinematics.PoseAt // cleared and rebuilt by Predict
}

// newAgent builds the shared skeleton for all four variants: snap the
// start time to the dT grid, orient toward the goal point, and seed the
// history with a single starting pose.
func newAgent(kind Kind, length, width phys.Meters, fromX, fromY, toX, toY phys.Meters,
	covLong, covLat float64, vx phys.MetersPerSec, startTime phys.Seconds, dT phys.Seconds, isStop bool) *Agent {

	// +1e-9 guards against float64(dT) not dividing startTime exactly (eg
	// 5.0/0.1 rounding down to 49.999999999...) pushing a grid-aligned
	// startTime down to the wrong tick.
	gridTime := phys.Seconds(math.Floor(float64(startTime)/float64(dT)+1e-9)) * dT
	theta := phys.Radians(math.Atan2(float64(toY-fromY), float64(toX-fromX)))

	var u phys.MetersPerSec2
	var stopTimestamp phys.Seconds = phys.Seconds(math.Inf(1))
	if isStop {
		dist := phys.Dist(phys.Point{X: fromX, Y: fromY}, phys.Point{X: toX, Y: toY})
		if kind == Pedestrian || kind == HypotheticalPedestrian {
			// pedestrians travel at constant vx and simply stop at the goal
			u = 0
			stopTimestamp = gridTime + phys.Seconds(float64(dist)/float64(vx))
		} else {
			u = kinematics.ComputeAccToStop(dist, vx)
		}
	}

	startPose := kinematics.Pose{
		X: fromX, Y: fromY, Yaw: theta,
		Cov: kinematics.Cov2{Long: covLong, Lat: covLat},
		VDY: kinematics.VehicleDynamic{Vx: vx, Dvx: 0},
		T:   gridTime,
	}

	return &Agent{
		ID:            uuid.New(),
		Kind:          kind,
		Length:        length,
		Width:         width,
		u:             u,
		stopTimestamp: stopTimestamp,
		history:       []kinematics.PoseAt{{T: gridTime, Pose: startPose}},
	}
}

// NewOtherVehicle creates a directly-observed vehicle traveling in a
// straight line from (fromX,fromY) toward (toX,toY). If isStop, the
// vehicle decelerates to a stop exactly at the goal point; otherwise it
// holds vx constant.
func NewOtherVehicle(length, width, fromX, fromY, toX, toY phys.Meters, covLong, covLat float64, vx phys.MetersPerSec, startTime, dT phys.Seconds, isStop bool) *Agent {
	return newAgent(OtherVehicle, length, width, fromX, fromY, toX, toY, covLong, covLat, vx, startTime, dT, isStop)
}

// NewPedestrian creates a directly-observed pedestrian. If isStop, the
// pedestrian freezes in place (vx=0) once it reaches the goal point.
func NewPedestrian(fromX, fromY, toX, toY phys.Meters, covLong, covLat float64, vx phys.MetersPerSec, startTime, dT phys.Seconds, isStop bool) *Agent {
	return newAgent(Pedestrian, pedestrianLength, pedestrianWidth, fromX, fromY, toX, toY, covLong, covLat, vx, startTime, dT, isStop)
}

// NewHypotheticalVehicle creates a postulated, unconfirmed vehicle with
// the given appearance and awareness-of-ego probabilities.
func NewHypotheticalVehicle(length, width, fromX, fromY, toX, toY phys.Meters, covLong, covLat float64, vx phys.MetersPerSec, startTime, dT phys.Seconds, isStop bool, appearRate, interactRate float64) *Agent {
	a := newAgent(HypotheticalVehicle, length, width, fromX, fromY, toX, toY, covLong, covLat, vx, startTime, dT, isStop)
	a.AppearRate = appearRate
	a.InteractRate = interactRate
	return a
}

// NewHypotheticalPedestrian creates a postulated, unconfirmed pedestrian
// with the given appearance and awareness-of-ego probabilities.
func NewHypotheticalPedestrian(fromX, fromY, toX, toY phys.Meters, covLong, covLat float64, vx phys.MetersPerSec, startTime, dT phys.Seconds, isStop bool, appearRate, interactRate float64) *Agent {
	a := newAgent(HypotheticalPedestrian, pedestrianLength, pedestrianWidth, fromX, fromY, toX, toY, covLong, covLat, vx, startTime, dT, isStop)
	a.AppearRate = appearRate
	a.InteractRate = interactRate
	return a
}

// StartTime is the grid-snapped timestamp from which this agent
// contributes to predictions and collisions.
func (a *Agent) StartTime() phys.Seconds {
	return a.history[0].T
}

// CurrentPose is the agent's most recently recorded pose.
func (a *Agent) CurrentPose() kinematics.Pose {
	return a.history[len(a.history)-1].Pose
}

func (a *Agent) poseIndexAt(t phys.Seconds) (int, bool) {
	i := sort.Search(len(a.history), func(i int) bool {
		return a.history[i].T >= t
	})
	if i < len(a.history) && near(float64(a.history[i].T), float64(t)) {
		return i, true
	}
	return 0, false
}

func near(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9
}

// PoseAt returns the recorded pose at timestamp t, if one exists.
func (a *Agent) PoseAt(t phys.Seconds) (kinematics.Pose, bool) {
	if i, ok := a.poseIndexAt(t); ok {
		return a.history[i].Pose, true
	}
	return kinematics.Pose{}, false
}

// GetPoly returns the agent's bounding rectangle at timestamp t, if a
// recorded pose exists there.
func (a *Agent) GetPoly(t phys.Seconds) (geometry.Polygon, bool) {
	pose, ok := a.PoseAt(t)
	if !ok {
		return geometry.Polygon{}, false
	}
	return geometry.Rectangle(pose.ToPhysPose(), a.Length, a.Width), true
}

// Predict rebuilds the predicted-pose table from the current pose out to
// pT seconds, at dT spacing, using the agent's own constant acceleration
// (0 for any agent that isn't actively braking to a stop).
func (a *Agent) Predict(dT, pT phys.Seconds, q kinematics.ProcessNoise) {
	last := a.CurrentPose()
	a.ppose = kinematics.UpdatePoseList(last, a.u, last.T+pT, dT, q)
}

// HasPrediction reports whether the predicted-pose table currently holds
// at least one entry, ie whether the most recent Predict call produced a
// usable horizon.
func (a *Agent) HasPrediction() bool {
	return len(a.ppose) > 0
}

// PredictAt returns the predicted pose and polygon at timestamp t, lazily
// running Predict if the table doesn't yet cover it.
func (a *Agent) PredictAt(t phys.Seconds, dT, pT phys.Seconds, q kinematics.ProcessNoise) (kinematics.Pose, geometry.Polygon, bool) {
	if pose, poly, ok := a.lookupPredict(t); ok {
		return pose, poly, true
	}
	a.Predict(dT, pT, q)
	return a.lookupPredict(t)
}

func (a *Agent) lookupPredict(t phys.Seconds) (kinematics.Pose, geometry.Polygon, bool) {
	for _, pa := range a.ppose {
		if near(float64(pa.T), float64(t)) {
			return pa.Pose, geometry.Rectangle(pa.Pose.ToPhysPose(), a.Length, a.Width), true
		}
	}
	return kinematics.Pose{}, geometry.Polygon{}, false
}

// Move advances the agent by one fixed step dT, appending the new pose to
// history and clearing the detection flag (the environment must re-detect
// the agent on the next tick). Pedestrians (real or hypothetical) that
// have reached their stop timestamp freeze in place at vx=0 instead of
// continuing to integrate.
func (a *Agent) Move(dT phys.Seconds, q kinematics.ProcessNoise) {
	last := a.CurrentPose()
	nextT := phys.Seconds(math.Round((float64(last.T)+float64(dT))*100) / 100)

	var next kinematics.Pose
	if (a.Kind == Pedestrian || a.Kind == HypotheticalPedestrian) && float64(nextT) >= float64(a.stopTimestamp) {
		next = kinematics.Pose{
			X: last.X, Y: last.Y, Yaw: last.Yaw,
			Cov: last.Cov,
			VDY: kinematics.VehicleDynamic{Vx: 0, Dvx: 0},
			T:   nextT,
		}
	} else {
		next = kinematics.UpdatePose(last, a.u, dT, q)
	}

	a.history = append(a.history, kinematics.PoseAt{T: next.T, Pose: next})
	a.detected = false
}

// SetDetected marks whether the environment's current field-of-view check
// observed this agent.
func (a *Agent) SetDetected(v bool) {
	a.detected = v
}

// IsVisible reports the agent's current detection state.
func (a *Agent) IsVisible() bool {
	return a.detected
}

// Pcoll is the latest observed collision indicator recorded against this
// agent by the planner.
func (a *Agent) Pcoll() float64 {
	return a.pcoll
}

// SetCollisionProb records a newly observed collision indicator against
// this agent. This is monotone-max accumulation as specified, preserved
// verbatim including its saturate-at-1 quirk: since indicator is already
// in [0,1], max(pcoll, indicator, 1) is always 1.
func (a *Agent) SetCollisionProb(indicator float64) {
	a.pcoll = math.Max(math.Max(a.pcoll, indicator), 1)
}

// Restart truncates history back to the agent's first recorded pose and
// discards any predicted-pose table.
func (a *Agent) Restart() {
	a.history = a.history[:1]
	a.ppose = nil
	a.detected = false
	a.pcoll = 0
}

// ExportCurrent is a pure function of current state: position, covariance,
// bounding polygon, visibility, and latest collision indicator.
func (a *Agent) ExportCurrent() Export {
	pose := a.CurrentPose()
	return Export{
		X: pose.X, Y: pose.Y, Yaw: pose.Yaw,
		Cov:     pose.Cov,
		Poly:    geometry.Rectangle(pose.ToPhysPose(), a.Length, a.Width),
		Visible: a.detected,
		Pcoll:   a.pcoll,
		Kind:    a.Kind,
		Color:   a.Kind.Info().Color,
	}
}
