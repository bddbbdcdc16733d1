// Copyright 2017 Anki, Inc.
// Author: gwenz@anki.com
//
// Environment holds every non-ego agent and static object in the world,
// and produces the per-tick snapshot the planner's risk kernel evaluates
// against. It is intentionally dumb: scenario construction, hypothesis
// generation, and true sensor FOV geometry are all external collaborators
// (see the simulation package's constructors); this package only tracks
// state and exposes read-only views of it.

package environment

import (
	"github.com/google/uuid"

	"github.com/anki/riskplanner/agent"
	"github.com/anki/riskplanner/geometry"
	"github.com/anki/riskplanner/kinematics"
	"github.com/anki/riskplanner/phys"
)

// StaticObject is a fixed obstacle with no kinematics of its own, such as a
// curb, parked structure, or road edge intrusion.
type StaticObject struct {
	ID   uuid.UUID
	Poly geometry.Polygon
}

// Snapshot is the read-only view of the environment handed to the planner
// for one tick. The planner must not mutate anything reachable from a
// Snapshot.
type Snapshot struct {
	Vehicles        []*agent.Agent
	StaticVehicles  []*agent.Agent
	StaticObjects   []StaticObject
	Pedestrians     []*agent.Agent
	HypoVehicles    []*agent.Agent
	HypoPedestrians []*agent.Agent
	FOVPolygon      geometry.Polygon
	FOVRange        phys.Meters
}

// Environment is the mutable store of agents and static objects that
// Snapshot is built from.
type Environment struct {
	vehicles        []*agent.Agent
	pedestrians     []*agent.Agent
	hypoVehicles    []*agent.Agent
	hypoPedestrians []*agent.Agent
	staticObjects   []StaticObject

	fovRange phys.Meters
	fovWidth phys.Meters

	lastFOVPolygon geometry.Polygon
	lastFOVRange   phys.Meters
}

// New creates an empty environment with the given sensor field-of-view
// range and lateral width, used to build the forward-looking FOV rectangle
// in UpdateFOV.
func New(fovRange, fovWidth phys.Meters) *Environment {
	return &Environment{fovRange: fovRange, fovWidth: fovWidth}
}

// Vehicles, Pedestrians, HypoVehicles, and HypoPedestrians expose the full,
// unfiltered agent lists tracked by the environment (unlike the per-tick
// CurrentObjectList snapshot, which excludes agents that haven't started
// yet). Used by diagnostics that replay already-committed history, where
// "has this agent's start time elapsed by now" no longer applies.
func (e *Environment) Vehicles() []*agent.Agent        { return e.vehicles }
func (e *Environment) Pedestrians() []*agent.Agent     { return e.pedestrians }
func (e *Environment) HypoVehicles() []*agent.Agent    { return e.hypoVehicles }
func (e *Environment) HypoPedestrians() []*agent.Agent { return e.hypoPedestrians }

func (e *Environment) AddVehicle(a *agent.Agent)        { e.vehicles = append(e.vehicles, a) }
func (e *Environment) AddPedestrian(a *agent.Agent)     { e.pedestrians = append(e.pedestrians, a) }
func (e *Environment) AddHypoVehicle(a *agent.Agent)    { e.hypoVehicles = append(e.hypoVehicles, a) }
func (e *Environment) AddHypoPedestrian(a *agent.Agent) { e.hypoPedestrians = append(e.hypoPedestrians, a) }
func (e *Environment) AddStaticObject(poly geometry.Polygon) {
	e.staticObjects = append(e.staticObjects, StaticObject{ID: uuid.New(), Poly: poly})
}

// UpdateFOV recomputes the field-of-view polygon as a forward-facing
// rectangle anchored at egoPose, extending fovRange meters ahead and
// fovWidth meters wide. The result is cached so repeated lookups within a
// tick don't recompute it.
func (e *Environment) UpdateFOV(egoPose phys.Pose) (geometry.Polygon, phys.Meters) {
	center := egoPose.AdvancePose(phys.Pose{Point: phys.Point{X: e.fovRange / 2, Y: 0}, Theta: 0})
	poly := geometry.Rectangle(center, e.fovRange, e.fovWidth)
	e.lastFOVPolygon = poly
	e.lastFOVRange = e.fovRange
	return poly, e.fovRange
}

// LastFOV returns the most recently computed FOV polygon and range,
// without recomputing it.
func (e *Environment) LastFOV() (geometry.Polygon, phys.Meters) {
	return e.lastFOVPolygon, e.lastFOVRange
}

// CurrentObjectList builds the per-tick Snapshot: only agents whose start
// time has elapsed and whose prediction table can produce at least one
// horizon step are included. Static vehicles (currently at rest) are
// split out of the moving-vehicle list.
func (e *Environment) CurrentObjectList(tNow, dT, predictStep, predictTime phys.Seconds, q kinematics.ProcessNoise) Snapshot {
	snap := Snapshot{
		StaticObjects: e.staticObjects,
	}
	snap.FOVPolygon, snap.FOVRange = e.LastFOV()

	for _, v := range e.vehicles {
		if !startedAndPredictable(v, tNow, predictStep, predictTime, q) {
			continue
		}
		if v.CurrentPose().VDY.Vx == 0 {
			snap.StaticVehicles = append(snap.StaticVehicles, v)
		} else {
			snap.Vehicles = append(snap.Vehicles, v)
		}
	}
	for _, p := range e.pedestrians {
		if startedAndPredictable(p, tNow, predictStep, predictTime, q) {
			snap.Pedestrians = append(snap.Pedestrians, p)
		}
	}
	for _, hv := range e.hypoVehicles {
		if startedAndPredictable(hv, tNow, predictStep, predictTime, q) {
			snap.HypoVehicles = append(snap.HypoVehicles, hv)
		}
	}
	for _, hp := range e.hypoPedestrians {
		if startedAndPredictable(hp, tNow, predictStep, predictTime, q) {
			snap.HypoPedestrians = append(snap.HypoPedestrians, hp)
		}
	}
	return snap
}

func startedAndPredictable(a *agent.Agent, tNow, predictStep, predictTime phys.Seconds, q kinematics.ProcessNoise) bool {
	if float64(a.StartTime()) > float64(tNow)+1e-9 {
		return false
	}
	a.Predict(predictStep, predictTime, q)
	return a.HasPrediction()
}

// Move advances every tracked agent by one fixed step dT.
func (e *Environment) Move(dT phys.Seconds, q kinematics.ProcessNoise) {
	for _, v := range e.vehicles {
		v.Move(dT, q)
	}
	for _, p := range e.pedestrians {
		p.Move(dT, q)
	}
	for _, hv := range e.hypoVehicles {
		hv.Move(dT, q)
	}
	for _, hp := range e.hypoPedestrians {
		hp.Move(dT, q)
	}
}

// Restart truncates every tracked agent's history back to its first pose.
func (e *Environment) Restart() {
	for _, v := range e.vehicles {
		v.Restart()
	}
	for _, p := range e.pedestrians {
		p.Restart()
	}
	for _, hv := range e.hypoVehicles {
		hv.Restart()
	}
	for _, hp := range e.hypoPedestrians {
		hp.Restart()
	}
}
