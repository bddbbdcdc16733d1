// Copyright 2017 Anki, Inc.
// Author: gwenz@anki.com
//
// config.go collects every named numeric tunable the planner, risk kernels,
// and kinematics predictor reference, into a single read-mostly record built
// once at start-up. Unless there is a very good reason not to, this is THE
// way to configure the planner, mirroring engine/cliconfig.go's flag-based
// construction for the rest of the SDK.

package config

import (
	"flag"
	"fmt"

	"github.com/anki/riskplanner/kinematics"
	"github.com/anki/riskplanner/phys"
	"github.com/anki/riskplanner/risk"
)

// Config is a read-mostly record of named scalars. All fields are set at
// construction except dT/SimulationTime/PredictTime, which SetTimeParameters
// may update afterward, keeping the time grid mutable independently of
// every other tunable.
type Config struct {
	// Time grid; SetTimeParameters may change dT, predictTime and
	// simulationTime (predictStep is fixed at construction).
	dT             phys.Seconds
	predictStep    phys.Seconds
	predictTime    phys.Seconds
	simulationTime phys.Seconds

	// Driving utility.
	vCruise phys.MetersPerSec
	wV      float64
	wA      float64
	wJ      float64

	// Acceleration/jerk bounds and the Emergency/TTB constants.
	aMin      phys.MetersPerSec2
	aMax      phys.MetersPerSec2
	aMaxBrake phys.MetersPerSec2
	jMax      phys.MetersPerSec2
	jMaxBrake phys.MetersPerSec2
	tBrake    phys.Seconds

	// Collision rate model.
	collisionRateMax         float64
	collisionRateExpBeta     float64
	collisionRateExpBetaPed  float64
	minColBrakeVehicle       float64
	minColBrakePedestrian    float64
	escapeRate               float64

	// Severity models, one parameter set per agent variant.
	sevVehicleWeight    float64
	sevVehicleMinWeight float64

	sevPedAvgVx     phys.MetersPerSec
	sevPedMaxWeight float64
	sevPedBeta      float64
	sevPedMinWeight float64

	sevHypoPedAvgVx     phys.MetersPerSec
	sevHypoPedSigMax    float64
	sevHypoPedSigBeta   float64
	sevHypoPedGomMax    float64
	sevHypoPedGomBeta   float64
	sevHypoPedMinWeight float64

	sevHypoVehQuadWeight float64
	sevHypoVehSigMax     float64
	sevHypoVehSigAvgVx   phys.MetersPerSec
	sevHypoVehSigBeta    float64
	sevHypoVehMinWeight  float64

	// Field-of-view awareness (feeds risk.LimitViewRisk).
	enableFOVAware bool
	fovRange       phys.Meters
	fovWidth       phys.Meters
	fovAWidthFor   phys.MetersPerSec2 // aBrake used in limitViewRisk's d_stop
	dBrakeMin      phys.Meters        // also backs geometry.InflatedEgoPolygon
	tReact         phys.Seconds
	fovRateMax     float64
	fovRateBeta    float64
	fovSevMinWeight float64
	fovSevWeight    float64

	// Kinematics process noise.
	q kinematics.ProcessNoise
}

// New returns a Config populated with the documented scenario defaults
// (dT=0.1, PREDICT_STEP=0.2, PREDICT_TIME=3.0, SIM=10.0, vCruise=8,
// A_MIN=-3, A_MAX=2, A_MAX_BRAKE=-6, J_MAX=1) plus reasonable
// implementation-defined values for everything left otherwise unstated.
func New() Config {
	return Config{
		dT:             0.1,
		predictStep:    0.2,
		predictTime:    3.0,
		simulationTime: 10.0,

		vCruise: 8,
		wV:      1.0,
		wA:      0.5,
		wJ:      0.2,

		aMin:      -3,
		aMax:      2,
		aMaxBrake: -6,
		jMax:      1,
		jMaxBrake: 2,
		tBrake:    0.3,

		collisionRateMax:        3.0,
		collisionRateExpBeta:    4.0,
		collisionRateExpBetaPed: 6.0,
		minColBrakeVehicle:      0.3,
		minColBrakePedestrian:   0.2,
		escapeRate:              0.01,

		sevVehicleWeight:    1.0,
		sevVehicleMinWeight: 0.05,

		sevPedAvgVx:     5.0,
		sevPedMaxWeight: 1.0,
		sevPedBeta:      1.5,
		sevPedMinWeight: 0.1,

		sevHypoPedAvgVx:     5.0,
		sevHypoPedSigMax:    0.8,
		sevHypoPedSigBeta:   1.5,
		sevHypoPedGomMax:    0.8,
		sevHypoPedGomBeta:   1.0,
		sevHypoPedMinWeight: 0.05,

		sevHypoVehQuadWeight: 0.02,
		sevHypoVehMinWeight:  0.05,
		sevHypoVehSigMax:     0.6,
		sevHypoVehSigAvgVx:   6.0,
		sevHypoVehSigBeta:    1.0,

		enableFOVAware:  true,
		fovRange:        20,
		fovWidth:        8,
		fovAWidthFor:    -6,
		dBrakeMin:       1.0,
		tReact:          0.3,
		fovRateMax:      3.0,
		fovRateBeta:     2.0,
		fovSevMinWeight: 0.05,
		fovSevWeight:    0.02,

		q: kinematics.DefaultProcessNoise,
	}
}

// NewFromFlags parses a Config from command-line-style flags, mirroring
// engine/cliconfig.go's NewCLIGameConfig: one flag per CLI-exposed tunable
// (the time grid, cruise speed, acceleration/jerk bounds, and FOV awareness
// and range; every other field keeps its New() value), defaults taken from
// New(), and a panic on any value a reasonable range check
// rejects (malformed CLI input is a programming/operator mistake, not an
// expected runtime condition).
func NewFromFlags(fs *flag.FlagSet, args []string) (Config, error) {
	c := New()

	dT := fs.Float64("dt", float64(c.dT), "fixed simulation step, in seconds")
	predictStep := fs.Float64("predict-step", float64(c.predictStep), "prediction horizon step, in seconds")
	predictTime := fs.Float64("predict-time", float64(c.predictTime), "prediction horizon length, in seconds")
	simTime := fs.Float64("sim-time", float64(c.simulationTime), "total simulation time, in seconds")
	vCruise := fs.Float64("v-cruise", float64(c.vCruise), "cruise speed target, in m/s")
	aMin := fs.Float64("a-min", float64(c.aMin), "minimum (Default mode) acceleration, in m/s^2")
	aMax := fs.Float64("a-max", float64(c.aMax), "maximum (Default mode) acceleration, in m/s^2")
	aMaxBrake := fs.Float64("a-max-brake", float64(c.aMaxBrake), "Emergency mode braking acceleration, in m/s^2")
	jMax := fs.Float64("j-max", float64(c.jMax), "maximum jerk, in m/s^3")
	fovAware := fs.Bool("fov-aware", c.enableFOVAware, "enable field-of-view occlusion hazard")
	fovRange := fs.Float64("fov-range", float64(c.fovRange), "field-of-view forward range, in meters")

	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	if *dT <= 0 {
		panic(fmt.Sprintf("dt=%v must be positive", *dT))
	}
	if *predictStep <= 0 || *predictStep < *dT {
		panic(fmt.Sprintf("predict-step=%v must be positive and >= dt=%v", *predictStep, *dT))
	}
	if *predictTime <= 0 {
		panic(fmt.Sprintf("predict-time=%v must be positive", *predictTime))
	}
	if *simTime <= 0 {
		panic(fmt.Sprintf("sim-time=%v must be positive", *simTime))
	}
	if *vCruise <= 0 {
		panic(fmt.Sprintf("v-cruise=%v must be positive", *vCruise))
	}
	if *aMin >= 0 {
		panic(fmt.Sprintf("a-min=%v must be negative", *aMin))
	}
	if *aMax <= 0 {
		panic(fmt.Sprintf("a-max=%v must be positive", *aMax))
	}
	if *aMaxBrake >= *aMin {
		panic(fmt.Sprintf("a-max-brake=%v must be more negative than a-min=%v", *aMaxBrake, *aMin))
	}
	if *jMax <= 0 {
		panic(fmt.Sprintf("j-max=%v must be positive", *jMax))
	}
	if *fovRange <= 0 {
		panic(fmt.Sprintf("fov-range=%v must be positive", *fovRange))
	}

	c.dT = phys.Seconds(*dT)
	c.predictStep = phys.Seconds(*predictStep)
	c.predictTime = phys.Seconds(*predictTime)
	c.simulationTime = phys.Seconds(*simTime)
	c.vCruise = phys.MetersPerSec(*vCruise)
	c.aMin = phys.MetersPerSec2(*aMin)
	c.aMax = phys.MetersPerSec2(*aMax)
	c.aMaxBrake = phys.MetersPerSec2(*aMaxBrake)
	c.jMax = phys.MetersPerSec2(*jMax)
	c.enableFOVAware = *fovAware
	c.fovRange = phys.Meters(*fovRange)

	return c, nil
}

// SetTimeParameters is the only mutator besides construction: it lets a
// caller change the time grid and run length after the fact without
// touching any of the other tunables.
func (c *Config) SetTimeParameters(dT, simulationTime, predictTime phys.Seconds) {
	c.dT = dT
	c.simulationTime = simulationTime
	c.predictTime = predictTime
}

func (c Config) DT() phys.Seconds             { return c.dT }
func (c Config) PredictStep() phys.Seconds    { return c.predictStep }
func (c Config) PredictTime() phys.Seconds    { return c.predictTime }
func (c Config) SimulationTime() phys.Seconds { return c.simulationTime }

func (c Config) VCruise() phys.MetersPerSec { return c.vCruise }
func (c Config) WV() float64                { return c.wV }
func (c Config) WA() float64                { return c.wA }
func (c Config) WJ() float64                { return c.wJ }

func (c Config) AMin() phys.MetersPerSec2      { return c.aMin }
func (c Config) AMax() phys.MetersPerSec2      { return c.aMax }
func (c Config) AMaxBrake() phys.MetersPerSec2 { return c.aMaxBrake }
func (c Config) JMax() phys.MetersPerSec2      { return c.jMax }
func (c Config) JMaxBrake() phys.MetersPerSec2 { return c.jMaxBrake }
func (c Config) TBrake() phys.Seconds          { return c.tBrake }

func (c Config) CollisionRateMax() float64        { return c.collisionRateMax }
func (c Config) CollisionRateExpBeta() float64     { return c.collisionRateExpBeta }
func (c Config) CollisionRateExpBetaPed() float64  { return c.collisionRateExpBetaPed }
func (c Config) MinColBrakeVehicle() float64       { return c.minColBrakeVehicle }
func (c Config) MinColBrakePedestrian() float64    { return c.minColBrakePedestrian }
func (c Config) EscapeRate() float64               { return c.escapeRate }

func (c Config) SevVehicleWeight() float64    { return c.sevVehicleWeight }
func (c Config) SevVehicleMinWeight() float64 { return c.sevVehicleMinWeight }

func (c Config) SevPedAvgVx() phys.MetersPerSec { return c.sevPedAvgVx }
func (c Config) SevPedMaxWeight() float64       { return c.sevPedMaxWeight }
func (c Config) SevPedBeta() float64            { return c.sevPedBeta }
func (c Config) SevPedMinWeight() float64       { return c.sevPedMinWeight }

func (c Config) SevHypoPedAvgVx() phys.MetersPerSec { return c.sevHypoPedAvgVx }
func (c Config) SevHypoPedSigMax() float64          { return c.sevHypoPedSigMax }
func (c Config) SevHypoPedSigBeta() float64         { return c.sevHypoPedSigBeta }
func (c Config) SevHypoPedGomMax() float64          { return c.sevHypoPedGomMax }
func (c Config) SevHypoPedGomBeta() float64         { return c.sevHypoPedGomBeta }
func (c Config) SevHypoPedMinWeight() float64       { return c.sevHypoPedMinWeight }

func (c Config) SevHypoVehQuadWeight() float64        { return c.sevHypoVehQuadWeight }
func (c Config) SevHypoVehMinWeight() float64         { return c.sevHypoVehMinWeight }
func (c Config) SevHypoVehSigMax() float64            { return c.sevHypoVehSigMax }
func (c Config) SevHypoVehSigAvgVx() phys.MetersPerSec { return c.sevHypoVehSigAvgVx }
func (c Config) SevHypoVehSigBeta() float64           { return c.sevHypoVehSigBeta }

func (c Config) EnableFOVAware() bool         { return c.enableFOVAware }
func (c Config) FOVRange() phys.Meters        { return c.fovRange }
func (c Config) FOVWidth() phys.Meters        { return c.fovWidth }
func (c Config) FOVABrake() phys.MetersPerSec2 { return c.fovAWidthFor }
func (c Config) DBrakeMin() phys.Meters       { return c.dBrakeMin }
func (c Config) TReact() phys.Seconds         { return c.tReact }
func (c Config) FOVRateMax() float64          { return c.fovRateMax }
func (c Config) FOVRateBeta() float64         { return c.fovRateBeta }
func (c Config) FOVSevMinWeight() float64     { return c.fovSevMinWeight }
func (c Config) FOVSevWeight() float64        { return c.fovSevWeight }

func (c Config) ProcessNoise() kinematics.ProcessNoise { return c.q }

// LimitViewRisk evaluates risk.LimitViewRisk with this config's FOV
// parameters, so callers don't thread ten scalar arguments through the
// planner by hand.
func (c Config) LimitViewRisk(egoVx phys.MetersPerSec, stdLon phys.Meters) (rate, riskVal float64) {
	return risk.LimitViewRisk(c.fovRange, egoVx, c.fovAWidthFor, c.dBrakeMin, stdLon, c.tReact,
		c.fovRateMax, c.fovRateBeta, c.fovSevMinWeight, c.fovSevWeight)
}
