// Copyright 2017 Anki, Inc.
// Author: gwenz@anki.com
//
// drivesim is the ego planner's demo binary: it builds one of a handful of
// named scenarios, runs the fixed-step simulation loop to completion, and
// narrates the result to stdout. It stands in for games/example/drive's
// pixelgl window: there is no rendering surface here, only the scenario
// construction and the post-run report a human driving that demo by hand
// would have watched for.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/anki/riskplanner/agent"
	"github.com/anki/riskplanner/config"
	"github.com/anki/riskplanner/environment"
	"github.com/anki/riskplanner/geometry"
	"github.com/anki/riskplanner/phys"
	"github.com/anki/riskplanner/planner"
	"github.com/anki/riskplanner/simulation"
)

// scenario builds the environment and ego planner for one named regression
// case.
type scenario struct {
	name        string
	description string
	build       func(cfg config.Config) (*environment.Environment, *planner.EgoPlanner)
}

var scenarios = []scenario{
	{
		name:        "free-cruise",
		description: "empty road, ego should accelerate to cruise speed and stay in Default",
		build: func(cfg config.Config) (*environment.Environment, *planner.EgoPlanner) {
			env := environment.New(20, 8)
			ego := planner.New(cfg, env, 4, 2, 0, 0, 0, 0.01, 0.01, 6, 0, 0)
			return env, ego
		},
	},
	{
		name:        "static-obstacle",
		description: "a stalled vehicle 40m ahead, ego should brake to a stop short of it",
		build: func(cfg config.Config) (*environment.Environment, *planner.EgoPlanner) {
			env := environment.New(20, 8)
			ego := planner.New(cfg, env, 4, 2, 0, 0, 0, 0.01, 0.01, 8, 0, 0)
			obstacle := geometry.Rectangle(phys.Pose{Point: phys.Point{X: 41, Y: 0}, Theta: 0}, 2, 2)
			env.AddStaticObject(obstacle)
			return env, ego
		},
	},
	{
		name:        "pedestrian-crossing",
		description: "a pedestrian crossing the ego's lane, ego should brake into Emergency",
		build: func(cfg config.Config) (*environment.Environment, *planner.EgoPlanner) {
			env := environment.New(20, 8)
			ego := planner.New(cfg, env, 4, 2, 0, 0, 0, 0.01, 0.01, 8, 0, 0)
			ped := agent.NewPedestrian(20, -5, 20, 5, 0.05, 0.05, 1.5, 0, cfg.DT(), false)
			env.AddPedestrian(ped)
			return env, ego
		},
	},
	{
		name:        "oncoming-vehicle",
		description: "a vehicle approaching head-on in the same lane",
		build: func(cfg config.Config) (*environment.Environment, *planner.EgoPlanner) {
			env := environment.New(20, 8)
			ego := planner.New(cfg, env, 4, 2, 0, 0, 0, 0.01, 0.01, 8, 0, 0)
			other := agent.NewOtherVehicle(4, 2, 60, 0, -60, 0, 0.01, 0.01, 8, 0, cfg.DT(), false)
			env.AddVehicle(other)
			return env, ego
		},
	},
}

func main() {
	fs := flag.NewFlagSet("drivesim", flag.ExitOnError)
	name := fs.String("scenario", "static-obstacle", "scenario to run: free-cruise, static-obstacle, pedestrian-crossing, oncoming-vehicle")
	verbose := fs.Bool("verbose", false, "print every tick instead of only the summary")
	cfg, err := config.NewFromFlags(fs, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	sc, ok := lookupScenario(*name)
	if !ok {
		fmt.Fprintf(os.Stderr, "drivesim: unknown scenario %q\n", *name)
		os.Exit(1)
	}

	fmt.Printf("Running scenario %q: %s\n", sc.name, sc.description)
	fmt.Printf("dT=%v predictStep=%v predictTime=%v simTime=%v vCruise=%v\n",
		cfg.DT(), cfg.PredictStep(), cfg.PredictTime(), cfg.SimulationTime(), cfg.VCruise())

	env, ego := sc.build(cfg)
	loop := simulation.New(cfg, env, ego)

	onTick := func(l *simulation.Loop) {
		if !*verbose {
			return
		}
		exp := l.Ego().ExportCurrent()
		fmt.Printf("t=%5.2f mode=%-9v brake=%-5v pcoll=%.4f vx=%.2f x=%.2f\n",
			float64(l.Ticks())*float64(cfg.DT()), exp.Mode, exp.Brake, exp.Pcoll,
			float64(l.Ego().CurrentVelocity()), float64(exp.X))
	}

	loop.Run(onTick)

	summary, err := loop.Summarize()
	if err != nil {
		fmt.Fprintln(os.Stderr, "drivesim: summarizing run:", err)
		os.Exit(1)
	}
	fmt.Println("Ego vehicle reached end of simulation.")
	fmt.Println(summary)
}

func lookupScenario(name string) (scenario, bool) {
	for _, sc := range scenarios {
		if sc.name == name {
			return sc, true
		}
	}
	return scenario{}, false
}
