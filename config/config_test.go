// Copyright 2017 Anki, Inc.
// Author: gwenz@anki.com

package config

import (
	"flag"
	"testing"
)

func TestNewMatchesScenarioConstants(t *testing.T) {
	c := New()
	if c.DT() != 0.1 {
		t.Errorf("expected dT=0.1, got %v", c.DT())
	}
	if c.PredictStep() != 0.2 {
		t.Errorf("expected predictStep=0.2, got %v", c.PredictStep())
	}
	if c.PredictTime() != 3.0 {
		t.Errorf("expected predictTime=3.0, got %v", c.PredictTime())
	}
	if c.SimulationTime() != 10.0 {
		t.Errorf("expected simulationTime=10.0, got %v", c.SimulationTime())
	}
	if c.VCruise() != 8 {
		t.Errorf("expected vCruise=8, got %v", c.VCruise())
	}
	if c.AMin() != -3 || c.AMax() != 2 || c.AMaxBrake() != -6 || c.JMax() != 1 {
		t.Errorf("unexpected bounds: aMin=%v aMax=%v aMaxBrake=%v jMax=%v", c.AMin(), c.AMax(), c.AMaxBrake(), c.JMax())
	}
}

func TestSetTimeParametersOnlyChangesTimeFields(t *testing.T) {
	c := New()
	before := c.VCruise()
	c.SetTimeParameters(0.05, 20.0, 5.0)
	if c.DT() != 0.05 || c.SimulationTime() != 20.0 || c.PredictTime() != 5.0 {
		t.Errorf("SetTimeParameters did not update time fields: %v %v %v", c.DT(), c.SimulationTime(), c.PredictTime())
	}
	if c.VCruise() != before {
		t.Errorf("SetTimeParameters must not affect unrelated fields")
	}
}

func TestNewFromFlagsAppliesOverrides(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c, err := NewFromFlags(fs, []string{"-dt=0.2", "-v-cruise=12"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.DT() != 0.2 {
		t.Errorf("expected dt override 0.2, got %v", c.DT())
	}
	if c.VCruise() != 12 {
		t.Errorf("expected v-cruise override 12, got %v", c.VCruise())
	}
}

func TestNewFromFlagsPanicsOnInvalidBounds(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic on a-min >= 0")
		}
	}()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	_, _ = NewFromFlags(fs, []string{"-a-min=1"})
}

func TestLimitViewRiskWiresConfigParameters(t *testing.T) {
	c := New()
	rate, riskVal := c.LimitViewRisk(10, 0.5)
	if rate < 0 || rate > c.FOVRateMax() {
		t.Errorf("rate %v out of [0, rateMax=%v]", rate, c.FOVRateMax())
	}
	if riskVal < 0 {
		t.Errorf("expected non-negative risk, got %v", riskVal)
	}
}
