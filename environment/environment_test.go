// Copyright 2017 Anki, Inc.
// Author: gwenz@anki.com

package environment

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/anki/riskplanner/agent"
	"github.com/anki/riskplanner/geometry"
	"github.com/anki/riskplanner/kinematics"
	"github.com/anki/riskplanner/phys"
)

func TestCurrentObjectListSplitsStaticVehicles(t *testing.T) {
	env := New(30, 8)
	moving := agent.NewOtherVehicle(4, 2, 0, 0, 50, 0, 0.01, 0.01, 8, 0, 0.1, false)
	resting := agent.NewOtherVehicle(4, 2, 20, 0, 20, 0, 0.01, 0.01, 0, 0, 0.1, false)
	env.AddVehicle(moving)
	env.AddVehicle(resting)

	snap := env.CurrentObjectList(0, 0.2, 0.2, 3.0, kinematics.DefaultProcessNoise)
	if len(snap.Vehicles) != 1 || len(snap.StaticVehicles) != 1 {
		t.Fatalf("expected 1 moving + 1 static vehicle, got moving=%d static=%d", len(snap.Vehicles), len(snap.StaticVehicles))
	}
}

func TestCurrentObjectListExcludesNotYetStarted(t *testing.T) {
	env := New(30, 8)
	late := agent.NewOtherVehicle(4, 2, 0, 0, 50, 0, 0.01, 0.01, 8, 5.0, 0.1, false)
	env.AddVehicle(late)

	snap := env.CurrentObjectList(0, 0.2, 0.2, 3.0, kinematics.DefaultProcessNoise)
	if len(snap.Vehicles) != 0 {
		t.Errorf("expected agent with future start time to be excluded, got %d vehicles", len(snap.Vehicles))
	}

	snapLater := env.CurrentObjectList(5.0, 0.2, 0.2, 3.0, kinematics.DefaultProcessNoise)
	if len(snapLater.Vehicles) != 1 {
		t.Errorf("expected agent to appear once its start time has elapsed, got %d", len(snapLater.Vehicles))
	}
}

func TestUpdateFOVCachesLastResult(t *testing.T) {
	env := New(20, 6)
	egoPose := phys.Pose{Point: phys.Point{X: 0, Y: 0}, Theta: 0}
	poly, rng := env.UpdateFOV(egoPose)
	if rng != 20 {
		t.Errorf("expected fovRange=20, got %v", rng)
	}
	cached, cachedRng := env.LastFOV()
	if cached != poly || cachedRng != rng {
		t.Errorf("LastFOV did not return the cached UpdateFOV result")
	}
}

func TestMoveAdvancesAllAgents(t *testing.T) {
	env := New(20, 6)
	v := agent.NewOtherVehicle(4, 2, 0, 0, 50, 0, 0.01, 0.01, 8, 0, 0.1, false)
	p := agent.NewPedestrian(20, -5, 20, 5, 0.01, 0.01, 1.5, 0, 0.1, false)
	env.AddVehicle(v)
	env.AddPedestrian(p)

	env.Move(0.1, kinematics.DefaultProcessNoise)

	if v.CurrentPose().T != 0.1 || p.CurrentPose().T != 0.1 {
		t.Errorf("expected both agents advanced to t=0.1, got v=%v p=%v", v.CurrentPose().T, p.CurrentPose().T)
	}
}

func TestAddStaticObject(t *testing.T) {
	env := New(20, 6)
	poly := geometry.Rectangle(phys.Pose{Point: phys.Point{X: 41, Y: 0}, Theta: 0}, 2, 2)
	env.AddStaticObject(poly)

	snap := env.CurrentObjectList(0, 0.2, 0.2, 3.0, kinematics.DefaultProcessNoise)
	if len(snap.StaticObjects) != 1 {
		t.Fatalf("expected 1 static object, got %d", len(snap.StaticObjects))
	}
	if snap.StaticObjects[0].Poly != poly {
		t.Errorf("static object polygon mismatch")
	}
}

func TestCurrentObjectListStaticObjectsMatchExpectedSnapshot(t *testing.T) {
	env := New(20, 6)
	first := geometry.Rectangle(phys.Pose{Point: phys.Point{X: 41, Y: 0}, Theta: 0}, 2, 2)
	second := geometry.Rectangle(phys.Pose{Point: phys.Point{X: 10, Y: 3}, Theta: 0}, 1, 1)
	env.AddStaticObject(first)
	env.AddStaticObject(second)

	snap := env.CurrentObjectList(0, 0.2, 0.2, 3.0, kinematics.DefaultProcessNoise)
	want := []StaticObject{{Poly: first}, {Poly: second}}

	// IDs are random (uuid.New per AddStaticObject), so only the polygons
	// are expected to match; a field-by-field loop would need to special
	// case that, where cmp.Diff's IgnoreFields reads as the actual intent.
	if diff := cmp.Diff(want, snap.StaticObjects, cmpopts.IgnoreFields(StaticObject{}, "ID")); diff != "" {
		t.Errorf("static object snapshot mismatch (-want +got):\n%s", diff)
	}
}
