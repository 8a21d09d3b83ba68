package scan

import (
	"testing"
	"time"

	"github.com/Azure-Framework/Az-Opticom/internal/geo"
)

var gateStart = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestGate() *Gate {
	return NewGate(100*time.Millisecond, 7.5, 30)
}

func TestGate_ColdStartAlwaysScans(t *testing.T) {
	g := newTestGate()
	if !g.ShouldScan(geo.Position{X: 1234, Y: 5678}, 270, gateStart) {
		t.Fatal("expected scan with no prior snapshot")
	}
}

func TestGate_MinIntervalIsHardFloor(t *testing.T) {
	g := newTestGate()
	g.MarkScanned(geo.Position{}, 0, gateStart)

	// 50ms later, huge displacement: still throttled.
	if g.ShouldScan(geo.Position{X: 500}, 0, gateStart.Add(50*time.Millisecond)) {
		t.Fatal("expected throttle below minimum interval regardless of movement")
	}
}

func TestGate_DisplacementThresholdInclusive(t *testing.T) {
	g := newTestGate()
	g.MarkScanned(geo.Position{}, 0, gateStart)

	later := gateStart.Add(200 * time.Millisecond)

	// Exactly at the rescan distance.
	if !g.ShouldScan(geo.Position{X: 7.5}, 0, later) {
		t.Fatal("expected scan at exact displacement threshold")
	}
	// Just below it, same heading: no scan.
	if g.ShouldScan(geo.Position{X: 7.4}, 0, later) {
		t.Fatal("expected no scan below displacement threshold")
	}
}

func TestGate_HeadingThresholdInclusive(t *testing.T) {
	g := newTestGate()
	g.MarkScanned(geo.Position{}, 100, gateStart)

	later := gateStart.Add(200 * time.Millisecond)

	if !g.ShouldScan(geo.Position{}, 130, later) {
		t.Fatal("expected scan at exact heading threshold")
	}
	if g.ShouldScan(geo.Position{}, 129, later) {
		t.Fatal("expected no scan below heading threshold")
	}
}

func TestGate_HeadingThresholdWrapsAround(t *testing.T) {
	g := newTestGate()
	g.MarkScanned(geo.Position{}, 350, gateStart)

	// 350 -> 25 is a 35 degree turn across the wraparound.
	if !g.ShouldScan(geo.Position{}, 25, gateStart.Add(200*time.Millisecond)) {
		t.Fatal("expected scan for heading change across 0/360")
	}
}

func TestGate_InvalidateForcesColdStart(t *testing.T) {
	g := newTestGate()
	g.MarkScanned(geo.Position{}, 0, gateStart)

	// Immediately after a scan nothing should pass.
	if g.ShouldScan(geo.Position{}, 0, gateStart.Add(time.Millisecond)) {
		t.Fatal("expected no scan right after snapshot")
	}

	g.Invalidate()

	if !g.ShouldScan(geo.Position{}, 0, gateStart.Add(2*time.Millisecond)) {
		t.Fatal("expected scan after invalidation")
	}
}

func TestGate_MarkScannedUpdatesSnapshot(t *testing.T) {
	g := newTestGate()
	g.MarkScanned(geo.Position{}, 0, gateStart)

	// Move past the threshold, scan, and record the new pose.
	t1 := gateStart.Add(200 * time.Millisecond)
	pos := geo.Position{X: 20}
	if !g.ShouldScan(pos, 0, t1) {
		t.Fatal("expected scan after large displacement")
	}
	g.MarkScanned(pos, 0, t1)

	// Standing still relative to the new snapshot: no scan.
	if g.ShouldScan(pos, 0, t1.Add(200*time.Millisecond)) {
		t.Fatal("expected no scan relative to updated snapshot")
	}
}
