package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Azure-Framework/Az-Opticom/internal/config"
	"github.com/Azure-Framework/Az-Opticom/internal/geo"
	"github.com/Azure-Framework/Az-Opticom/internal/world"
)

// runDemo drives a simulated emergency run down a signalized avenue: a
// firetruck with its siren on passes a row of traffic lights, toggling the
// siren halfway to exercise the state transitions. Useful for eyeballing
// the full pipeline (scan, lease, journal, broadcast, monitor) without a
// game host attached.
func runDemo() error {
	const (
		speed    = 20.0 // m/s northbound
		tick     = 50 * time.Millisecond
		duration = 30 * time.Second
	)

	// A row of signals every 150 m, roughly facing the approach.
	lightKinds := config.GetScanConfig().LightKinds
	if len(lightKinds) == 0 {
		return fmt.Errorf("no light kinds configured")
	}
	for i := 0; i < 4; i++ {
		kind := world.Kind(lightKinds[i%len(lightKinds)])
		h := gameWorld.Spawn(kind, geo.Position{X: 0, Y: 100 + float64(i)*150}, float64(i*5))
		Logger.Info("Demo signal spawned", "signal", h, "kind", kind)
	}

	agent := gameWorld.Spawn("player", geo.Position{}, 0)
	vehicle := gameWorld.Spawn("firetruck", geo.Position{}, 0)
	gameWorld.EnterVehicle(agent, vehicle)
	gameWorld.SetSiren(vehicle, true)

	if err := agents.StartAgent(agent); err != nil {
		return err
	}
	defer agents.StopAll()

	steps := int(duration / tick)
	sirenOffAt := steps / 2
	sirenOnAt := sirenOffAt + int(2*time.Second/tick)

	pos := geo.Position{}
	for i := 0; i < steps; i++ {
		time.Sleep(tick)

		pos.Y += speed * tick.Seconds()
		gameWorld.MoveTo(vehicle, pos)

		switch i {
		case sirenOffAt:
			Logger.Info("Demo: siren off")
			gameWorld.SetSiren(vehicle, false)
		case sirenOnAt:
			Logger.Info("Demo: siren back on")
			gameWorld.SetSiren(vehicle, true)
		}

		if i%20 == 19 {
			printStatus()
		}
	}

	// Let outstanding leases decay through the sweep before reporting.
	gameWorld.SetSiren(vehicle, false)
	leaseCfg := config.GetLeaseConfig()
	time.Sleep(leaseCfg.GreenDuration + 2*leaseCfg.SweepInterval)
	printStatus()

	if journalManager != nil && journalManager.IsValid {
		events, err := journalManager.ExportSession(journalManager.SessionID())
		if err != nil {
			return fmt.Errorf("error exporting demo session: %w", err)
		}
		fmt.Printf("Demo session %d journaled %d override events\n",
			journalManager.SessionID(), len(events))
	}
	return nil
}

func printStatus() {
	data, err := json.Marshal(monitorService.Snapshot())
	if err != nil {
		return
	}
	fmt.Println(string(data))
}
