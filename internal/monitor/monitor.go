// Package monitor periodically snapshots extension health: active
// overrides, lifetime grant/release counters, and running agent loops. The
// snapshot goes to a status file next to the extension and, when available,
// to InfluxDB.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/Azure-Framework/Az-Opticom/internal/lease"
	"github.com/Azure-Framework/Az-Opticom/internal/logging"
	"github.com/Azure-Framework/Az-Opticom/internal/metrics"
)

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Leases     *lease.Manager
	AgentCount func() int
	LogManager *logging.SlogManager
	Metrics    *metrics.Manager // nil disables Influx reporting
	StatusDir  string
	Interval   time.Duration
}

// Status is one health snapshot.
type Status struct {
	Time          time.Time `json:"time"`
	ActiveLeases  int       `json:"activeLeases"`
	TotalGranted  uint64    `json:"totalGranted"`
	TotalReleased uint64    `json:"totalReleased"`
	RunningAgents int       `json:"runningAgents"`
	SweepRunning  bool      `json:"sweepRunning"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Snapshot builds the current status.
func (s *Service) Snapshot() Status {
	agents := 0
	if s.deps.AgentCount != nil {
		agents = s.deps.AgentCount()
	}
	return Status{
		Time:          time.Now(),
		ActiveLeases:  s.deps.Leases.Active(),
		TotalGranted:  s.deps.Leases.Granted(),
		TotalReleased: s.deps.Leases.Released(),
		RunningAgents: agents,
		SweepRunning:  s.deps.Leases.IsRunning(),
	}
}

// report writes one snapshot to the status file and InfluxDB.
func (s *Service) report(statusFile *os.File, status Status) {
	logger := s.deps.LogManager.Logger()

	if statusFile != nil {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			data = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
		}
		statusFile.Truncate(0)
		statusFile.Seek(0, 0)
		statusFile.Write(append(data, '\n'))
	}

	if s.deps.Metrics != nil {
		point := influxdb2_write.NewPointWithMeasurement("override_status").
			AddField("active_leases", status.ActiveLeases).
			AddField("total_granted", int64(status.TotalGranted)).
			AddField("total_released", int64(status.TotalReleased)).
			AddField("running_agents", status.RunningAgents).
			SetTime(status.Time)
		if err := s.deps.Metrics.WritePoint(context.Background(), metrics.BucketPerformance, point); err != nil {
			logger.Error("Error writing status point to InfluxDB", "error", err)
		}
	}
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine", "function", "startStatusMonitor")

		statusFile, err := os.Create(s.deps.StatusDir + "/status.txt")
		if err != nil {
			logger.Error("Error creating status file", "error", err)
		}
		defer statusFile.Close()

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.report(statusFile, s.Snapshot())
			}
		}
	}()

	return nil
}

// Stop stops the status monitor
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stopChan)
	}
}
