package controller

import (
	"fmt"
	"sync"

	"github.com/Azure-Framework/Az-Opticom/internal/world"
)

// Registry owns one running Controller per agent. The host runtime starts
// and stops agents through it as players enter and leave emergency duty.
type Registry struct {
	newController func(agent world.Handle) *Controller

	mu     sync.Mutex
	agents map[world.Handle]*Controller
}

// NewRegistry creates a Registry. newController builds a fully wired
// Controller for an agent; the registry handles lifecycle.
func NewRegistry(newController func(agent world.Handle) *Controller) *Registry {
	return &Registry{
		newController: newController,
		agents:        make(map[world.Handle]*Controller),
	}
}

// StartAgent creates and starts a controller for the agent. Starting an
// already-tracked agent is an error; the host should stop it first.
func (r *Registry) StartAgent(agent world.Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.agents[agent]; ok {
		return fmt.Errorf("agent %d already started", agent)
	}

	c := r.newController(agent)
	r.agents[agent] = c
	c.Start()
	return nil
}

// StopAgent stops and forgets the agent's controller.
func (r *Registry) StopAgent(agent world.Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.agents[agent]
	if !ok {
		return fmt.Errorf("agent %d not started", agent)
	}
	c.Stop()
	delete(r.agents, agent)
	return nil
}

// Get returns the agent's controller, if tracked.
func (r *Registry) Get(agent world.Handle) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.agents[agent]
	return c, ok
}

// Count returns the number of tracked agents.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.agents)
}

// StopAll stops every tracked controller.
func (r *Registry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for agent, c := range r.agents {
		c.Stop()
		delete(r.agents, agent)
	}
}
