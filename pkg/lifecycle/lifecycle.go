package lifecycle

import (
	"fmt"
	"sync"
)

// Stage is a phase of the process lifecycle.
type Stage string

const (
	StageBooting      Stage = "BOOTING"
	StageReady        Stage = "READY"
	StageShuttingDown Stage = "SHUTTING_DOWN"
)

// transitions is the single-writer transition table. Anything not listed is
// an invalid transition.
var transitions = map[Stage]Stage{
	StageBooting: StageReady,
	StageReady:   StageShuttingDown,
}

// State is the process-wide lifecycle state. It is created once at process
// start and injected into components that need it; there is no ambient
// global.
type State struct {
	mu        sync.RWMutex
	stage     Stage
	bootID    string
	firstBoot bool
}

// New creates a State in the BOOTING stage.
func New(bootID string, firstBoot bool) *State {
	return &State{
		stage:     StageBooting,
		bootID:    bootID,
		firstBoot: firstBoot,
	}
}

// Stage returns the current lifecycle stage.
func (s *State) Stage() Stage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stage
}

// BootID returns the identifier of the current boot.
func (s *State) BootID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bootID
}

// FirstBoot reports whether this is the system's first boot after install.
func (s *State) FirstBoot() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.firstBoot
}

// Ready reports whether the system completed boot and is ready to use.
func (s *State) Ready() bool {
	return s.Stage() == StageReady
}

// ShuttingDown reports whether the system is shutting down.
func (s *State) ShuttingDown() bool {
	return s.Stage() == StageShuttingDown
}

// Advance moves the state to the given stage. Only the transitions
// BOOTING->READY and READY->SHUTTING_DOWN are permitted.
func (s *State) Advance(to Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if next, ok := transitions[s.stage]; !ok || next != to {
		return fmt.Errorf("invalid lifecycle transition %s -> %s", s.stage, to)
	}
	s.stage = to
	return nil
}
