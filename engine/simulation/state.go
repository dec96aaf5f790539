package simulation

import (
	"fmt"
	"time"
)

// State is the lifecycle state of a Pipeline.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateStepping
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateStepping:
		return "stepping"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Stage names one dispatch of a simulation step, in execution order.
type Stage int

const (
	StageGravity Stage = iota
	StageIntegrate
	StageDisturb
	StageDecay
	StageScatter
	StageColorize
)

// Stages lists every stage in execution order.
var Stages = []Stage{StageGravity, StageIntegrate, StageDisturb, StageDecay, StageScatter, StageColorize}

func (s Stage) String() string {
	switch s {
	case StageGravity:
		return "gravity"
	case StageIntegrate:
		return "integrate"
	case StageDisturb:
		return "disturb"
	case StageDecay:
		return "decay"
	case StageScatter:
		return "scatter"
	case StageColorize:
		return "colorize"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Recorder receives timing for every dispatch. internal/metrics provides the Prometheus implementation.
type Recorder interface {
	// ObserveStage records the wall time of one stage dispatch.
	ObserveStage(stage string, d time.Duration)

	// AddSteps counts completed physics steps.
	AddSteps(n int)

	// SetParticles reports the particle count of an initialized pipeline.
	SetParticles(n int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveStage(string, time.Duration) {}
func (nopRecorder) AddSteps(int)                       {}
func (nopRecorder) SetParticles(int)                   {}
