package trips

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"backend/geo"
)

// NavPhase is the navigation state machine phase.
type NavPhase string

const (
	NavIdle    NavPhase = "idle"
	NavActive  NavPhase = "active"
	NavArrived NavPhase = "arrived"
)

// advanceThresholdMeters is how close a fix must be to the next step's
// start location before the tracker advances to it.
const advanceThresholdMeters = 50.0

const arrivalMessage = "You have arrived at your destination"

// ErrNoRoute is returned when navigation is started without a route.
var ErrNoRoute = errors.New("no route to navigate")

// ErrNavigationActive is returned when navigation is started twice.
var ErrNavigationActive = errors.New("navigation already active")

// NavigationState is a read-only snapshot of the tracker.
type NavigationState struct {
	Phase              NavPhase      `json:"phase"`
	ActiveStepIndex    int           `json:"activeStepIndex"`
	LastKnownPosition  *geo.Position `json:"lastKnownPosition,omitempty"`
	CurrentInstruction string        `json:"currentInstruction"`
	BearingToNext      *float64      `json:"bearingToNext,omitempty"`
}

// Navigator advances through a route's steps as position fixes arrive.
// It reads the route without mutating it; step advancement is
// monotonic while active.
type Navigator struct {
	mu          sync.Mutex
	devices     DeviceSource
	log         *slog.Logger
	phase       NavPhase
	steps       []RouteStep
	activeStep  int
	lastFix     *geo.Position
	instruction string
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewNavigator builds an idle navigator over the given device source.
func NewNavigator(devices DeviceSource, log *slog.Logger) *Navigator {
	if log == nil {
		log = slog.Default()
	}
	return &Navigator{
		devices: devices,
		log:     log,
		phase:   NavIdle,
	}
}

// Start enters Active at step 0 and subscribes to the fix stream. The
// subscription lives until Stop is called.
func (n *Navigator) Start(route *Route) error {
	if route == nil || len(route.Legs) == 0 {
		return ErrNoRoute
	}
	steps := route.Steps()
	if len(steps) == 0 {
		return ErrNoRoute
	}

	n.mu.Lock()
	if n.phase != NavIdle {
		n.mu.Unlock()
		return ErrNavigationActive
	}
	n.phase = NavActive
	n.steps = steps
	n.activeStep = 0
	n.lastFix = nil
	n.instruction = steps[0].Instruction

	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	n.done = make(chan struct{})
	done := n.done
	fixes := n.devices.Watch(ctx)
	n.mu.Unlock()

	go func() {
		defer close(done)
		for fix := range fixes {
			n.HandleFix(fix)
		}
	}()

	return nil
}

// HandleFix processes one position fix. Within the advance threshold
// of the active step's start the tracker moves to the next step, or
// arrives when none remains; otherwise the current instruction is
// re-asserted.
func (n *Navigator) HandleFix(pos geo.Position) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.phase != NavActive {
		return
	}

	fix := pos
	n.lastFix = &fix

	step := n.steps[n.activeStep]
	if geo.Distance(pos, step.StartLocation) < advanceThresholdMeters {
		if n.activeStep+1 < len(n.steps) {
			n.activeStep++
			n.instruction = n.steps[n.activeStep].Instruction
		} else {
			n.phase = NavArrived
			n.instruction = arrivalMessage
		}
		return
	}
	n.instruction = step.Instruction
}

// Stop tears down the fix subscription and returns to Idle, discarding
// all progress. Restarting always begins again at step 0. Safe to call
// in any phase and on every exit path.
func (n *Navigator) Stop() {
	n.mu.Lock()
	cancel := n.cancel
	done := n.done
	n.cancel = nil
	n.done = nil
	n.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	n.mu.Lock()
	n.phase = NavIdle
	n.steps = nil
	n.activeStep = 0
	n.lastFix = nil
	n.instruction = ""
	n.mu.Unlock()
}

// State returns a snapshot of the tracker. BearingToNext is the
// initial bearing from the last fix to the active step's start, for
// directional display only.
func (n *Navigator) State() NavigationState {
	n.mu.Lock()
	defer n.mu.Unlock()

	state := NavigationState{
		Phase:              n.phase,
		ActiveStepIndex:    n.activeStep,
		CurrentInstruction: n.instruction,
	}
	if n.lastFix != nil {
		fix := *n.lastFix
		state.LastKnownPosition = &fix
		if n.phase == NavActive {
			bearing := geo.InitialBearing(fix, n.steps[n.activeStep].StartLocation)
			state.BearingToNext = &bearing
		}
	}
	return state
}
