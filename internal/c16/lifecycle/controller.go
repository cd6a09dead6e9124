// Package lifecycle implements the managed state machine that gates
// whether the decode pipeline consumes and emits data. Transition requests
// arrive asynchronously from a control surface and are applied by the
// pipeline loop only at packet boundaries, so a transition never tears an
// in-progress decode.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// State is the lifecycle position of the pipeline.
type State int

const (
	Unconfigured State = iota
	Inactive
	Active
	Finalized
)

func (s State) String() string {
	switch s {
	case Unconfigured:
		return "unconfigured"
	case Inactive:
		return "inactive"
	case Active:
		return "active"
	case Finalized:
		return "finalized"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Transition is a managed state-change request.
type Transition int

const (
	Configure Transition = iota
	Activate
	Deactivate
	Cleanup
	Shutdown
)

func (t Transition) String() string {
	switch t {
	case Configure:
		return "configure"
	case Activate:
		return "activate"
	case Deactivate:
		return "deactivate"
	case Cleanup:
		return "cleanup"
	case Shutdown:
		return "shutdown"
	}
	return fmt.Sprintf("transition(%d)", int(t))
}

// ParseTransition maps a transition name from the control surface to its
// Transition value.
func ParseTransition(name string) (Transition, error) {
	switch name {
	case "configure":
		return Configure, nil
	case "activate":
		return Activate, nil
	case "deactivate":
		return Deactivate, nil
	case "cleanup":
		return Cleanup, nil
	case "shutdown":
		return Shutdown, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTransition, name)
}

var (
	// ErrNotConfigured reports an activate request before any successful
	// configure. The state is left unchanged.
	ErrNotConfigured = errors.New("pipeline not configured")

	// ErrInvalidTransition reports a transition that is not legal from the
	// current state. The state is left unchanged.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")

	// ErrUnknownTransition reports an unrecognized transition name.
	ErrUnknownTransition = errors.New("unknown lifecycle transition")
)

// Hooks are the side effects a transition triggers. All hooks are optional
// and run synchronously while the transition is applied.
type Hooks struct {
	Configure  func() error // loads calibration; failure aborts the transition
	Deactivate func()       // discards in-flight pipeline state
	Cleanup    func()       // releases configured resources
}

// Result is the outcome of a transition request: the resulting state and
// the error, if any. Failed transitions never change state.
type Result struct {
	State State
	Err   error
}

type request struct {
	transition Transition
	reply      chan Result
}

// Controller owns the lifecycle state. Requests are queued on a channel
// and applied when the pipeline loop calls ServicePending between packets;
// Apply is also exported for direct use when no loop is running.
type Controller struct {
	mu       sync.Mutex
	state    State
	hooks    Hooks
	requests chan request
}

// NewController creates a controller in the Unconfigured state.
func NewController(hooks Hooks) *Controller {
	return &Controller{
		state:    Unconfigured,
		hooks:    hooks,
		requests: make(chan request, 8),
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsActive reports whether the pipeline should be consuming input.
func (c *Controller) IsActive() bool {
	return c.State() == Active
}

// Request queues a transition and blocks until the pipeline loop applies
// it at a safe point, or the context is cancelled.
func (c *Controller) Request(ctx context.Context, t Transition) Result {
	req := request{transition: t, reply: make(chan Result, 1)}
	select {
	case c.requests <- req:
	case <-ctx.Done():
		return Result{State: c.State(), Err: ctx.Err()}
	}
	select {
	case res := <-req.reply:
		return res
	case <-ctx.Done():
		return Result{State: c.State(), Err: ctx.Err()}
	}
}

// ServicePending applies all queued transition requests. The pipeline loop
// calls this between completed packets, never mid-decode.
func (c *Controller) ServicePending() {
	for {
		select {
		case req := <-c.requests:
			req.reply <- c.Apply(req.transition)
		default:
			return
		}
	}
}

// Apply executes a transition synchronously. Repeating a transition whose
// target state already holds is a no-op reported as success; illegal
// orderings are reported to the caller and change nothing.
func (c *Controller) Apply(t Transition) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	fail := func(err error) Result {
		return Result{State: c.state, Err: err}
	}
	ok := func() Result {
		return Result{State: c.state}
	}

	if c.state == Finalized && t != Shutdown {
		return fail(fmt.Errorf("%w: %s after shutdown", ErrInvalidTransition, t))
	}

	switch t {
	case Configure:
		switch c.state {
		case Inactive:
			return ok() // already configured
		case Unconfigured:
			if c.hooks.Configure != nil {
				if err := c.hooks.Configure(); err != nil {
					return fail(err)
				}
			}
			c.state = Inactive
			return ok()
		}

	case Activate:
		switch c.state {
		case Active:
			return ok()
		case Inactive:
			c.state = Active
			return ok()
		case Unconfigured:
			return fail(ErrNotConfigured)
		}

	case Deactivate:
		switch c.state {
		case Inactive:
			return ok()
		case Active:
			if c.hooks.Deactivate != nil {
				c.hooks.Deactivate()
			}
			c.state = Inactive
			return ok()
		}

	case Cleanup:
		switch c.state {
		case Unconfigured:
			return ok()
		case Inactive:
			if c.hooks.Cleanup != nil {
				c.hooks.Cleanup()
			}
			c.state = Unconfigured
			return ok()
		}

	case Shutdown:
		if c.state == Finalized {
			return ok()
		}
		// Shutdown is reachable from every live state; tear down whatever
		// the current state still holds.
		if c.state == Active && c.hooks.Deactivate != nil {
			c.hooks.Deactivate()
		}
		if c.state != Unconfigured && c.hooks.Cleanup != nil {
			c.hooks.Cleanup()
		}
		c.state = Finalized
		return ok()
	}

	return fail(fmt.Errorf("%w: %s from %s", ErrInvalidTransition, t, c.state))
}
