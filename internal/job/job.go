// Package job implements the shared state-machine primitive one instance
// of which backs each long-running task class (indexing, enrichment,
// migration): start/pause/resume/cancel transitions, a mutable progress
// record readable concurrently, and the last-run report or error.
package job

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// State is one of the controller's lifecycle states.
type State int

const (
	Idle State = iota
	Running
	Paused
	Completed
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Progress is the mutable, lock-protected progress record a run updates
// as it proceeds; callers read a snapshot via Controller.Progress.
type Progress struct {
	Phase             string
	FilesTotal        int
	FilesDone         int
	MessagesProcessed int
	BlobsInserted     int
}

// Controller is a single state-machine instance for one task class. Zero
// value is a ready-to-use Idle controller.
type Controller struct {
	mu       sync.RWMutex
	state    State
	progress Progress
	report   any
	lastErr  string

	cancelFlag atomic.Bool
	pauseFlag  atomic.Bool
}

// New returns an Idle Controller.
func New() *Controller {
	return &Controller{state: Idle}
}

// State returns the controller's current lifecycle state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Progress returns a copy of the current progress record.
func (c *Controller) Progress() Progress {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.progress
}

// UpdateProgress replaces the progress record under lock; callers pass a
// function that receives the current value and returns the next one.
func (c *Controller) UpdateProgress(fn func(Progress) Progress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress = fn(c.progress)
}

// LastReport returns the last-run report (set by Complete) and the
// last-run error message (set by Fail), whichever applies most recently.
func (c *Controller) LastReport() (report any, lastErr string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.report, c.lastErr
}

// ResetForRun clears progress, report, and error fields and transitions
// the controller into Running. It is the only way into Running from any
// terminal or Idle state; it is rejected if a run is already active.
func (c *Controller) ResetForRun() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Running || c.state == Paused {
		return fmt.Errorf("job: cannot start, already %s", c.state)
	}

	c.state = Running
	c.progress = Progress{}
	c.report = nil
	c.lastErr = ""
	c.cancelFlag.Store(false)
	c.pauseFlag.Store(false)
	return nil
}

// Pause requests that a Running controller suspend at its next
// cooperative check point. Rejected unless currently Running.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Running {
		return fmt.Errorf("job: cannot pause, not running (state=%s)", c.state)
	}
	c.pauseFlag.Store(true)
	c.state = Paused
	return nil
}

// Resume un-pauses a Paused controller, letting its loop proceed past
// the next pause check. Rejected unless currently Paused.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Paused {
		return fmt.Errorf("job: cannot resume, not paused (state=%s)", c.state)
	}
	c.pauseFlag.Store(false)
	c.state = Running
	return nil
}

// Cancel requests that a Running or Paused controller stop at its next
// cooperative check point; a paused run also has its pause flag cleared
// so the loop can observe cancellation and exit rather than spin forever
// waiting to be resumed.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Running && c.state != Paused {
		return fmt.Errorf("job: cannot cancel, not active (state=%s)", c.state)
	}
	c.cancelFlag.Store(true)
	c.pauseFlag.Store(false)
	return nil
}

// ShouldCancel reports whether a cancel is pending; loop bodies check
// this between files/phases.
func (c *Controller) ShouldCancel() bool { return c.cancelFlag.Load() }

// ShouldPause reports whether a pause is currently in effect; loop
// bodies spin briefly while this is true.
func (c *Controller) ShouldPause() bool { return c.pauseFlag.Load() }

// Complete transitions the controller to Completed or Cancelled
// (depending on whether a cancel was requested mid-run) and records the
// final report. Called once by the run loop as it exits normally.
func (c *Controller) Complete(report any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelFlag.Load() {
		c.state = Cancelled
	} else {
		c.state = Completed
	}
	c.report = report
}

// Fail transitions the controller to Failed and records the error.
// Called once by the run loop when it exits due to an unrecoverable
// error.
func (c *Controller) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Failed
	if err != nil {
		c.lastErr = err.Error()
	}
}
