package dfu

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// A Step is one named action of a scenario run.
type Step struct {
	Name     string
	Err      error
	Duration time.Duration
}

// A Report collects the steps of a scenario run.
type Report struct {
	RunID    string
	Scenario string

	mu    sync.Mutex
	steps []Step
}

func (r *Report) add(s Step) {
	r.mu.Lock()
	r.steps = append(r.steps, s)
	r.mu.Unlock()
}

// Steps returns the recorded steps in order.
func (r *Report) Steps() []Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Step(nil), r.steps...)
}

// Errors counts failed steps.
func (r *Report) Errors() int {
	n := 0
	for _, s := range r.Steps() {
		if s.Err != nil {
			n++
		}
	}
	return n
}

// Passed reports whether the run recorded steps and none failed.
func (r *Report) Passed() bool {
	return len(r.Steps()) > 0 && r.Errors() == 0
}

// Err joins the errors of all failed steps.
func (r *Report) Err() error {
	var errs []error
	for _, s := range r.Steps() {
		if s.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, s.Err))
		}
	}
	return errors.Join(errs...)
}
