// Package nav names the views the auth flows can move to.
package nav

import (
	"context"
	"sync"
)

// Target is a view route.
type Target string

const (
	Home           Target = "/home"
	OTPRegister    Target = "/otp-register"
	Login          Target = "/login"
	Register       Target = "/register"
	ForgotPassword Target = "/forgot-password"
)

// Navigator moves the front end to another view.
type Navigator interface {
	Navigate(ctx context.Context, to Target) error
}

// Func adapts a function to Navigator.
type Func func(ctx context.Context, to Target) error

func (f Func) Navigate(ctx context.Context, to Target) error { return f(ctx, to) }

// Recorder remembers every navigation. Useful as a headless navigator and in
// tests.
type Recorder struct {
	mu      sync.Mutex
	targets []Target
}

func (r *Recorder) Navigate(_ context.Context, to Target) error {
	r.mu.Lock()
	r.targets = append(r.targets, to)
	r.mu.Unlock()
	return nil
}

// Targets returns the recorded navigations in order.
func (r *Recorder) Targets() []Target {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Target(nil), r.targets...)
}

// Last returns the most recent target, or "" when none.
func (r *Recorder) Last() Target {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.targets) == 0 {
		return ""
	}
	return r.targets[len(r.targets)-1]
}
