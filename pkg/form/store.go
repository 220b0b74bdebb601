// Package form owns the state of one onboarding form instance: field values,
// per-field errors, advisory hints, the loading flag and the global error
// flag. The Store is the single mutation authority; validators and
// controllers receive it explicitly.
package form

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownField is returned when writing a field the store was not created
// with.
var ErrUnknownField = errors.New("form: unknown field")

// Observer is notified after a field value changes.
type Observer func(field, value string)

// Snapshot is a point-in-time copy of the store.
type Snapshot struct {
	Values      map[string]string
	Errors      map[string]string
	Hints       map[string]string
	Loading     bool
	GlobalError bool
}

// Store tracks the values and errors of a single form. It is safe for
// concurrent use; observers run outside the lock.
type Store struct {
	mu          sync.Mutex
	fields      []string
	initial     map[string]string
	values      map[string]string
	errors      map[string]string
	hints       map[string]string
	loading     bool
	globalError bool
	dependents  map[string][]string
	observers   map[string][]Observer
}

// Option configures a Store.
type Option func(*Store)

// WithInitial seeds initial values. Reset restores them.
func WithInitial(values map[string]string) Option {
	return func(s *Store) {
		for k, v := range values {
			if _, ok := s.initial[k]; ok {
				s.initial[k] = v
			}
		}
	}
}

// WithDependent declares that children hold values derived from parent's
// selection. Changing parent resets every child to its initial value.
func WithDependent(parent string, children ...string) Option {
	return func(s *Store) {
		s.dependents[parent] = append(s.dependents[parent], children...)
	}
}

// New creates a store with every field set to its initial (empty) value.
func New(fields []string, opts ...Option) *Store {
	s := &Store{
		fields:     append([]string(nil), fields...),
		initial:    make(map[string]string, len(fields)),
		errors:     make(map[string]string),
		hints:      make(map[string]string),
		dependents: make(map[string][]string),
		observers:  make(map[string][]Observer),
	}
	for _, f := range fields {
		s.initial[f] = ""
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.values = cloneValues(s.initial)
	return s
}

// Fields returns the field names in declaration order.
func (s *Store) Fields() []string {
	return append([]string(nil), s.fields...)
}

// Observe registers fn for changes to field and returns a function that
// removes it.
func (s *Store) Observe(field string, fn Observer) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers[field] = append(s.observers[field], fn)
	idx := len(s.observers[field]) - 1
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if obs := s.observers[field]; idx < len(obs) {
			obs[idx] = nil
		}
	}
}

// SetField writes value, drops the field's error entry and clears the global
// error flag. The error entry is dropped whether or not value is valid;
// errors only come back on the next validation pass. Observers and dependent
// resets only fire when the value actually changed.
func (s *Store) SetField(name, value string) error {
	s.mu.Lock()
	old, ok := s.values[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	s.values[name] = value
	delete(s.errors, name)
	s.globalError = false

	var changed []change
	if old != value {
		changed = append(changed, change{field: name, value: value})
		changed = append(changed, s.resetDependentsLocked(name)...)
	}
	notify := s.pendingLocked(changed)
	s.mu.Unlock()

	notify()
	return nil
}

func (s *Store) resetDependentsLocked(parent string) []change {
	var out []change
	for _, child := range s.dependents[parent] {
		prev, ok := s.values[child]
		if !ok {
			continue
		}
		delete(s.errors, child)
		delete(s.hints, child)
		if prev == s.initial[child] {
			continue
		}
		s.values[child] = s.initial[child]
		out = append(out, change{field: child, value: s.initial[child]})
		out = append(out, s.resetDependentsLocked(child)...)
	}
	return out
}

// SetErrors replaces the error map with the result of the latest validation
// pass. Keys for unknown fields are ignored.
func (s *Store) SetErrors(errs map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = make(map[string]string, len(errs))
	for field, msg := range errs {
		if _, ok := s.values[field]; ok {
			s.errors[field] = msg
		}
	}
}

// SetHint records an advisory live-validation message for field. An empty
// message clears it.
func (s *Store) SetHint(field, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg == "" {
		delete(s.hints, field)
		return
	}
	s.hints[field] = msg
}

// SetLoading sets the loading flag.
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	s.loading = loading
	s.mu.Unlock()
}

// TryBeginLoading sets loading to true unless it already is. It reports
// whether the caller now owns the in-flight submission.
func (s *Store) TryBeginLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading {
		return false
	}
	s.loading = true
	return true
}

// SetGlobalError sets the flag rendered as the flow's single rejection
// message.
func (s *Store) SetGlobalError(v bool) {
	s.mu.Lock()
	s.globalError = v
	s.mu.Unlock()
}

// Reset restores every field to its initial value and clears errors and
// hints. The loading and global error flags are left as they are so a failed
// attempt's banner survives the reset.
func (s *Store) Reset() {
	s.mu.Lock()
	var changed []change
	for _, f := range s.fields {
		if s.values[f] != s.initial[f] {
			changed = append(changed, change{field: f, value: s.initial[f]})
		}
	}
	s.values = cloneValues(s.initial)
	s.errors = make(map[string]string)
	s.hints = make(map[string]string)
	notify := s.pendingLocked(changed)
	s.mu.Unlock()

	notify()
}

// Value returns the current value of field.
func (s *Store) Value(field string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[field]
}

// Values returns a copy of the current values.
func (s *Store) Values() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneValues(s.values)
}

// Errors returns a copy of the current error map.
func (s *Store) Errors() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneValues(s.errors)
}

// ErrorFor returns the error message attached to field.
func (s *Store) ErrorFor(field string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errors[field]
}

// HintFor returns the advisory message attached to field.
func (s *Store) HintFor(field string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hints[field]
}

// Loading reports whether a submission is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// GlobalError reports whether the last submission failed.
func (s *Store) GlobalError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.globalError
}

// Snapshot copies the whole state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Values:      cloneValues(s.values),
		Errors:      cloneValues(s.errors),
		Hints:       cloneValues(s.hints),
		Loading:     s.loading,
		GlobalError: s.globalError,
	}
}

// ErrorFields returns the invalid field names sorted in declaration order.
func (s *Store) ErrorFields() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	order := make(map[string]int, len(s.fields))
	for i, f := range s.fields {
		order[f] = i
	}
	out := make([]string, 0, len(s.errors))
	for f := range s.errors {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return order[out[i]] < order[out[j]] })
	return out
}

type change struct {
	field string
	value string
}

func (s *Store) pendingLocked(changes []change) func() {
	type call struct {
		fn    Observer
		field string
		value string
	}
	var calls []call
	for _, c := range changes {
		for _, fn := range s.observers[c.field] {
			if fn != nil {
				calls = append(calls, call{fn: fn, field: c.field, value: c.value})
			}
		}
	}
	return func() {
		for _, c := range calls {
			c.fn(c.field, c.value)
		}
	}
}

func cloneValues(src map[string]string) map[string]string {
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
