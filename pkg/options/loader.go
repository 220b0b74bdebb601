package options

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-authflow/pkg/form"
)

// ErrClosed is returned by loads attempted after Close.
var ErrClosed = errors.New("options: loader closed")

// Level identifies one tier of the dependent reference data.
type Level string

const (
	LevelProvince Level = "province"
	LevelCity     Level = "city"
)

// State is the lifecycle of one level's option list.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateLoaded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Fetcher retrieves reference lists from the backend.
type Fetcher interface {
	Provinces(ctx context.Context) (List, error)
	Cities(ctx context.Context, provinceID string) (List, error)
}

// LoadError wraps a failed fetch for one level.
type LoadError struct {
	Level Level
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("options: load %s: %v", e.Level, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Event is published whenever a level changes state.
type Event struct {
	Level      Level
	State      State
	List       List
	Err        error
	ProvinceID string
}

// Loader resolves the province list once and the city list for the currently
// selected province. Every city fetch carries a generation number; a response
// is applied only if no newer selection happened in the meantime.
type Loader struct {
	fetcher Fetcher
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	group  singleflight.Group

	mu         sync.Mutex
	provinces  List
	provState  State
	provErr    error
	cities     List
	cityState  State
	cityErr    error
	provinceID string
	generation uint64
	cancelCity context.CancelFunc
	inflight   int
	drained    chan struct{}
	listeners  []func(Event)
	closed     bool
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLogger sets the logger used for fetch failures and stale responses.
func WithLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithContext ties the loader's lifetime to ctx. Cancelling it has the same
// effect as Close.
func WithContext(ctx context.Context) LoaderOption {
	return func(l *Loader) {
		if ctx != nil {
			l.ctx = ctx
		}
	}
}

// NewLoader creates an idle loader.
func NewLoader(fetcher Fetcher, opts ...LoaderOption) *Loader {
	l := &Loader{
		fetcher: fetcher,
		logger:  zap.NewNop(),
		ctx:     context.Background(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	l.ctx, l.cancel = context.WithCancel(l.ctx)
	return l
}

// Subscribe registers fn for state changes.
func (l *Loader) Subscribe(fn func(Event)) {
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	l.mu.Unlock()
}

// Bind refetches cities whenever provinceField changes in store. The store is
// expected to clear the city field itself (see form.WithDependent).
func (l *Loader) Bind(store *form.Store, provinceField string) func() {
	return store.Observe(provinceField, func(_, value string) {
		l.SelectProvince(value)
	})
}

// LoadProvinces fetches the province list unless it is already loaded.
// Concurrent callers share one request. On failure the previous list is kept.
func (l *Loader) LoadProvinces(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	if l.provState == StateLoaded {
		l.mu.Unlock()
		return nil
	}
	l.provState = StateLoading
	l.mu.Unlock()
	l.publish(Event{Level: LevelProvince, State: StateLoading})

	res, err, _ := l.group.Do(string(LevelProvince), func() (any, error) {
		fetchCtx, cancel := mergeCancel(ctx, l.ctx)
		defer cancel()
		return l.fetcher.Provinces(fetchCtx)
	})

	l.mu.Lock()
	if err != nil {
		l.provState = StateFailed
		l.provErr = &LoadError{Level: LevelProvince, Err: err}
		ev := Event{Level: LevelProvince, State: StateFailed, List: l.provinces.Clone(), Err: l.provErr}
		l.mu.Unlock()
		l.logger.Warn("province options fetch failed", zap.Error(err))
		l.publish(ev)
		return ev.Err
	}
	l.provinces = res.(List).Clone()
	l.provState = StateLoaded
	l.provErr = nil
	ev := Event{Level: LevelProvince, State: StateLoaded, List: l.provinces.Clone()}
	l.mu.Unlock()
	l.publish(ev)
	return nil
}

// SelectProvince switches the city list to provinceID and returns the
// generation assigned to the selection. A different or empty id clears the
// city list; reselecting the current province keeps it until the refetch
// succeeds. Any in-flight fetch for an older selection is cancelled and its
// result discarded.
func (l *Loader) SelectProvince(provinceID string) uint64 {
	l.mu.Lock()
	if l.cancelCity != nil {
		l.cancelCity()
		l.cancelCity = nil
	}
	l.generation++
	gen := l.generation
	if provinceID != l.provinceID {
		l.cities = nil
	}
	l.provinceID = provinceID
	l.cityErr = nil

	if provinceID == "" || l.closed {
		l.cities = nil
		l.cityState = StateIdle
		l.mu.Unlock()
		l.publish(Event{Level: LevelCity, State: StateIdle})
		return gen
	}

	fetchCtx, cancel := context.WithCancel(l.ctx)
	l.cancelCity = cancel
	l.cityState = StateLoading
	if l.inflight == 0 {
		l.drained = make(chan struct{})
	}
	l.inflight++
	l.mu.Unlock()
	l.publish(Event{Level: LevelCity, State: StateLoading, ProvinceID: provinceID})

	go l.fetchCities(fetchCtx, cancel, gen, provinceID)
	return gen
}

// RetryCities refetches the city list for the current province.
func (l *Loader) RetryCities() uint64 {
	l.mu.Lock()
	id := l.provinceID
	l.mu.Unlock()
	return l.SelectProvince(id)
}

func (l *Loader) fetchCities(ctx context.Context, cancel context.CancelFunc, gen uint64, provinceID string) {
	defer l.release()
	defer cancel()

	list, err := l.fetcher.Cities(ctx, provinceID)

	l.mu.Lock()
	if gen != l.generation || l.closed {
		l.mu.Unlock()
		l.logger.Debug("discarding stale city options",
			zap.String("province", provinceID),
			zap.Uint64("generation", gen),
		)
		return
	}
	l.cancelCity = nil
	var ev Event
	if err != nil {
		l.cityState = StateFailed
		l.cityErr = &LoadError{Level: LevelCity, Err: err}
		ev = Event{Level: LevelCity, State: StateFailed, List: l.cities.Clone(), Err: l.cityErr, ProvinceID: provinceID}
	} else {
		l.cities = list.Clone()
		l.cityState = StateLoaded
		ev = Event{Level: LevelCity, State: StateLoaded, List: l.cities.Clone(), ProvinceID: provinceID}
	}
	l.mu.Unlock()

	if err != nil {
		l.logger.Warn("city options fetch failed", zap.String("province", provinceID), zap.Error(err))
	}
	l.publish(ev)
}

func (l *Loader) release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inflight--
	if l.inflight == 0 {
		close(l.drained)
	}
}

// Wait blocks until no city fetch is in flight or ctx is done. Fetches
// started while waiting extend the wait. Safe to call from any goroutine.
func (l *Loader) Wait(ctx context.Context) error {
	l.mu.Lock()
	if l.inflight == 0 {
		l.mu.Unlock()
		return nil
	}
	drained := l.drained
	l.mu.Unlock()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels in-flight fetches; their results are dropped.
func (l *Loader) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.cancel()
}

// Provinces returns the last good province list.
func (l *Loader) Provinces() List {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.provinces.Clone()
}

// Cities returns the city list for the current province.
func (l *Loader) Cities() List {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cities.Clone()
}

// ProvinceState reports the province list lifecycle.
func (l *Loader) ProvinceState() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.provState
}

// CityState reports the city list lifecycle.
func (l *Loader) CityState() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cityState
}

// Generation returns the current city selection generation.
func (l *Loader) Generation() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.generation
}

// LastError returns the most recent load failure for level, or nil once the
// level loads successfully again.
func (l *Loader) LastError(level Level) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level == LevelProvince {
		return l.provErr
	}
	return l.cityErr
}

func (l *Loader) publish(ev Event) {
	l.mu.Lock()
	listeners := append([]func(Event){}, l.listeners...)
	l.mu.Unlock()
	for _, fn := range listeners {
		fn(ev)
	}
}

// mergeCancel returns a context that is done when either parent is.
func mergeCancel(ctx, lifetime context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(lifetime, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}
