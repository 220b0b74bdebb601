// Package authflow wires the storefront login and registration flows: the
// backend client, client storage, validation, the submission controller and
// the terminal views.
package authflow

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-authflow/pkg/api"
	"github.com/goliatone/go-authflow/pkg/i18n"
	"github.com/goliatone/go-authflow/pkg/nav"
	"github.com/goliatone/go-authflow/pkg/options"
	"github.com/goliatone/go-authflow/pkg/storage"
	"github.com/goliatone/go-authflow/pkg/submit"
	"github.com/goliatone/go-authflow/pkg/tui"
	"github.com/goliatone/go-authflow/pkg/validation"
)

// Flow holds the wired components. Views built from one Flow share its
// controller, storage and backend client.
type Flow struct {
	client     *api.Client
	controller *submit.Controller
	validator  *validation.Validator
	catalog    *i18n.Catalog
	locale     string
	logger     *zap.Logger
	durable    storage.Durable
	transient  storage.Transient
	driver     tui.PromptDriver
	closeStore func() error
}

type settings struct {
	baseURL     string
	timeout     time.Duration
	httpClient  *http.Client
	locale      string
	logger      *zap.Logger
	catalog     *i18n.Catalog
	durable     storage.Durable
	transient   storage.Transient
	storage     *storage.Config
	navigator   nav.Navigator
	driver      tui.PromptDriver
	resetPolicy submit.ResetPolicy
}

// Option configures New.
type Option func(*settings)

// WithBaseURL sets the backend base URL. Required.
func WithBaseURL(u string) Option {
	return func(s *settings) { s.baseURL = u }
}

// WithTimeout bounds each backend request.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) { s.timeout = d }
}

// WithHTTPClient overrides the backend HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *settings) { s.httpClient = hc }
}

// WithLocale selects the message locale.
func WithLocale(locale string) Option {
	return func(s *settings) { s.locale = locale }
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCatalog overrides the message catalog.
func WithCatalog(catalog *i18n.Catalog) Option {
	return func(s *settings) {
		if catalog != nil {
			s.catalog = catalog
		}
	}
}

// WithDurableStore uses store for the member id instead of opening one.
func WithDurableStore(store storage.Durable) Option {
	return func(s *settings) { s.durable = store }
}

// WithTransientStore overrides the session-scoped store.
func WithTransientStore(store storage.Transient) Option {
	return func(s *settings) { s.transient = store }
}

// WithStorage opens the durable store described by cfg.
func WithStorage(cfg storage.Config) Option {
	return func(s *settings) { s.storage = &cfg }
}

// WithNavigator receives navigation requests.
func WithNavigator(n nav.Navigator) Option {
	return func(s *settings) { s.navigator = n }
}

// WithPromptDriver overrides the terminal driver used by the views.
func WithPromptDriver(d tui.PromptDriver) Option {
	return func(s *settings) { s.driver = d }
}

// WithResetPolicy chooses when forms are cleared after a submission.
func WithResetPolicy(p submit.ResetPolicy) Option {
	return func(s *settings) { s.resetPolicy = p }
}

// New wires a Flow. Without a durable store or storage config, state is kept
// in memory.
func New(ctx context.Context, opts ...Option) (*Flow, error) {
	s := settings{
		locale:      i18n.BaseLocale,
		logger:      zap.NewNop(),
		catalog:     i18n.Default(),
		navigator:   &nav.Recorder{},
		resetPolicy: submit.ResetAlways,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	if s.baseURL == "" {
		return nil, errors.New("authflow: base URL is required")
	}

	client, err := api.NewClient(s.baseURL,
		api.WithTimeout(s.timeout),
		api.WithHTTPClient(s.httpClient),
		api.WithLogger(s.logger.Named("api")),
	)
	if err != nil {
		return nil, err
	}

	f := &Flow{
		client:     client,
		catalog:    s.catalog,
		locale:     s.catalog.Resolve(s.locale),
		logger:     s.logger,
		durable:    s.durable,
		transient:  s.transient,
		driver:     s.driver,
		closeStore: func() error { return nil },
	}
	if f.durable == nil {
		if s.storage != nil {
			durable, closeFn, err := storage.Open(ctx, *s.storage)
			if err != nil {
				return nil, err
			}
			f.durable, f.closeStore = durable, closeFn
		} else {
			f.durable = storage.NewMemory()
		}
	}
	if f.transient == nil {
		f.transient = storage.NewMemory()
	}

	f.validator = validation.New(
		validation.WithMessages(f.catalog),
		validation.WithLocale(f.locale),
	)
	f.controller = submit.New(client,
		submit.WithNavigator(s.navigator),
		submit.WithDurable(f.durable),
		submit.WithTransient(f.transient),
		submit.WithValidator(f.validator),
		submit.WithLogger(s.logger.Named("submit")),
		submit.WithResetPolicy(s.resetPolicy),
	)
	return f, nil
}

// Controller returns the submission controller for headless use.
func (f *Flow) Controller() *submit.Controller { return f.controller }

// Client returns the backend client.
func (f *Flow) Client() *api.Client { return f.client }

// Locale returns the resolved message locale.
func (f *Flow) Locale() string { return f.locale }

// Message resolves a catalog key in the flow's locale.
func (f *Flow) Message(key string) string { return f.catalog.Message(f.locale, key) }

// LoginView builds a fresh login view.
func (f *Flow) LoginView() *tui.LoginView {
	return tui.NewLoginView(f.controller, f.viewOptions()...)
}

// RegisterView builds a fresh registration view. Close it when done.
func (f *Flow) RegisterView() *tui.RegisterView {
	return tui.NewRegisterView(f.controller, f.client, f.viewOptions()...)
}

func (f *Flow) viewOptions() []tui.Option {
	return []tui.Option{
		tui.WithPromptDriver(f.driver),
		tui.WithCatalog(f.catalog),
		tui.WithLocale(f.locale),
		tui.WithValidator(f.validator),
		tui.WithLogger(f.logger.Named("tui")),
	}
}

// Provinces fetches the province list.
func (f *Flow) Provinces(ctx context.Context) (options.List, error) {
	return f.client.Provinces(ctx)
}

// Cities fetches the cities of provinceID.
func (f *Flow) Cities(ctx context.Context, provinceID string) (options.List, error) {
	return f.client.Cities(ctx, provinceID)
}

// Member returns the member id stored by the last successful login.
func (f *Flow) Member(ctx context.Context) (string, error) {
	return f.durable.Get(ctx, storage.KeyMember)
}

// PendingPhone returns the phone awaiting OTP verification in this session.
func (f *Flow) PendingPhone(ctx context.Context) (string, error) {
	return f.transient.Get(ctx, storage.KeyPhone)
}

// Close releases storage resources.
func (f *Flow) Close() error {
	return f.closeStore()
}
