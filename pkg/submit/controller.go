// Package submit runs the login and registration pipelines against a form
// store: validate, call the backend, persist, navigate, and always clear the
// loading flag afterwards.
package submit

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-authflow/pkg/api"
	"github.com/goliatone/go-authflow/pkg/contract"
	"github.com/goliatone/go-authflow/pkg/form"
	"github.com/goliatone/go-authflow/pkg/nav"
	"github.com/goliatone/go-authflow/pkg/options"
	"github.com/goliatone/go-authflow/pkg/sanitize"
	"github.com/goliatone/go-authflow/pkg/storage"
	"github.com/goliatone/go-authflow/pkg/validation"
)

// Field names, shared with the backend wire format.
const (
	FieldUser        = "user"
	FieldPassword    = "password"
	FieldPhone       = "phone"
	FieldFullName    = "fullName"
	FieldEmail       = "email"
	FieldProvince    = "province"
	FieldCity        = "city"
	FieldDateOfBirth = "dateofBirth"
	FieldGender      = "gender"
	FieldPIN         = "pin"
)

// LoginFields are the login form's fields, all required.
var LoginFields = []string{FieldUser, FieldPassword}

// RegisterFields are the registration form's fields, all required.
var RegisterFields = []string{
	FieldPhone, FieldFullName, FieldEmail, FieldProvince, FieldCity,
	FieldDateOfBirth, FieldGender, FieldPassword, FieldPIN,
}

var secretFields = []string{FieldPassword, FieldPIN}

// ErrMissingMember is returned when a successful login carries no member id.
var ErrMissingMember = errors.New("submit: login response has no member id")

// Backend is the subset of the storefront API the pipelines call.
type Backend interface {
	Login(ctx context.Context, creds api.Credentials) (api.LoginResult, error)
	Register(ctx context.Context, payload api.RegistrationPayload) (api.Code, error)
	DispatchOTP(ctx context.Context, phone string) (api.Code, error)
}

var _ Backend = (*api.Client)(nil)

// ResetPolicy decides when form values are cleared after an attempt.
type ResetPolicy int

const (
	// ResetAlways clears the form after every attempt that reached the
	// network.
	ResetAlways ResetPolicy = iota
	// ResetOnSuccess keeps the values after a failed attempt.
	ResetOnSuccess
)

// Controller owns the submission pipelines. It holds no form state.
type Controller struct {
	backend   Backend
	navigator nav.Navigator
	durable   storage.Durable
	transient storage.Transient
	validator *validation.Validator
	logger    *zap.Logger
	reset     ResetPolicy
	attemptID func() string
}

// Option configures a Controller.
type Option func(*Controller)

func WithNavigator(n nav.Navigator) Option {
	return func(c *Controller) {
		if n != nil {
			c.navigator = n
		}
	}
}

func WithDurable(s storage.Durable) Option {
	return func(c *Controller) {
		if s != nil {
			c.durable = s
		}
	}
}

func WithTransient(s storage.Transient) Option {
	return func(c *Controller) {
		if s != nil {
			c.transient = s
		}
	}
}

func WithValidator(v *validation.Validator) Option {
	return func(c *Controller) {
		if v != nil {
			c.validator = v
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithResetPolicy(p ResetPolicy) Option {
	return func(c *Controller) { c.reset = p }
}

// WithAttemptID overrides the attempt id generator.
func WithAttemptID(fn func() string) Option {
	return func(c *Controller) {
		if fn != nil {
			c.attemptID = fn
		}
	}
}

// New builds a controller. Unset collaborators default to in-memory storage,
// a recording navigator and the default validator.
func New(backend Backend, opts ...Option) *Controller {
	c := &Controller{
		backend:   backend,
		navigator: &nav.Recorder{},
		durable:   storage.NewMemory(),
		transient: storage.NewMemory(),
		validator: validation.New(),
		logger:    zap.NewNop(),
		reset:     ResetAlways,
		attemptID: uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Login validates the login form and submits it. On success the member id is
// persisted and the front end moves to the landing view.
func (c *Controller) Login(ctx context.Context, store *form.Store) (out Outcome) {
	out.Flow, out.Stage = FlowLogin, StageLogin
	if store.Loading() {
		out.Kind = OutcomeBusy
		return out
	}

	clean := sanitize.Values(store.Values(), secretFields...)
	if errs := c.validator.ValidateRequired(clean, LoginFields); len(errs) > 0 {
		store.SetErrors(errs)
		out.Kind = OutcomeInvalid
		out.Errors = errs
		return out
	}

	if !c.begin(store) {
		out.Kind = OutcomeBusy
		return out
	}
	out.Attempt = c.attemptID()
	log := c.logger.With(zap.String("flow", string(FlowLogin)), zap.String("attempt", out.Attempt))
	defer func() { c.finish(store, out, log) }()

	res, err := c.backend.Login(ctx, api.Credentials{User: clean[FieldUser], Password: clean[FieldPassword]})
	if err != nil {
		return c.fail(store, out, OutcomeTransportFailure, StageLogin, err)
	}
	out.Code = res.Code
	if !res.Code.IsSuccess() {
		return c.fail(store, out, OutcomeRejected, StageLogin, &api.RejectionError{Op: contract.OpLogin, Code: res.Code})
	}
	if strings.TrimSpace(res.MemberID) == "" {
		return c.fail(store, out, OutcomeTransportFailure, StageLogin, ErrMissingMember)
	}
	if err := c.durable.Set(ctx, storage.KeyMember, res.MemberID); err != nil {
		return c.fail(store, out, OutcomeTransportFailure, StagePersist, err)
	}

	return c.succeed(ctx, out, nav.Home, log)
}

// Register validates the registration form, submits it and then asks the
// backend to send the OTP. Only when both calls succeed is the phone stored
// for the verification view and the front end moved there.
func (c *Controller) Register(ctx context.Context, store *form.Store) (out Outcome) {
	out.Flow, out.Stage = FlowRegister, StageRegister
	if store.Loading() {
		out.Kind = OutcomeBusy
		return out
	}

	clean := sanitize.Values(store.Values(), secretFields...)
	errs := c.validator.ValidateRequired(clean, RegisterFields)
	if msg, bad := c.validator.ValidateOneOf(FieldGender, clean[FieldGender], []string{options.GenderMale, options.GenderFemale}); bad {
		if _, exists := errs[FieldGender]; !exists {
			errs[FieldGender] = msg
		}
	}
	if len(errs) > 0 {
		store.SetErrors(errs)
		out.Kind = OutcomeInvalid
		out.Errors = errs
		return out
	}

	if !c.begin(store) {
		out.Kind = OutcomeBusy
		return out
	}
	out.Attempt = c.attemptID()
	log := c.logger.With(zap.String("flow", string(FlowRegister)), zap.String("attempt", out.Attempt))
	defer func() { c.finish(store, out, log) }()

	gender, _ := api.GenderCode(clean[FieldGender])
	payload := api.RegistrationPayload{
		FullName:      clean[FieldFullName],
		Phone:         clean[FieldPhone],
		Email:         clean[FieldEmail],
		PIN:           clean[FieldPIN],
		Password:      clean[FieldPassword],
		Province:      clean[FieldProvince],
		City:          clean[FieldCity],
		Gender:        gender,
		DateOfBirth:   clean[FieldDateOfBirth],
		MinatKategori: api.InterestPlaceholder,
	}

	code, err := c.backend.Register(ctx, payload)
	if err != nil {
		return c.fail(store, out, OutcomeTransportFailure, StageRegister, err)
	}
	out.Code = code
	if !code.IsSuccess() {
		return c.fail(store, out, OutcomeRejected, StageRegister, &api.RejectionError{Op: contract.OpRegister, Code: code})
	}

	out.Phone = payload.Phone
	return c.dispatchOTP(ctx, store, out, log)
}

// ResendOTP repeats only the OTP dispatch step for a phone whose
// registration already succeeded.
func (c *Controller) ResendOTP(ctx context.Context, store *form.Store, phone string) (out Outcome) {
	out.Flow, out.Stage = FlowResendOTP, StageOTPDispatch
	phone = sanitize.Text(phone)
	if phone == "" {
		errs := validation.Errors{FieldPhone: c.validator.ValidateRequired(nil, []string{FieldPhone})[FieldPhone]}
		store.SetErrors(errs)
		out.Kind = OutcomeInvalid
		out.Errors = errs
		return out
	}
	if !c.begin(store) {
		out.Kind = OutcomeBusy
		return out
	}
	out.Attempt = c.attemptID()
	out.Phone = phone
	log := c.logger.With(zap.String("flow", string(FlowResendOTP)), zap.String("attempt", out.Attempt))
	defer func() { c.finish(store, out, log) }()

	return c.dispatchOTP(ctx, store, out, log)
}

func (c *Controller) dispatchOTP(ctx context.Context, store *form.Store, out Outcome, log *zap.Logger) Outcome {
	code, err := c.backend.DispatchOTP(ctx, out.Phone)
	if err != nil {
		return c.fail(store, out, OutcomeTransportFailure, StageOTPDispatch, err)
	}
	out.Code = code
	if !code.IsSuccess() {
		return c.fail(store, out, OutcomeRejected, StageOTPDispatch, &api.RejectionError{Op: contract.OpVerify, Code: code})
	}
	if err := c.transient.Set(ctx, storage.KeyPhone, out.Phone); err != nil {
		return c.fail(store, out, OutcomeTransportFailure, StagePersist, err)
	}
	return c.succeed(ctx, out, nav.OTPRegister, log)
}

func (c *Controller) begin(store *form.Store) bool {
	if !store.TryBeginLoading() {
		return false
	}
	store.SetGlobalError(false)
	return true
}

func (c *Controller) succeed(ctx context.Context, out Outcome, target nav.Target, log *zap.Logger) Outcome {
	out.Kind = OutcomeSuccess
	out.Target = target
	if err := c.navigator.Navigate(ctx, target); err != nil {
		log.Warn("navigation failed", zap.String("target", string(target)), zap.Error(err))
		out.Err = err
	}
	return out
}

func (c *Controller) fail(store *form.Store, out Outcome, kind Kind, stage Stage, err error) Outcome {
	store.SetGlobalError(true)
	out.Kind = kind
	out.Stage = stage
	out.Err = err
	return out
}

// finish clears the loading flag and applies the reset policy. It runs on
// every path that set loading.
func (c *Controller) finish(store *form.Store, out Outcome, log *zap.Logger) {
	store.SetLoading(false)
	if c.reset == ResetAlways || out.OK() {
		store.Reset()
	}

	fields := []zap.Field{
		zap.Stringer("outcome", out.Kind),
		zap.String("stage", string(out.Stage)),
		zap.String("code", string(out.Code)),
	}
	switch out.Kind {
	case OutcomeSuccess:
		log.Info("submission succeeded", append(fields, zap.String("target", string(out.Target)))...)
	case OutcomeRejected:
		log.Warn("submission rejected", append(fields, zap.Error(out.Err))...)
	default:
		log.Error("submission failed", append(fields, zap.Error(out.Err))...)
	}
}
