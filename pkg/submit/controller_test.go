package submit

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"

	"github.com/goliatone/go-authflow/pkg/api"
	"github.com/goliatone/go-authflow/pkg/form"
	"github.com/goliatone/go-authflow/pkg/nav"
	"github.com/goliatone/go-authflow/pkg/storage"
)

type stubBackend struct {
	store *form.Store

	loginResult api.LoginResult
	loginErr    error
	registerRes api.Code
	registerErr error
	otpRes      api.Code
	otpErr      error

	logins    []api.Credentials
	registers []api.RegistrationPayload
	otps      []string

	loadingSeen []bool
}

func (s *stubBackend) observe() {
	if s.store != nil {
		s.loadingSeen = append(s.loadingSeen, s.store.Loading())
	}
}

func (s *stubBackend) Login(_ context.Context, creds api.Credentials) (api.LoginResult, error) {
	s.observe()
	s.logins = append(s.logins, creds)
	return s.loginResult, s.loginErr
}

func (s *stubBackend) Register(_ context.Context, payload api.RegistrationPayload) (api.Code, error) {
	s.observe()
	s.registers = append(s.registers, payload)
	return s.registerRes, s.registerErr
}

func (s *stubBackend) DispatchOTP(_ context.Context, phone string) (api.Code, error) {
	s.observe()
	s.otps = append(s.otps, phone)
	return s.otpRes, s.otpErr
}

type harness struct {
	backend   *stubBackend
	nav       *nav.Recorder
	durable   *storage.Memory
	transient *storage.Memory
	ctrl      *Controller
}

func newHarness(t *testing.T, store *form.Store, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		backend:   &stubBackend{store: store},
		nav:       &nav.Recorder{},
		durable:   storage.NewMemory(),
		transient: storage.NewMemory(),
	}
	base := []Option{
		WithNavigator(h.nav),
		WithDurable(h.durable),
		WithTransient(h.transient),
		WithLogger(zaptest.NewLogger(t)),
		WithAttemptID(func() string { return "attempt-1" }),
	}
	h.ctrl = New(h.backend, append(base, opts...)...)
	return h
}

func loginStore(user, password string) *form.Store {
	s := form.New(LoginFields)
	_ = s.SetField(FieldUser, user)
	_ = s.SetField(FieldPassword, password)
	return s
}

func registerStore(t *testing.T, overrides map[string]string) *form.Store {
	t.Helper()
	s := form.New(RegisterFields, form.WithDependent(FieldProvince, FieldCity))
	values := map[string]string{
		FieldPhone:       "081234567890",
		FieldFullName:    "<b>Budi</b> Santoso",
		FieldEmail:       "budi@example.com",
		FieldProvince:    "31",
		FieldCity:        "3171",
		FieldDateOfBirth: "1990-01-02",
		FieldGender:      "WANITA",
		FieldPassword:    "secret<123>",
		FieldPIN:         "123456",
	}
	for k, v := range overrides {
		values[k] = v
	}
	for _, f := range RegisterFields {
		if err := s.SetField(f, values[f]); err != nil {
			t.Fatalf("set %s: %v", f, err)
		}
	}
	return s
}

func TestLoginSuccessPersistsMemberAndNavigates(t *testing.T) {
	store := loginStore("0812", "secret123")
	h := newHarness(t, store)
	h.backend.loginResult = api.LoginResult{Code: api.CodeSuccess, MemberID: "M123"}

	out := h.ctrl.Login(context.Background(), store)
	if out.Kind != OutcomeSuccess || out.Target != nav.Home || out.Attempt != "attempt-1" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	member, err := h.durable.Get(context.Background(), storage.KeyMember)
	if err != nil || member != "M123" {
		t.Fatalf("member = %q, %v", member, err)
	}
	if diff := cmp.Diff([]nav.Target{nav.Home}, h.nav.Targets()); diff != "" {
		t.Fatalf("navigation mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]api.Credentials{{User: "0812", Password: "secret123"}}, h.backend.logins); diff != "" {
		t.Fatalf("credentials mismatch (-want +got):\n%s", diff)
	}
	if store.Loading() || store.GlobalError() {
		t.Fatalf("expected clean flags, got loading=%v global=%v", store.Loading(), store.GlobalError())
	}
	if store.Value(FieldUser) != "" || store.Value(FieldPassword) != "" {
		t.Fatal("expected form to be reset")
	}
}

func TestLoginRejectedSetsGlobalErrorWithoutNavigation(t *testing.T) {
	store := loginStore("0812", "wrong")
	h := newHarness(t, store)
	h.backend.loginResult = api.LoginResult{Code: "4001100"}

	out := h.ctrl.Login(context.Background(), store)
	if out.Kind != OutcomeRejected || out.Code != "4001100" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	var rej *api.RejectionError
	if !errors.As(out.Err, &rej) {
		t.Fatalf("expected RejectionError, got %v", out.Err)
	}
	if !store.GlobalError() {
		t.Fatal("expected globalError")
	}
	if len(store.Errors()) != 0 {
		t.Fatalf("expected no field errors, got %v", store.Errors())
	}
	if len(h.nav.Targets()) != 0 {
		t.Fatalf("expected no navigation, got %v", h.nav.Targets())
	}
	if _, err := h.durable.Get(context.Background(), storage.KeyMember); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected nothing persisted, got %v", err)
	}
	if out.GlobalMessageKey() != "login.error.rejected" {
		t.Fatalf("unexpected message key %q", out.GlobalMessageKey())
	}
}

func TestLoginTransportFailureIsVisible(t *testing.T) {
	store := loginStore("0812", "secret123")
	h := newHarness(t, store)
	h.backend.loginErr = &api.TransportError{Op: "login", Status: 502}

	out := h.ctrl.Login(context.Background(), store)
	if out.Kind != OutcomeTransportFailure || !api.IsTransport(out.Err) {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if !store.GlobalError() {
		t.Fatal("expected globalError after transport failure")
	}
	if store.Loading() {
		t.Fatal("loading left true")
	}
}

func TestLoginMissingMemberID(t *testing.T) {
	store := loginStore("0812", "secret123")
	h := newHarness(t, store)
	h.backend.loginResult = api.LoginResult{Code: api.CodeSuccess}

	out := h.ctrl.Login(context.Background(), store)
	if !errors.Is(out.Err, ErrMissingMember) || len(h.nav.Targets()) != 0 {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

type failingStore struct {
	*storage.Memory
	err error
}

func (f failingStore) Set(context.Context, string, string) error { return f.err }

func TestLoginPersistFailureKeepsLoginMessage(t *testing.T) {
	store := loginStore("0812", "secret123")
	diskFull := errors.New("disk full")
	h := newHarness(t, store, WithDurable(failingStore{Memory: storage.NewMemory(), err: diskFull}))
	h.backend.loginResult = api.LoginResult{Code: api.CodeSuccess, MemberID: "M123"}

	out := h.ctrl.Login(context.Background(), store)
	if out.Kind != OutcomeTransportFailure || out.Stage != StagePersist || out.Flow != FlowLogin {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if !errors.Is(out.Err, diskFull) {
		t.Fatalf("expected storage error, got %v", out.Err)
	}
	if got := out.GlobalMessageKey(); got != "login.error.rejected" {
		t.Fatalf("unexpected message key %q", got)
	}
	if len(h.nav.Targets()) != 0 {
		t.Fatalf("expected no navigation, got %v", h.nav.Targets())
	}
}

func TestMarkupOnlyInputIsInvalid(t *testing.T) {
	store := loginStore("<b></b>", "secret123")
	h := newHarness(t, store)

	out := h.ctrl.Login(context.Background(), store)
	if out.Kind != OutcomeInvalid {
		t.Fatalf("expected invalid, got %+v", out)
	}
	if diff := cmp.Diff([]string{FieldUser}, out.Errors.Fields()); diff != "" {
		t.Fatalf("error fields mismatch (-want +got):\n%s", diff)
	}
	if len(h.backend.logins) != 0 {
		t.Fatalf("backend must not be called, got %v", h.backend.logins)
	}

	reg := registerStore(t, map[string]string{FieldFullName: "<i> </i>"})
	h = newHarness(t, reg)
	out = h.ctrl.Register(context.Background(), reg)
	if out.Kind != OutcomeInvalid || reg.ErrorFor(FieldFullName) == "" {
		t.Fatalf("expected full name error, got %+v", out)
	}
	if len(h.backend.registers) != 0 {
		t.Fatal("backend must not be called")
	}
}

func TestLoginEmptyFieldsDoNotCallBackend(t *testing.T) {
	store := loginStore("", "  ")
	h := newHarness(t, store)

	out := h.ctrl.Login(context.Background(), store)
	if out.Kind != OutcomeInvalid {
		t.Fatalf("expected invalid, got %v", out.Kind)
	}
	if diff := cmp.Diff([]string{FieldPassword, FieldUser}, out.Errors.Fields()); diff != "" {
		t.Fatalf("error fields mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]string(out.Errors), store.Errors()); diff != "" {
		t.Fatalf("store errors mismatch (-want +got):\n%s", diff)
	}
	if store.Errors()[FieldUser] != "No Telepon tidak boleh kosong" {
		t.Fatalf("unexpected user message %q", store.Errors()[FieldUser])
	}
	if len(h.backend.logins) != 0 {
		t.Fatal("backend must not be called")
	}
	if store.Value(FieldPassword) != "  " {
		t.Fatal("invalid submission must not reset the form")
	}
}

func TestOnlyEmptyFieldsGetErrors(t *testing.T) {
	store := registerStore(t, map[string]string{FieldEmail: "", FieldCity: ""})
	h := newHarness(t, store)

	out := h.ctrl.Register(context.Background(), store)
	if out.Kind != OutcomeInvalid {
		t.Fatalf("expected invalid, got %v", out.Kind)
	}
	if diff := cmp.Diff([]string{FieldCity, FieldEmail}, out.Errors.Fields()); diff != "" {
		t.Fatalf("error fields mismatch (-want +got):\n%s", diff)
	}
	if len(h.backend.registers) != 0 || len(h.backend.otps) != 0 {
		t.Fatal("backend must not be called")
	}
}

func TestLoginBusy(t *testing.T) {
	store := loginStore("0812", "secret123")
	h := newHarness(t, store)
	store.SetLoading(true)

	out := h.ctrl.Login(context.Background(), store)
	if out.Kind != OutcomeBusy {
		t.Fatalf("expected busy, got %v", out.Kind)
	}
	if len(h.backend.logins) != 0 {
		t.Fatal("busy submission must not reach the backend")
	}
	if !store.Loading() {
		t.Fatal("busy submission must not clear the other attempt's loading flag")
	}
}

func TestLoadingTrueOnlyDuringCall(t *testing.T) {
	store := loginStore("0812", "secret123")
	h := newHarness(t, store)
	h.backend.loginResult = api.LoginResult{Code: "1"}

	if store.Loading() {
		t.Fatal("loading before submit")
	}
	h.ctrl.Login(context.Background(), store)
	if diff := cmp.Diff([]bool{true}, h.backend.loadingSeen); diff != "" {
		t.Fatalf("loading during call mismatch (-want +got):\n%s", diff)
	}
	if store.Loading() {
		t.Fatal("loading after submit")
	}
}

func TestRegisterSuccessStoresPhoneAndNavigates(t *testing.T) {
	store := registerStore(t, nil)
	h := newHarness(t, store)
	h.backend.registerRes = api.CodeSuccess
	h.backend.otpRes = api.CodeSuccess

	out := h.ctrl.Register(context.Background(), store)
	if out.Kind != OutcomeSuccess || out.Target != nav.OTPRegister {
		t.Fatalf("unexpected outcome %+v", out)
	}

	want := api.RegistrationPayload{
		FullName:      "Budi Santoso",
		Phone:         "081234567890",
		Email:         "budi@example.com",
		PIN:           "123456",
		Password:      "secret<123>",
		Province:      "31",
		City:          "3171",
		Gender:        "p",
		DateOfBirth:   "1990-01-02",
		MinatKategori: "-",
	}
	if diff := cmp.Diff([]api.RegistrationPayload{want}, h.backend.registers); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"081234567890"}, h.backend.otps); diff != "" {
		t.Fatalf("otp mismatch (-want +got):\n%s", diff)
	}
	phone, err := h.transient.Get(context.Background(), storage.KeyPhone)
	if err != nil || phone != "081234567890" {
		t.Fatalf("phone = %q, %v", phone, err)
	}
	if diff := cmp.Diff([]nav.Target{nav.OTPRegister}, h.nav.Targets()); diff != "" {
		t.Fatalf("navigation mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]bool{true, true}, h.backend.loadingSeen); diff != "" {
		t.Fatalf("loading during calls mismatch (-want +got):\n%s", diff)
	}
	if store.Loading() {
		t.Fatal("loading left true")
	}
}

func TestRegisterRejectedSkipsOTP(t *testing.T) {
	store := registerStore(t, nil)
	h := newHarness(t, store)
	h.backend.registerRes = "4090000"

	out := h.ctrl.Register(context.Background(), store)
	if out.Kind != OutcomeRejected || out.Stage != StageRegister {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if len(h.backend.otps) != 0 {
		t.Fatal("otp must not be dispatched after rejection")
	}
	if !store.GlobalError() {
		t.Fatal("expected globalError")
	}
	if out.GlobalMessageKey() != "register.error.rejected" {
		t.Fatalf("unexpected message key %q", out.GlobalMessageKey())
	}
}

func TestRegisterOTPFailureDoesNotNavigate(t *testing.T) {
	cases := map[string]func(*stubBackend){
		"rejected":  func(b *stubBackend) { b.otpRes = "5000000" },
		"transport": func(b *stubBackend) { b.otpErr = &api.TransportError{Op: "verify", Status: 500} },
	}
	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			store := registerStore(t, nil)
			h := newHarness(t, store)
			h.backend.registerRes = api.CodeSuccess
			setup(h.backend)

			out := h.ctrl.Register(context.Background(), store)
			if out.OK() || out.Stage != StageOTPDispatch || out.Phone != "081234567890" {
				t.Fatalf("unexpected outcome %+v", out)
			}
			if len(h.nav.Targets()) != 0 {
				t.Fatalf("expected no navigation, got %v", h.nav.Targets())
			}
			if !store.GlobalError() {
				t.Fatal("expected globalError")
			}
			if _, err := h.transient.Get(context.Background(), storage.KeyPhone); !errors.Is(err, storage.ErrNotFound) {
				t.Fatalf("phone must not be stored, got %v", err)
			}
			if got := out.GlobalMessageKey(); got != "register.error.otp" {
				t.Fatalf("unexpected message key %q", got)
			}
		})
	}
}

func TestResendOTP(t *testing.T) {
	store := form.New(RegisterFields)
	h := newHarness(t, store)
	h.backend.otpRes = api.CodeSuccess

	out := h.ctrl.ResendOTP(context.Background(), store, " 0812 ")
	if !out.OK() || out.Target != nav.OTPRegister {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if diff := cmp.Diff([]string{"0812"}, h.backend.otps); diff != "" {
		t.Fatalf("otp mismatch (-want +got):\n%s", diff)
	}

	h.backend.otpRes = "5000000"
	out = h.ctrl.ResendOTP(context.Background(), store, "0812")
	if out.Flow != FlowResendOTP || out.GlobalMessageKey() != "register.error.otp" {
		t.Fatalf("unexpected failed resend %+v", out)
	}

	out = h.ctrl.ResendOTP(context.Background(), store, "")
	if out.Kind != OutcomeInvalid || store.ErrorFor(FieldPhone) == "" {
		t.Fatalf("expected invalid phone, got %+v", out)
	}
}

func TestRegisterUnknownGender(t *testing.T) {
	store := registerStore(t, map[string]string{FieldGender: "X"})
	h := newHarness(t, store)

	out := h.ctrl.Register(context.Background(), store)
	if out.Kind != OutcomeInvalid {
		t.Fatalf("expected invalid, got %v", out.Kind)
	}
	if diff := cmp.Diff([]string{FieldGender}, out.Errors.Fields()); diff != "" {
		t.Fatalf("error fields mismatch (-want +got):\n%s", diff)
	}
	if len(h.backend.registers) != 0 {
		t.Fatal("backend must not be called")
	}
}

func TestResetPolicy(t *testing.T) {
	t.Run("always", func(t *testing.T) {
		store := loginStore("0812", "wrong")
		h := newHarness(t, store)
		h.backend.loginResult = api.LoginResult{Code: "1"}
		h.ctrl.Login(context.Background(), store)
		if store.Value(FieldUser) != "" {
			t.Fatal("expected reset after failure")
		}
		if !store.GlobalError() {
			t.Fatal("reset must keep the global error")
		}
	})

	t.Run("on success", func(t *testing.T) {
		store := loginStore("0812", "wrong")
		h := newHarness(t, store, WithResetPolicy(ResetOnSuccess))
		h.backend.loginResult = api.LoginResult{Code: "1"}
		h.ctrl.Login(context.Background(), store)
		if store.Value(FieldUser) != "0812" {
			t.Fatal("expected values kept after failure")
		}

		h.backend.loginResult = api.LoginResult{Code: api.CodeSuccess, MemberID: "M1"}
		h.ctrl.Login(context.Background(), store)
		if store.Value(FieldUser) != "" {
			t.Fatal("expected reset after success")
		}
		if store.GlobalError() {
			t.Fatal("new attempt must clear the previous global error")
		}
	})
}

func TestKindString(t *testing.T) {
	want := []string{"success", "rejected", "transport_failure", "invalid", "busy", "unknown"}
	got := make([]string, 0, len(want))
	for k := OutcomeSuccess; k <= OutcomeBusy+1; k++ {
		got = append(got, k.String())
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("kind strings mismatch (-want +got):\n%s", diff)
	}
}
