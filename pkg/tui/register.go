package tui

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/goliatone/go-authflow/pkg/form"
	"github.com/goliatone/go-authflow/pkg/options"
	"github.com/goliatone/go-authflow/pkg/submit"
)

// registerOrder is the order fields are asked in.
var registerOrder = []string{
	submit.FieldFullName,
	submit.FieldPhone,
	submit.FieldEmail,
	submit.FieldProvince,
	submit.FieldCity,
	submit.FieldDateOfBirth,
	submit.FieldGender,
	submit.FieldPassword,
	submit.FieldPIN,
}

// RegisterView prompts for the registration form. Province and city are
// picked from lists served by the options loader; changing the province
// clears the city and refetches the list.
type RegisterView struct {
	view
	store  *form.Store
	loader *options.Loader
	unbind func()
}

// NewRegisterView builds a registration view. fetcher serves the province
// and city lists. Call Close when done.
func NewRegisterView(controller *submit.Controller, fetcher options.Fetcher, opts ...Option) *RegisterView {
	v := &RegisterView{
		view:  newView(controller, opts),
		store: form.New(submit.RegisterFields, form.WithDependent(submit.FieldProvince, submit.FieldCity)),
	}
	v.loader = options.NewLoader(fetcher, options.WithLogger(v.logger))
	v.unbind = v.loader.Bind(v.store, submit.FieldProvince)
	return v
}

// Store exposes the view's form state.
func (v *RegisterView) Store() *form.Store { return v.store }

// Loader exposes the option loader.
func (v *RegisterView) Loader() *options.Loader { return v.loader }

// Close detaches the loader and cancels any in-flight list fetch.
func (v *RegisterView) Close() {
	v.unbind()
	v.loader.Close()
}

// Run prompts until registration and OTP dispatch succeed or the user stops
// retrying.
func (v *RegisterView) Run(ctx context.Context) (submit.Outcome, error) {
	_ = v.driver.Info(ctx, v.msg("register.title"))
	if err := v.driver.Info(ctx, v.msg("register.subtitle")); err != nil {
		return submit.Outcome{}, err
	}

	pending := registerOrder
	termsAccepted := false
	for {
		if err := v.promptFields(ctx, pending); err != nil {
			return submit.Outcome{}, err
		}
		if !termsAccepted {
			ok, err := v.promptTerms(ctx)
			if err != nil {
				return submit.Outcome{}, err
			}
			termsAccepted = ok
		}

		_ = v.driver.Info(ctx, v.msg("flow.loading"))
		out := v.controller.Register(ctx, v.store)
		v.logger.Debug("register attempt finished",
			zap.Stringer("outcome", out.Kind),
			zap.String("stage", string(out.Stage)),
			zap.String("attempt", out.Attempt),
		)

		switch out.Kind {
		case submit.OutcomeSuccess, submit.OutcomeBusy:
			return out, nil
		case submit.OutcomeInvalid:
			pending = pendingFields(registerOrder, v.store)
			continue
		}

		_ = v.driver.Info(ctx, v.msg(out.GlobalMessageKey()))
		if out.Stage == submit.StageOTPDispatch && out.Phone != "" {
			return v.resendOTP(ctx, out)
		}
		again, err := v.confirmRetry(ctx)
		if err != nil {
			return out, err
		}
		if !again {
			_ = v.driver.Info(ctx, v.msg("register.hint.login"))
			return out, nil
		}
		pending = registerOrder
	}
}

func (v *RegisterView) promptFields(ctx context.Context, fields []string) error {
	for _, field := range fields {
		var err error
		switch field {
		case submit.FieldProvince:
			err = v.promptProvince(ctx)
		case submit.FieldCity:
			err = v.promptCity(ctx)
		case submit.FieldGender:
			err = v.promptGender(ctx)
		case submit.FieldPassword, submit.FieldPIN:
			err = v.promptText(ctx, v.store, field, "register.field."+field, true)
		default:
			err = v.promptText(ctx, v.store, field, "register.field."+field, false)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (v *RegisterView) promptProvince(ctx context.Context) error {
	for {
		err := v.loader.LoadProvinces(ctx)
		list := v.loader.Provinces()
		if err != nil {
			_ = v.driver.Info(ctx, v.msg("options.error.provinces"))
			if len(list) == 0 {
				again, perr := v.confirmRetry(ctx)
				if perr != nil {
					return perr
				}
				if !again {
					return err
				}
				continue
			}
		}
		return v.selectInto(ctx, submit.FieldProvince, list)
	}
}

func (v *RegisterView) promptCity(ctx context.Context) error {
	for {
		if err := v.loader.Wait(ctx); err != nil {
			return err
		}
		list := v.loader.Cities()
		if v.loader.CityState() == options.StateFailed || len(list) == 0 {
			_ = v.driver.Info(ctx, v.msg("options.error.cities"))
			again, err := v.confirmRetry(ctx)
			if err != nil {
				return err
			}
			if !again {
				if lastErr := v.loader.LastError(options.LevelCity); lastErr != nil {
					return lastErr
				}
				return ErrNoOptions
			}
			v.loader.RetryCities()
			continue
		}
		return v.selectInto(ctx, submit.FieldCity, list)
	}
}

func (v *RegisterView) promptGender(ctx context.Context) error {
	list := options.Genders(
		v.msg("register.gender."+options.GenderMale),
		v.msg("register.gender."+options.GenderFemale),
	)
	return v.selectInto(ctx, submit.FieldGender, list)
}

func (v *RegisterView) selectInto(ctx context.Context, field string, list options.List) error {
	v.showFieldError(ctx, v.store, field)
	idx, err := v.driver.Select(ctx, SelectConfig{
		Message:      v.msg("register.field." + field),
		Options:      list.Labels(),
		DefaultIndex: list.IndexOf(v.store.Value(field)),
	})
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(list) {
		return fmt.Errorf("tui: %s: selection %d out of range", field, idx)
	}
	return v.store.SetField(field, list[idx].ID)
}

// promptTerms asks for the terms until they are accepted or the user gives
// up.
func (v *RegisterView) promptTerms(ctx context.Context) (bool, error) {
	for {
		ok, err := v.driver.Confirm(ctx, ConfirmConfig{Message: v.msg("register.field.terms")})
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		_ = v.driver.Info(ctx, v.msg("validation.required.terms"))
		again, err := v.confirmRetry(ctx)
		if err != nil {
			return false, err
		}
		if !again {
			return false, ErrTermsDeclined
		}
	}
}

// resendOTP keeps offering to resend the code after a registration whose
// OTP dispatch failed.
func (v *RegisterView) resendOTP(ctx context.Context, out submit.Outcome) (submit.Outcome, error) {
	phone := out.Phone
	for {
		again, err := v.confirmRetry(ctx)
		if err != nil {
			return out, err
		}
		if !again {
			return out, nil
		}
		out = v.controller.ResendOTP(ctx, v.store, phone)
		if out.OK() || out.Kind == submit.OutcomeBusy {
			return out, nil
		}
		_ = v.driver.Info(ctx, v.msg(out.GlobalMessageKey()))
	}
}
