package tui

import (
	"context"

	"go.uber.org/zap"

	"github.com/goliatone/go-authflow/pkg/form"
	"github.com/goliatone/go-authflow/pkg/submit"
)

// LoginView prompts for credentials and submits them.
type LoginView struct {
	view
	store *form.Store
}

// NewLoginView builds a login view around controller.
func NewLoginView(controller *submit.Controller, opts ...Option) *LoginView {
	return &LoginView{
		view:  newView(controller, opts),
		store: form.New(submit.LoginFields),
	}
}

// Store exposes the view's form state.
func (v *LoginView) Store() *form.Store { return v.store }

// Run prompts until the login succeeds or the user stops retrying. Invalid
// submissions re-prompt only the offending fields.
func (v *LoginView) Run(ctx context.Context) (submit.Outcome, error) {
	if err := v.driver.Info(ctx, v.msg("login.title")); err != nil {
		return submit.Outcome{}, err
	}

	pending := submit.LoginFields
	for {
		for _, field := range pending {
			secret := field == submit.FieldPassword
			if err := v.promptText(ctx, v.store, field, "login.field."+field, secret); err != nil {
				return submit.Outcome{}, err
			}
		}

		_ = v.driver.Info(ctx, v.msg("flow.loading"))
		out := v.controller.Login(ctx, v.store)
		v.logger.Debug("login attempt finished", zap.Stringer("outcome", out.Kind), zap.String("attempt", out.Attempt))

		switch out.Kind {
		case submit.OutcomeSuccess, submit.OutcomeBusy:
			return out, nil
		case submit.OutcomeInvalid:
			pending = pendingFields(submit.LoginFields, v.store)
			continue
		}

		_ = v.driver.Info(ctx, v.msg(out.GlobalMessageKey()))
		again, err := v.confirmRetry(ctx)
		if err != nil {
			return out, err
		}
		if !again {
			_ = v.driver.Info(ctx, v.msg("login.hint.forgot"))
			return out, nil
		}
		pending = submit.LoginFields
	}
}
