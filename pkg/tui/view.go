// Package tui renders the login and registration flows as terminal prompts.
// Views own a form store and delegate every decision to the submission
// controller; they only collect input and print what the store says.
package tui

import (
	"context"

	"go.uber.org/zap"

	"github.com/goliatone/go-authflow/pkg/form"
	"github.com/goliatone/go-authflow/pkg/i18n"
	"github.com/goliatone/go-authflow/pkg/submit"
	"github.com/goliatone/go-authflow/pkg/validation"
)

type view struct {
	driver     PromptDriver
	catalog    *i18n.Catalog
	locale     string
	validator  *validation.Validator
	logger     *zap.Logger
	controller *submit.Controller
}

func newView(controller *submit.Controller, opts []Option) view {
	v := view{
		catalog:    i18n.Default(),
		locale:     i18n.BaseLocale,
		validator:  validation.New(),
		logger:     zap.NewNop(),
		controller: controller,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&v)
		}
	}
	if v.driver == nil {
		v.driver = NewSurveyDriver(nil)
	}
	v.locale = v.catalog.Resolve(v.locale)
	return v
}

func (v *view) msg(key string) string {
	return v.catalog.Message(v.locale, key)
}

// promptText asks for a free-text or secret field, stores the answer and
// prints the live hint for it, if any.
func (v *view) promptText(ctx context.Context, store *form.Store, field, labelKey string, secret bool) error {
	v.showFieldError(ctx, store, field)
	cfg := InputConfig{Message: v.msg(labelKey)}

	var (
		value string
		err   error
	)
	if secret {
		value, err = v.driver.Password(ctx, cfg)
	} else {
		cfg.Default = store.Value(field)
		value, err = v.driver.Input(ctx, cfg)
	}
	if err != nil {
		return err
	}
	if err := store.SetField(field, value); err != nil {
		return err
	}
	v.liveHint(ctx, store, field, value)
	return nil
}

// liveHint records and prints the advisory length message for field. It
// never blocks the flow.
func (v *view) liveHint(ctx context.Context, store *form.Store, field, value string) {
	if !v.validator.HasLiveRule(field) {
		return
	}
	msg, bad := v.validator.Live(field, value)
	if !bad {
		store.SetHint(field, "")
		return
	}
	store.SetHint(field, msg)
	_ = v.driver.Info(ctx, "  "+msg)
}

func (v *view) showFieldError(ctx context.Context, store *form.Store, field string) {
	if msg := store.ErrorFor(field); msg != "" {
		_ = v.driver.Info(ctx, "! "+msg)
	}
}

func (v *view) confirmRetry(ctx context.Context) (bool, error) {
	return v.driver.Confirm(ctx, ConfirmConfig{Message: v.msg("flow.retry"), Default: true})
}

// pendingFields returns the fields of order that currently have an error.
func pendingFields(order []string, store *form.Store) []string {
	errs := store.Errors()
	var out []string
	for _, f := range order {
		if _, ok := errs[f]; ok {
			out = append(out, f)
		}
	}
	return out
}
