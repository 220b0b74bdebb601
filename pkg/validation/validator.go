// Package validation computes submit-time and live field errors for the
// onboarding forms.
package validation

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/goliatone/go-authflow/pkg/i18n"
)

// Errors maps field names to the message for currently-invalid fields.
type Errors map[string]string

// Fields returns the invalid field names, sorted.
func (e Errors) Fields() []string {
	out := make([]string, 0, len(e))
	for name := range e {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// LengthRule bounds a value's length in characters. Zero disables a bound.
type LengthRule struct {
	Min int
	Max int
}

// Messages resolves localized message templates.
type Messages interface {
	Lookup(locale, key string) (string, bool)
}

// Validator computes field-level errors from current field values. It holds
// no form state; callers pass values in on every call.
type Validator struct {
	messages Messages
	locale   string
	live     map[string]LengthRule
	labels   map[string]string
}

// Option configures a Validator.
type Option func(*Validator)

// WithMessages overrides the message catalog.
func WithMessages(m Messages) Option {
	return func(v *Validator) {
		if m != nil {
			v.messages = m
		}
	}
}

// WithLocale selects the message locale.
func WithLocale(locale string) Option {
	return func(v *Validator) {
		v.locale = strings.TrimSpace(locale)
	}
}

// WithLiveRule registers a keystroke-level length rule for field.
func WithLiveRule(field string, rule LengthRule) Option {
	return func(v *Validator) {
		v.live[field] = rule
	}
}

// WithLabel sets the display name used by generic message templates.
func WithLabel(field, label string) Option {
	return func(v *Validator) {
		v.labels[field] = label
	}
}

// DefaultLiveRules are the storefront's advisory rules: password needs at
// least 8 characters, PIN exactly 6.
func DefaultLiveRules() map[string]LengthRule {
	return map[string]LengthRule{
		"password": {Min: 8},
		"pin":      {Min: 6, Max: 6},
	}
}

// New builds a Validator with the embedded catalog, the base locale and the
// default live rules.
func New(opts ...Option) *Validator {
	v := &Validator{
		messages: i18n.Default(),
		locale:   i18n.BaseLocale,
		live:     DefaultLiveRules(),
		labels:   make(map[string]string),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// ValidateRequired emits one message per required field whose value is empty
// or whitespace. It is only meant to run at submit time.
func (v *Validator) ValidateRequired(values map[string]string, required []string) Errors {
	errs := Errors{}
	for _, field := range required {
		if strings.TrimSpace(values[field]) != "" {
			continue
		}
		errs[field] = v.message("validation.required", field)
	}
	return errs
}

// ValidateLength checks value against rule and returns the message for the
// first violated bound.
func (v *Validator) ValidateLength(field, value string, rule LengthRule) (string, bool) {
	n := utf8.RuneCountInString(value)
	if rule.Min > 0 && n < rule.Min {
		return v.message("validation.length.min", field, rule.Min), true
	}
	if rule.Max > 0 && n > rule.Max {
		return v.message("validation.length.max", field, rule.Max), true
	}
	return "", false
}

// ValidateOneOf reports a message when value is set but not one of allowed.
// Empty values are left to ValidateRequired.
func (v *Validator) ValidateOneOf(field, value string, allowed []string) (string, bool) {
	if value == "" {
		return "", false
	}
	for _, candidate := range allowed {
		if value == candidate {
			return "", false
		}
	}
	return v.message("validation.invalid", field), true
}

// Live runs the registered live rule for field, if any. Live messages are
// advisory and never gate submission.
func (v *Validator) Live(field, value string) (string, bool) {
	rule, ok := v.live[field]
	if !ok {
		return "", false
	}
	return v.ValidateLength(field, value, rule)
}

// HasLiveRule reports whether field is checked on every keystroke.
func (v *Validator) HasLiveRule(field string) bool {
	_, ok := v.live[field]
	return ok
}

// message prefers a field-specific key (prefix.field) and falls back to the
// generic prefix template formatted with the field label and args.
func (v *Validator) message(prefix, field string, args ...any) string {
	if msg, ok := v.messages.Lookup(v.locale, prefix+"."+field); ok {
		return msg
	}
	if tmpl, ok := v.messages.Lookup(v.locale, prefix); ok {
		return fmt.Sprintf(tmpl, append([]any{v.label(field)}, args...)...)
	}
	return v.label(field) + ": " + prefix
}

func (v *Validator) label(field string) string {
	if label, ok := v.labels[field]; ok && label != "" {
		return label
	}
	return field
}
