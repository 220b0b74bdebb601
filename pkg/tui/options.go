package tui

import (
	"go.uber.org/zap"

	"github.com/goliatone/go-authflow/pkg/i18n"
	"github.com/goliatone/go-authflow/pkg/validation"
)

// Option configures a view.
type Option func(*view)

// WithPromptDriver overrides the prompt driver.
func WithPromptDriver(driver PromptDriver) Option {
	return func(v *view) {
		if driver != nil {
			v.driver = driver
		}
	}
}

// WithCatalog overrides the message catalog.
func WithCatalog(catalog *i18n.Catalog) Option {
	return func(v *view) {
		if catalog != nil {
			v.catalog = catalog
		}
	}
}

// WithLocale selects the display locale. It is matched against the
// catalog's locales.
func WithLocale(locale string) Option {
	return func(v *view) {
		v.locale = locale
	}
}

// WithValidator sets the validator used for live hints. It should be the
// same one the controller uses.
func WithValidator(validator *validation.Validator) Option {
	return func(v *view) {
		if validator != nil {
			v.validator = validator
		}
	}
}

// WithLogger sets the view logger.
func WithLogger(logger *zap.Logger) Option {
	return func(v *view) {
		if logger != nil {
			v.logger = logger
		}
	}
}
