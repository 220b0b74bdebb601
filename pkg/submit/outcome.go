package submit

import (
	"github.com/goliatone/go-authflow/pkg/api"
	"github.com/goliatone/go-authflow/pkg/nav"
	"github.com/goliatone/go-authflow/pkg/validation"
)

// Kind classifies how a submission ended.
type Kind int

const (
	OutcomeSuccess Kind = iota
	OutcomeRejected
	OutcomeTransportFailure
	OutcomeInvalid
	OutcomeBusy
)

func (k Kind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRejected:
		return "rejected"
	case OutcomeTransportFailure:
		return "transport_failure"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// Stage is the pipeline step an outcome was decided at.
type Stage string

const (
	StageLogin       Stage = "login"
	StageRegister    Stage = "register"
	StageOTPDispatch Stage = "otp_dispatch"
	StagePersist     Stage = "persist"
)

// Flow names the controller operation that produced an outcome. Unlike
// Stage it does not change as the pipeline advances.
type Flow string

const (
	FlowLogin     Flow = "login"
	FlowRegister  Flow = "register"
	FlowResendOTP Flow = "resend_otp"
)

// Outcome is the typed result of one submission attempt.
type Outcome struct {
	Kind   Kind
	Flow   Flow
	Stage  Stage
	Code   api.Code
	Err    error
	Errors validation.Errors
	Target nav.Target
	// Phone is set on registration outcomes that got past the
	// registration call, so a failed OTP dispatch can be retried.
	Phone   string
	Attempt string
}

// OK reports whether the attempt succeeded.
func (o Outcome) OK() bool { return o.Kind == OutcomeSuccess }

// GlobalMessageKey returns the catalog key of the flow's single failure
// message, or "" when the outcome does not raise the global error.
func (o Outcome) GlobalMessageKey() string {
	if o.Kind != OutcomeRejected && o.Kind != OutcomeTransportFailure {
		return ""
	}
	switch {
	case o.Flow == FlowLogin:
		return "login.error.rejected"
	case o.Stage == StageRegister:
		return "register.error.rejected"
	default:
		// registration already went through; only the code delivery failed
		return "register.error.otp"
	}
}
