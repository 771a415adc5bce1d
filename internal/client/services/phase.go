package services

import "fmt"

// Phase is the application-visible authentication phase.
type Phase int

const (
	PhaseUnknown Phase = iota
	PhaseSignedOut
	PhasePendingEmailVerification
	PhasePendingPasswordReset
	PhasePasswordResetReady
	PhaseSignedIn
)

func (p Phase) String() string {
	switch p {
	case PhaseUnknown:
		return "unknown"
	case PhaseSignedOut:
		return "signed_out"
	case PhasePendingEmailVerification:
		return "pending_email_verification"
	case PhasePendingPasswordReset:
		return "pending_password_reset"
	case PhasePasswordResetReady:
		return "password_reset_ready"
	case PhaseSignedIn:
		return "signed_in"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

type event int

const (
	evLoadedSignedOut event = iota
	evLoadedSignedIn
	evSignUpStarted
	evEmailVerified
	evResetRequested
	evResetCodeVerified
	evPasswordReset
	evSignedIn
	evSignedOut
)

func (e event) String() string {
	return [...]string{
		"loaded_signed_out", "loaded_signed_in", "sign_up_started", "email_verified",
		"reset_requested", "reset_code_verified", "password_reset", "signed_in", "signed_out",
	}[e]
}

// transition is the single authority on phase changes. It reports false
// when ev is not accepted in phase from.
func transition(from Phase, ev event) (Phase, bool) {
	switch ev {
	case evLoadedSignedIn:
		return PhaseSignedIn, true
	case evLoadedSignedOut:
		switch from {
		case PhaseUnknown, PhaseSignedIn, PhaseSignedOut:
			return PhaseSignedOut, true
		default:
			// A flow in progress has no session yet; keep it.
			return from, true
		}
	case evSignedOut:
		if from == PhaseUnknown {
			return from, false
		}
		return PhaseSignedOut, true
	}

	if from == PhaseUnknown || from == PhaseSignedIn {
		return from, false
	}

	switch ev {
	case evSignUpStarted:
		return PhasePendingEmailVerification, true
	case evEmailVerified:
		if from == PhasePendingEmailVerification {
			return PhaseSignedIn, true
		}
	case evResetRequested:
		return PhasePendingPasswordReset, true
	case evResetCodeVerified:
		if from == PhasePendingPasswordReset {
			return PhasePasswordResetReady, true
		}
	case evPasswordReset:
		if from == PhasePasswordResetReady {
			return PhaseSignedOut, true
		}
	case evSignedIn:
		return PhaseSignedIn, true
	}
	return from, false
}
