package identity

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapError(t *testing.T) {
	assert.Nil(t, MapError(nil))

	structured := &APIErrors{Errors: []FieldError{
		{Code: "form_param_missing"},
		{Code: "form_identifier_exists", Message: "taken", LongMessage: "That email address is taken."},
		{Code: "other", Message: "second"},
	}}
	e := MapError(fmt.Errorf("sign up: %w", structured))
	require.NotNil(t, e)
	assert.Equal(t, KindRejected, e.Kind)
	assert.Equal(t, "form_identifier_exists", e.Code)
	assert.Equal(t, "That email address is taken.", e.Message)
	assert.ErrorIs(t, e, structured)

	e = MapError(&APIErrors{})
	assert.Equal(t, KindRejected, e.Kind)
	assert.Empty(t, e.Message)

	e = MapError(context.DeadlineExceeded)
	assert.Equal(t, KindUnavailable, e.Kind)

	e = MapError(errors.New("socket closed"))
	assert.Equal(t, KindUnknown, e.Kind)
	assert.Empty(t, e.Message)

	already := &Error{Kind: KindRejected, Message: "x"}
	assert.Same(t, already, MapError(already))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "Incorrect password.", Message(Reject("form_password_incorrect", "Incorrect password."), "fallback"))
	assert.Equal(t, "fallback", Message(errors.New("boom"), "fallback"))
	assert.Equal(t, "fallback", Message(nil, "fallback"))
}

func TestAPIErrors_Error(t *testing.T) {
	assert.Equal(t, "identity provider error", (&APIErrors{}).Error())
	assert.Equal(t, "a; b", (&APIErrors{Errors: []FieldError{{Message: "a"}, {Message: "b"}}}).Error())
}
