package models

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func validInput() OrderInput {
	return OrderInput{
		Sender:       Party{Name: "Alice", Address: "1 Main St"},
		Recipient:    Party{Name: "Bob", Address: "2 Side St"},
		Weight:       decimal.RequireFromString("2.5"),
		ServiceClass: ServiceExpress,
	}
}

func fieldsOf(t *testing.T, err error) []string {
	t.Helper()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	out := make([]string, 0, len(ve.Fields))
	for _, f := range ve.Fields {
		out = append(out, f.Field)
	}
	return out
}

func TestOrderInput_Validate_OK(t *testing.T) {
	require.NoError(t, validInput().Validate())

	in := validInput()
	in.Sender.Email = "alice@example.com"
	in.Recipient.Phone = "+1 555 0100"
	require.NoError(t, in.Validate())
}

func TestOrderInput_Validate_ListsEveryField(t *testing.T) {
	err := OrderInput{Weight: decimal.Zero}.Validate()
	require.ErrorIs(t, err, ErrValidation)
	require.ElementsMatch(t, []string{
		"sender_name", "recipient_name", "sender_address", "recipient_address",
		"package_weight", "service_class",
	}, fieldsOf(t, err))
}

func TestOrderInput_Validate_Weight(t *testing.T) {
	for _, w := range []string{"0", "-1", "-0.01"} {
		in := validInput()
		in.Weight = decimal.RequireFromString(w)
		require.Equal(t, []string{"package_weight"}, fieldsOf(t, in.Validate()), w)
	}
}

func TestOrderInput_Validate_UnknownServiceClass(t *testing.T) {
	in := validInput()
	in.ServiceClass = "same_day"
	require.Equal(t, []string{"service_class"}, fieldsOf(t, in.Validate()))
}

func TestOrderInput_Validate_Emails(t *testing.T) {
	in := validInput()
	in.Sender.Email = "not-an-email"
	in.Recipient.Email = "Bob <bob@example.com>"
	require.Equal(t, []string{"sender_email", "recipient_email"}, fieldsOf(t, in.Validate()))
}

func TestOrderInput_Validate_BlankNames(t *testing.T) {
	in := validInput()
	in.Sender.Name = "   "
	require.Equal(t, []string{"sender_name"}, fieldsOf(t, in.Validate()))
}
