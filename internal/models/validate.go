package models

import (
	"net/mail"
	"strings"
)

// Validate checks the customer-supplied fields of a new order.
func (in OrderInput) Validate() error {
	v := &ValidationError{}

	required := []struct {
		field string
		value string
	}{
		{"sender_name", in.Sender.Name},
		{"recipient_name", in.Recipient.Name},
		{"sender_address", in.Sender.Address},
		{"recipient_address", in.Recipient.Address},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			v.Add(r.field, "is required")
		}
	}

	if !in.Weight.IsPositive() {
		v.Add("package_weight", "must be a positive number")
	}

	switch {
	case in.ServiceClass == "":
		v.Add("service_class", "is required")
	case !in.ServiceClass.Valid():
		v.Add("service_class", "must be one of standard, express, overnight, international")
	}

	if in.Sender.Email != "" && !validEmail(in.Sender.Email) {
		v.Add("sender_email", "is not a valid email address")
	}
	if in.Recipient.Email != "" && !validEmail(in.Recipient.Email) {
		v.Add("recipient_email", "is not a valid email address")
	}

	return v.OrNil()
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
