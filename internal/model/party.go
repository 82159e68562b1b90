package model

import (
	"fmt"
	"strings"
)

type AccountKind string

const (
	AccountCustomer      AccountKind = "customer"
	AccountEmployee      AccountKind = "employee"
	AccountRepairman     AccountKind = "repairman"
	AccountPaymentMethod AccountKind = "payment_method"
	// journal-only accounts, no balance row
	AccountExternal AccountKind = "external"
	AccountRevenue  AccountKind = "revenue"
)

// HoldsBalance reports whether the kind is a party that owns a balance column.
func (k AccountKind) HoldsBalance() bool {
	switch k {
	case AccountCustomer, AccountEmployee, AccountRepairman:
		return true
	}
	return false
}

// Party is one side of a transaction: a known balance holder or a free-form label.
type Party interface {
	isParty()
	String() string
}

type KnownUser struct {
	Kind AccountKind `json:"kind"`
	ID   int64       `json:"id"`
}

type FreeformLabel struct {
	Text string `json:"text"`
}

func (KnownUser) isParty()     {}
func (FreeformLabel) isParty() {}

func (u KnownUser) String() string     { return fmt.Sprintf("%s:%d", u.Kind, u.ID) }
func (l FreeformLabel) String() string { return l.Text }

// PartyInput is the wire form of a Party: exactly one of User and Label.
type PartyInput struct {
	User  *KnownUser `json:"user,omitempty"`
	Label *string    `json:"label,omitempty"`
}

// NewParty builds a Party from its wire form.
func NewParty(field string, in PartyInput) (Party, error) {
	switch {
	case in.User != nil && in.Label != nil:
		return nil, InvariantViolation(field, "both a known party and a label were given")
	case in.User == nil && in.Label == nil:
		return nil, InvariantViolation(field, "neither a known party nor a label was given")
	case in.User != nil:
		if !in.User.Kind.HoldsBalance() {
			return nil, InvariantViolation(field, fmt.Sprintf("kind %q cannot be a party", in.User.Kind))
		}
		if in.User.ID <= 0 {
			return nil, InvariantViolation(field, "party id must be positive")
		}
		return *in.User, nil
	}
	text := strings.TrimSpace(*in.Label)
	if text == "" {
		return nil, InvariantViolation(field, "label must not be empty")
	}
	return FreeformLabel{Text: text}, nil
}

// ToInput is the inverse of NewParty.
func ToInput(p Party) PartyInput {
	switch v := p.(type) {
	case KnownUser:
		u := v
		return PartyInput{User: &u}
	case FreeformLabel:
		t := v.Text
		return PartyInput{Label: &t}
	}
	return PartyInput{}
}
