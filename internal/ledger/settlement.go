package ledger

import (
	"github.com/nimasrn/drgame-ledger/internal/model"
)

// SettlementPosting derives the legs a paid transaction applies.
//
// The payment method moves +amount for money coming in and -amount for money going out.
// A known payer is credited and a known receiver debited. A label on the shop's side of the
// movement (the receiver when in_out, the payer otherwise) is the payment method itself; any
// other label is an external counterparty.
func SettlementPosting(t model.Transaction) Posting {
	a := t.Amount
	var legs []Leg

	if t.PaymentMethodID != nil {
		delta := -a
		if t.InOut {
			delta = a
		}
		legs = append(legs, Leg{Account: PaymentMethod(*t.PaymentMethodID), Delta: delta, NoOverdraft: !t.InOut})
	}

	legs = append(legs, sideLeg(t.Payer, a, !t.InOut)...)
	legs = append(legs, sideLeg(t.Receiver, -a, t.InOut)...)

	id := t.ID
	p := Posting{
		Reason:        "transaction_settled",
		TransactionID: &id,
		OrderKind:     t.OrderKind,
		OrderID:       t.OrderID,
		Legs:          legs,
	}
	return p
}

// sideLeg returns the leg for one side. delta is what a known user on that side receives;
// an external counterparty moves the opposite way.
func sideLeg(p model.Party, delta int64, shopSide bool) []Leg {
	switch v := p.(type) {
	case model.KnownUser:
		return []Leg{{Account: AccountOf(v), Delta: delta}}
	case model.FreeformLabel:
		if shopSide {
			return nil
		}
		return []Leg{{Account: External, Delta: -delta}}
	}
	return nil
}
