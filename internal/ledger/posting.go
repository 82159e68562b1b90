package ledger

import (
	"fmt"
	"sort"

	"github.com/nimasrn/drgame-ledger/internal/model"
)

var balanceTables = map[model.AccountKind]string{
	model.AccountCustomer:      "customers",
	model.AccountEmployee:      "employees",
	model.AccountRepairman:     "repairmen",
	model.AccountPaymentMethod: "payment_methods",
}

// Revenue is the shop's income account. It offsets charges, commissions and fees.
var Revenue = Account{Kind: model.AccountRevenue}

// External stands for any counterparty known only by a label.
var External = Account{Kind: model.AccountExternal}

type Account struct {
	Kind model.AccountKind
	ID   int64
}

func (a Account) String() string { return fmt.Sprintf("%s:%d", a.Kind, a.ID) }

func Customer(id int64) Account      { return Account{Kind: model.AccountCustomer, ID: id} }
func Employee(id int64) Account      { return Account{Kind: model.AccountEmployee, ID: id} }
func Repairman(id int64) Account     { return Account{Kind: model.AccountRepairman, ID: id} }
func PaymentMethod(id int64) Account { return Account{Kind: model.AccountPaymentMethod, ID: id} }

func AccountOf(u model.KnownUser) Account { return Account{Kind: u.Kind, ID: u.ID} }

// asset accounts count +delta toward the shop's position, everything else -delta.
func (a Account) sign() int64 {
	switch a.Kind {
	case model.AccountPaymentMethod, model.AccountExternal:
		return 1
	}
	return -1
}

func (a Account) journalOnly() bool {
	_, ok := balanceTables[a.Kind]
	return !ok
}

type Leg struct {
	Account Account
	Delta   int64
	// NoOverdraft rejects the posting when the account would end below zero.
	NoOverdraft bool
}

type Posting struct {
	Reason        string
	TransactionID *int64
	OrderKind     model.OrderKind
	OrderID       *int64
	Legs          []Leg
}

// AgainstRevenue moves delta on acct and the opposite amount on Revenue.
func AgainstRevenue(acct Account, delta int64) []Leg {
	return []Leg{{Account: acct, Delta: delta}, {Account: Revenue, Delta: -delta}}
}

// Net returns the change in the shop's position; a valid posting nets to zero.
func (p Posting) Net() int64 {
	var net int64
	for _, l := range p.Legs {
		net += l.Account.sign() * l.Delta
	}
	return net
}

// normalize validates the legs, merges repeated accounts and drops zero deltas.
// The result is sorted so concurrent postings lock rows in the same order.
func (p Posting) normalize() ([]Leg, error) {
	if p.Reason == "" {
		return nil, model.InvariantViolation("reason", "posting needs a reason")
	}
	merged := make(map[Account]*Leg)
	for _, l := range p.Legs {
		if _, ok := balanceTables[l.Account.Kind]; ok {
			if l.Account.ID <= 0 {
				return nil, model.InvariantViolation("account", fmt.Sprintf("%s needs an id", l.Account.Kind))
			}
		} else if l.Account.Kind != model.AccountRevenue && l.Account.Kind != model.AccountExternal {
			return nil, model.InvariantViolation("account", fmt.Sprintf("unknown account kind %q", l.Account.Kind))
		}
		if m, ok := merged[l.Account]; ok {
			m.Delta += l.Delta
			m.NoOverdraft = m.NoOverdraft || l.NoOverdraft
			continue
		}
		cp := l
		merged[l.Account] = &cp
	}
	if net := p.Net(); net != 0 {
		return nil, model.InvariantViolation("legs", fmt.Sprintf("posting %q is unbalanced by %d", p.Reason, net))
	}

	legs := make([]Leg, 0, len(merged))
	for _, l := range merged {
		if l.Delta != 0 {
			legs = append(legs, *l)
		}
	}
	sort.Slice(legs, func(i, j int) bool {
		if legs[i].Account.Kind != legs[j].Account.Kind {
			return legs[i].Account.Kind < legs[j].Account.Kind
		}
		return legs[i].Account.ID < legs[j].Account.ID
	})
	return legs, nil
}
