package model

import "time"

type RepairOrderStatus string

const (
	RepairWaitingForDelivery  RepairOrderStatus = "waiting_for_delivery_to_drgame"
	RepairInAcceptingQueue    RepairOrderStatus = "in_accepting_queue"
	RepairWaitingForFee       RepairOrderStatus = "waiting_for_repairman_fee"
	RepairWaitingForAmount    RepairOrderStatus = "waiting_for_amount"
	RepairWaitingForCustomer  RepairOrderStatus = "waiting_for_customer_to_accept"
	RepairInProgress          RepairOrderStatus = "in_progress"
	RepairDone                RepairOrderStatus = "done"
	RepairDeliveredToCustomer RepairOrderStatus = "delivered_to_customer"
)

// RepairOrderChain is the only path a repair order walks.
var RepairOrderChain = []RepairOrderStatus{
	RepairWaitingForDelivery,
	RepairInAcceptingQueue,
	RepairWaitingForFee,
	RepairWaitingForAmount,
	RepairWaitingForCustomer,
	RepairInProgress,
	RepairDone,
	RepairDeliveredToCustomer,
}

func (s RepairOrderStatus) index() int {
	for i, st := range RepairOrderChain {
		if st == s {
			return i
		}
	}
	return -1
}

func (s RepairOrderStatus) Valid() bool { return s.index() >= 0 }

func (s RepairOrderStatus) CanTransitionTo(next RepairOrderStatus) bool {
	i, j := s.index(), next.index()
	return i >= 0 && j == i+1
}

// Charged reports whether the customer has been debited in this status.
func (s RepairOrderStatus) Charged() bool {
	return s.index() >= RepairInProgress.index()
}

type RepairOrder struct {
	ID            int64             `json:"id"`
	CustomerID    int64             `json:"customer_id"`
	RepairmanID   *int64            `json:"repair_man_id,omitempty"`
	Origin        Origin            `json:"origin"`
	Device        string            `json:"device"`
	Problem       string            `json:"problem"`
	Status        RepairOrderStatus `json:"status"`
	PaymentStatus PaymentStatus     `json:"payment_status"`
	Amount        *int64            `json:"amount,omitempty"`
	RepairmanFee  *int64            `json:"repairman_fee,omitempty"`
	Charged       int64             `json:"charged"`
	TransactionID *int64            `json:"transaction_id,omitempty"`
	Lifecycle     Lifecycle         `json:"lifecycle"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

type RepairOrderCreateRequest struct {
	CustomerID int64  `json:"customer_id" validate:"required,gt=0"`
	Device     string `json:"device" validate:"required,max=128"`
	Problem    string `json:"problem" validate:"max=2048"`
}

type RepairOrderTransitionRequest struct {
	Status       RepairOrderStatus `json:"status" validate:"required"`
	RepairmanFee *int64            `json:"repairman_fee" validate:"omitempty,gte=0"`
	Amount       *int64            `json:"amount" validate:"omitempty,gt=0"`
}
