package model

import "time"

type GameOrderStatus string

const (
	GameWaitingForDelivery      GameOrderStatus = "waiting_for_delivery"
	GameDeliveredToDrGame       GameOrderStatus = "delivered_to_drgame_and_in_waiting_queue"
	GameAccountSettingProgress  GameOrderStatus = "account_setting_in_progress"
	GameInDataUploadingQueue    GameOrderStatus = "in_data_uploading_queue"
	GameDataUploadingInProgress GameOrderStatus = "data_uploading_in_progress"
	GameErrorOnAccounts         GameOrderStatus = "error_on_accounts"
	GameDone                    GameOrderStatus = "done"
	GameDeliveredToCustomer     GameOrderStatus = "delivered_to_customer"
)

var GameOrderStatuses = []GameOrderStatus{
	GameWaitingForDelivery,
	GameDeliveredToDrGame,
	GameAccountSettingProgress,
	GameInDataUploadingQueue,
	GameDataUploadingInProgress,
	GameErrorOnAccounts,
	GameDone,
	GameDeliveredToCustomer,
}

func (s GameOrderStatus) Valid() bool {
	for _, st := range GameOrderStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// Open reports whether items and amounts may still change.
func (s GameOrderStatus) Open() bool {
	return s != GameDone && s != GameDeliveredToCustomer
}

func (s GameOrderStatus) processing() bool {
	switch s {
	case GameDeliveredToDrGame, GameAccountSettingProgress, GameInDataUploadingQueue, GameDataUploadingInProgress:
		return true
	}
	return false
}

// CanTransitionTo encodes the workflow graph. Open states move freely among themselves
// (corrections and error recovery); done is reached only from a processing state and
// delivered_to_customer only from done.
func (s GameOrderStatus) CanTransitionTo(next GameOrderStatus) bool {
	if !next.Valid() || s == next {
		return false
	}
	switch {
	case next == GameDeliveredToCustomer:
		return s == GameDone
	case next == GameDone:
		return s.processing()
	case s.Open():
		return next.Open()
	}
	return false
}

type GameOrderItem struct {
	ID              int64  `json:"id"`
	GameID          int64  `json:"game_id"`
	Amount          int64  `json:"amount"`
	Account         bool   `json:"account"`
	Data            bool   `json:"data"`
	AccountSetterID *int64 `json:"account_setter_id,omitempty"`
	DataUploaderID  *int64 `json:"data_uploader_id,omitempty"`
}

type GameOrder struct {
	ID            int64           `json:"id"`
	CustomerID    int64           `json:"customer_id"`
	Origin        Origin          `json:"origin"`
	RecipientID   *int64          `json:"recipient_id,omitempty"`
	ConsoleType   ConsoleType     `json:"console_type"`
	Console       string          `json:"console,omitempty"`
	Status        GameOrderStatus `json:"status"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	Amount        int64           `json:"amount"`
	Charged       int64           `json:"charged"`
	DeadLine      *time.Time      `json:"dead_line,omitempty"`
	Description   string          `json:"description,omitempty"`
	Items         []GameOrderItem `json:"items"`
	TransactionID *int64          `json:"transaction_id,omitempty"`
	Lifecycle     Lifecycle       `json:"lifecycle"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type GameOrderCreateRequest struct {
	CustomerID  int64       `json:"customer_id" validate:"required,gt=0"`
	ConsoleType ConsoleType `json:"console_type" validate:"required"`
	Console     string      `json:"console" validate:"max=128"`
	GameIDs     []int64     `json:"game_ids" validate:"required,min=1,dive,gt=0"`
	DeadLine    *time.Time  `json:"dead_line"`
	Description string      `json:"description" validate:"max=1024"`
}

type GameOrderTransitionRequest struct {
	Status GameOrderStatus  `json:"status" validate:"required"`
	Items  []GameItemUpdate `json:"items" validate:"dive"`
}

// GameItemUpdate edits one item during a transition. Claim flags bind the acting employee.
type GameItemUpdate struct {
	ItemID             int64  `json:"item_id" validate:"required,gt=0"`
	Amount             *int64 `json:"amount" validate:"omitempty,gte=0"`
	Account            *bool  `json:"account"`
	Data               *bool  `json:"data"`
	ClaimAccountSetter bool   `json:"account_setter"`
	ClaimDataUploader  bool   `json:"data_uploader"`
}
