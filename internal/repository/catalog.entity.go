package repository

import (
	"time"

	"github.com/nimasrn/drgame-ledger/internal/model"
)

// GameEntity keeps one nullable price column per console type.
type GameEntity struct {
	ID              int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Title           string    `gorm:"column:title;not null"`
	OnlinePS4Price  *int64    `gorm:"column:online_ps4_price"`
	OnlinePS5Price  *int64    `gorm:"column:online_ps5_price"`
	OfflinePS4Price *int64    `gorm:"column:offline_ps4_price"`
	OfflinePS5Price *int64    `gorm:"column:offline_ps5_price"`
	DataPS4Price    *int64    `gorm:"column:data_ps4_price"`
	DataPS5Price    *int64    `gorm:"column:data_ps5_price"`
	XboxPrice       *int64    `gorm:"column:xbox_price"`
	NintendoPrice   *int64    `gorm:"column:nintendo_price"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (GameEntity) TableName() string { return "games" }

func (e *GameEntity) priceColumns() map[model.ConsoleType]**int64 {
	return map[model.ConsoleType]**int64{
		model.ConsoleOnlinePS4:  &e.OnlinePS4Price,
		model.ConsoleOnlinePS5:  &e.OnlinePS5Price,
		model.ConsoleOfflinePS4: &e.OfflinePS4Price,
		model.ConsoleOfflinePS5: &e.OfflinePS5Price,
		model.ConsoleDataPS4:    &e.DataPS4Price,
		model.ConsoleDataPS5:    &e.DataPS5Price,
		model.ConsoleXbox:       &e.XboxPrice,
		model.ConsoleNintendo:   &e.NintendoPrice,
	}
}

func toGameEntity(m *model.Game) *GameEntity {
	e := &GameEntity{ID: m.ID, Title: m.Title}
	for ct, col := range e.priceColumns() {
		if p, ok := m.Prices[ct]; ok {
			price := p
			*col = &price
		}
	}
	return e
}

func toGameModel(e *GameEntity) *model.Game {
	m := &model.Game{ID: e.ID, Title: e.Title, Prices: make(map[model.ConsoleType]int64)}
	for ct, col := range e.priceColumns() {
		if *col != nil {
			m.Prices[ct] = **col
		}
	}
	return m
}

type ProductEntity struct {
	ID        int64           `gorm:"primaryKey;autoIncrement;column:id"`
	Title     string          `gorm:"column:title;not null"`
	Price     int64           `gorm:"column:price;not null"`
	Lifecycle model.Lifecycle `gorm:"column:lifecycle;type:varchar(16);not null;default:active;index"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (ProductEntity) TableName() string { return "products" }
