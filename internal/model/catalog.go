package model

type ConsoleType string

const (
	ConsoleOnlinePS4  ConsoleType = "online_ps4"
	ConsoleOnlinePS5  ConsoleType = "online_ps5"
	ConsoleOfflinePS4 ConsoleType = "offline_ps4"
	ConsoleOfflinePS5 ConsoleType = "offline_ps5"
	ConsoleDataPS4    ConsoleType = "data_ps4"
	ConsoleDataPS5    ConsoleType = "data_ps5"
	ConsoleXbox       ConsoleType = "xbox"
	ConsoleNintendo   ConsoleType = "nintendo"
)

var ConsoleTypes = []ConsoleType{
	ConsoleOnlinePS4, ConsoleOnlinePS5,
	ConsoleOfflinePS4, ConsoleOfflinePS5,
	ConsoleDataPS4, ConsoleDataPS5,
	ConsoleXbox, ConsoleNintendo,
}

func (c ConsoleType) Valid() bool {
	for _, ct := range ConsoleTypes {
		if ct == c {
			return true
		}
	}
	return false
}

// Game is a catalog entry; a console type absent from Prices is not sold.
type Game struct {
	ID     int64                 `json:"id"`
	Title  string                `json:"title"`
	Prices map[ConsoleType]int64 `json:"prices"`
}

type Product struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Price     int64     `json:"price"`
	Lifecycle Lifecycle `json:"lifecycle"`
}
