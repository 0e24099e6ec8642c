package models

// Requests for signal HTTP endpoints.

type ScanRequest struct {
	Class string `query:"class" json:"class" default:"short" validate:"oneof=short long"`
	Force bool   `query:"force" json:"force"`
}

type PickRequest struct {
	Class     string         `json:"class" default:"short" validate:"oneof=short long"`
	Consumer  string         `json:"consumer" validate:"max=128"`
	Priority  string         `json:"priority" default:"free" validate:"oneof=admin vip long short free"`
	Force     bool           `json:"force"`
	Enrich    bool           `json:"enrich"`
	Notify    bool           `json:"notify"`
	ChatID    string         `json:"chat_id" validate:"required_if=Notify true"`
	Positions []OpenPosition `json:"open_positions" validate:"max=50,dive"`
}

type OutcomeRequest struct {
	SignalID   string `json:"signal_id"`
	Instrument string `json:"instrument" validate:"required"`
	Class      string `json:"class" default:"short" validate:"oneof=short long"`
	Won        *bool  `json:"won" validate:"required"`
	SettledAt  string `json:"settled_at"`
}

type HistoryRequest struct {
	Instrument string `query:"instrument" json:"instrument"`
	Limit      int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}

type ExpirationRequest struct {
	TF string `query:"tf" json:"tf" validate:"required"`
}

type StakeRequest struct {
	Strategy string  `query:"strategy" json:"strategy" default:"martingale"`
	Current  float64 `query:"current" json:"current" validate:"gte=0"`
	Base     float64 `query:"base" json:"base" validate:"gte=0"`
	Balance  float64 `query:"balance" json:"balance" validate:"gte=0"`
	Won      bool    `query:"won" json:"won"`
}
