package gateway

import (
	"encoding/json"
	"time"
)

// envelope 是 REST 接口的统一包装。
type envelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   string          `json:"error"`
}

type ftxCandle struct {
	StartTime time.Time `json:"startTime"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

type ftxOrderBook struct {
	Bids [][2]float64 `json:"bids"`
	Asks [][2]float64 `json:"asks"`
}

type ftxPosition struct {
	Future        string   `json:"future"`
	NetSize       float64  `json:"netSize"`
	EntryPrice    *float64 `json:"entryPrice"`
	RealizedPnl   float64  `json:"realizedPnl"`
	UnrealizedPnl float64  `json:"unrealizedPnl"`
}

type ftxOrderRequest struct {
	Market     string  `json:"market"`
	Side       string  `json:"side"`
	Price      float64 `json:"price"`
	Type       string  `json:"type"`
	Size       float64 `json:"size"`
	ReduceOnly bool    `json:"reduceOnly"`
	IOC        bool    `json:"ioc"`
	PostOnly   bool    `json:"postOnly"`
	ClientID   string  `json:"clientId,omitempty"`
}

type ftxOrder struct {
	ID       int64   `json:"id"`
	ClientID *string `json:"clientId"`
	Market   string  `json:"market"`
	Side     string  `json:"side"`
	Price    float64 `json:"price"`
	Size     float64 `json:"size"`
	Status   string  `json:"status"`
	PostOnly bool    `json:"postOnly"`
}

type ftxMarket struct {
	Name           string  `json:"name"`
	PriceIncrement float64 `json:"priceIncrement"`
	SizeIncrement  float64 `json:"sizeIncrement"`
	MinProvideSize float64 `json:"minProvideSize"`
}
