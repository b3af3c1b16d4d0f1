package kvstore

import (
	"time"

	"market_monitor/internal/models"
)

const (
	KeyConfig    = "config"
	KeyRealtime  = "realtime"
	KeyPositions = "positions"
	KeyQuant     = "quant"

	ChannelConfigUpdate = "config:update"

	TTLPrice     = 60 * time.Second
	TTLPositions = 300 * time.Second
	TTLQuant     = 300 * time.Second
	TTLRealtime  = 300 * time.Second
	TTLCommand   = 10 * time.Second
)

func KeyPrice(symbol string) string { return "price:" + symbol }

// KeyQuantState cache:quant:<mode>:<symbol>, пишется только в paper.
func KeyQuantState(mode models.QuantMode, symbol string) string {
	return "cache:quant:" + string(mode) + ":" + symbol
}

func KeyQuantCommand(symbol string) string { return "cache:quant:command:" + symbol }
