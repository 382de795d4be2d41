package models

import (
	"strings"
	"time"

	"github.com/kamalbuilds/polyflow-ai-sub001/common/types"
)

// Chain is one row of the chains table.
type Chain struct {
	ID                    int64
	ChainID               uint64
	Name                  string
	Type                  string
	ParaID                uint64
	Relay                 bool
	RpcUrl                string
	WsUrl                 string
	Symbol                string
	Decimals              int64
	AddressFormat         string
	SS58Prefix            int64
	BlockTimeMs           int64
	TimeoutMultiplier     int64
	HealthCheckIntervalMs int64
	ReconnectDelayMs      int64
	MaxReconnectAttempts  int64
	PrivateKey            string
	Active                bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// ChainConfig converts the row into the runtime chain configuration.
//
// Returns:
// - *types.ChainConfig: the configuration with millisecond columns expanded
// into durations.
func (c *Chain) ChainConfig() *types.ChainConfig {
	return &types.ChainConfig{
		Name:                 c.Name,
		ChainType:            types.ChainType(strings.ToUpper(c.Type)),
		ChainID:              c.ChainID,
		ParaID:               c.ParaID,
		Relay:                c.Relay,
		RpcUrl:               c.RpcUrl,
		WsUrl:                c.WsUrl,
		Symbol:               c.Symbol,
		Decimals:             uint8(c.Decimals),
		AddressFormat:        types.AddressFormat(strings.ToUpper(c.AddressFormat)),
		SS58Prefix:           uint16(c.SS58Prefix),
		BlockTime:            time.Duration(c.BlockTimeMs) * time.Millisecond,
		TimeoutMultiplier:    uint64(c.TimeoutMultiplier),
		HealthCheckInterval:  time.Duration(c.HealthCheckIntervalMs) * time.Millisecond,
		ReconnectDelay:       time.Duration(c.ReconnectDelayMs) * time.Millisecond,
		MaxReconnectAttempts: uint64(c.MaxReconnectAttempts),
		PrivateKey:           c.PrivateKey,
	}
}
