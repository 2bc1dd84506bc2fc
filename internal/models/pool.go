package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pool is the singleton staking aggregate. APYBasisPoints applies to all
// positions; TotalStaked is maintained incrementally by the ledger.
type Pool struct {
	APYBasisPoints int64           `json:"apyBasisPoints"`
	TotalStaked    decimal.Decimal `json:"totalStaked"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}
