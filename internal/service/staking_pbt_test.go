package service

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

func TestAccrualProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("accrued rewards are never negative", prop.ForAll(
		func(principal int64, bps int64, seconds int64) bool {
			accrued := accrue(decimal.NewFromInt(principal), bps, time.Duration(seconds)*time.Second)
			return !accrued.IsNegative()
		},
		gen.Int64Range(0, 1_000_000_000),
		gen.Int64Range(0, 100_000),
		gen.Int64Range(0, 10*secondsPerYear),
	))

	properties.Property("zero elapsed time accrues nothing", prop.ForAll(
		func(principal int64, bps int64) bool {
			return accrue(decimal.NewFromInt(principal), bps, 0).IsZero()
		},
		gen.Int64Range(1, 1_000_000_000),
		gen.Int64Range(1, 100_000),
	))

	properties.Property("zero rate accrues nothing", prop.ForAll(
		func(principal int64, seconds int64) bool {
			return accrue(decimal.NewFromInt(principal), 0, time.Duration(seconds)*time.Second).IsZero()
		},
		gen.Int64Range(1, 1_000_000_000),
		gen.Int64Range(1, 10*secondsPerYear),
	))

	properties.Property("accrual grows with elapsed time", prop.ForAll(
		func(principal int64, bps int64, shorter int64, extra int64) bool {
			p := decimal.NewFromInt(principal)
			a := accrue(p, bps, time.Duration(shorter)*time.Second)
			b := accrue(p, bps, time.Duration(shorter+extra)*time.Second)
			return b.GreaterThanOrEqual(a)
		},
		gen.Int64Range(1, 1_000_000_000),
		gen.Int64Range(1, 100_000),
		gen.Int64Range(0, secondsPerYear),
		gen.Int64Range(0, secondsPerYear),
	))

	properties.Property("a full year at bps yields principal*bps/10000", prop.ForAll(
		func(principal int64, bps int64) bool {
			accrued := accrue(decimal.NewFromInt(principal), bps, secondsPerYear*time.Second)
			want := decimal.NewFromInt(principal).
				Mul(decimal.NewFromInt(bps)).
				Div(decimal.NewFromInt(10000))
			return accrued.Equal(want)
		},
		gen.Int64Range(1, 1_000_000_000),
		gen.Int64Range(1, 100_000),
	))

	properties.TestingRun(t)
}

func TestStakeUnstakeRoundTripProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("stake then unstake leaves principal at zero", prop.ForAll(
		func(units int64) bool {
			ledger, _, _, _, _ := newTestLedger(t)
			ctx := context.Background()
			amount := decimal.NewFromInt(units)

			if _, err := ledger.Stake(ctx, "chat-p", amount); err != nil {
				return false
			}
			snapshot, err := ledger.Unstake(ctx, "chat-p", amount)
			if err != nil {
				return false
			}
			return snapshot.Principal.IsZero()
		},
		gen.Int64Range(1, 1_000_000_000),
	))

	properties.TestingRun(t)
}
