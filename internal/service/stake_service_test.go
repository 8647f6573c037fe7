package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/pariline/oraclemarket/internal/domain"
	"github.com/pariline/oraclemarket/internal/ledger"
	"github.com/pariline/oraclemarket/internal/service"
)

// The input guards run before the stake transaction begins, so a service with
// no database handle is enough to exercise them — a regression that reorders
// the guards after BeginTxx would panic here.
func TestStake_InputGuards(t *testing.T) {
	svc := service.NewStakeService(nil, nil, nil, nil, nil)
	ctx := context.Background()

	t.Run("zero amount", func(t *testing.T) {
		_, err := svc.Stake(ctx, service.StakeRequest{
			MarketID: 1,
			Staker:   "0x00000000000000000000000000000000000000aa",
			Choice:   domain.OutcomeA,
			Amount:   ledger.Zero(),
		})
		if !errors.Is(err, domain.ErrInvalidAmount) {
			t.Errorf("err = %v, want ErrInvalidAmount", err)
		}
	})

	t.Run("unknown outcome", func(t *testing.T) {
		_, err := svc.Stake(ctx, service.StakeRequest{
			MarketID: 1,
			Staker:   "0x00000000000000000000000000000000000000aa",
			Choice:   domain.Outcome(9),
			Amount:   ledger.FromUint64(100),
		})
		if !errors.Is(err, domain.ErrInvalidOutcome) {
			t.Errorf("err = %v, want ErrInvalidOutcome", err)
		}
	})

	t.Run("amount checked before outcome", func(t *testing.T) {
		_, err := svc.Stake(ctx, service.StakeRequest{
			MarketID: 1,
			Staker:   "0x00000000000000000000000000000000000000aa",
			Choice:   domain.Outcome(9),
			Amount:   ledger.Zero(),
		})
		if !errors.Is(err, domain.ErrInvalidAmount) {
			t.Errorf("err = %v, want ErrInvalidAmount", err)
		}
	})
}
