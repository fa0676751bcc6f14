package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Theseuschain/the-prediction-market/internal/domain"
)

const account = domain.AccountID("0x00000000000000000000000000000000000000aa")

func TestWithinTxCommit(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		id, err := tx.NextMarketID(ctx)
		if err != nil {
			return err
		}
		if id != 0 {
			t.Errorf("first market id = %d, want 0", id)
		}
		m := domain.NewMarket(id, "q", []string{"Yes", "No"}, "", "", account, 10, time.Now())
		return tx.PutMarket(ctx, m)
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}

	markets, err := s.ListMarkets(ctx, "", domain.ListOpts{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(markets) != 1 {
		t.Fatalf("market count = %d, want 1", len(markets))
	}
}

func TestWithinTxRollback(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	// Seed a balance so the tx has something to corrupt.
	if err := s.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.Credit(ctx, account, 500)
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	err := s.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		if err := tx.Debit(ctx, account, 400); err != nil {
			return err
		}
		if _, err := tx.NextMarketID(ctx); err != nil {
			return err
		}
		m := domain.NewMarket(0, "q", []string{"Yes", "No"}, "", "", account, 10, time.Now())
		if err := tx.PutMarket(ctx, m); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	// Nothing from the failed tx may be visible.
	markets, _ := s.ListMarkets(ctx, "", domain.ListOpts{})
	if len(markets) != 0 {
		t.Errorf("market leaked from rolled-back tx")
	}
	var balance uint64
	if err := s.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		balance, err = tx.Balance(ctx, account)
		return err
	}); err != nil {
		t.Fatal(err)
	}
	if balance != 500 {
		t.Errorf("balance = %d after rollback, want 500", balance)
	}

	// The id counter must not have advanced either.
	if err := s.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		id, err := tx.NextMarketID(ctx)
		if err != nil {
			return err
		}
		if id != 0 {
			t.Errorf("market id = %d after rollback, want 0", id)
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
}

func TestDebitInsufficientFunds(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.Debit(ctx, account, 1)
	})
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Errorf("err = %v, want ErrInsufficientFunds", err)
	}
}

func TestGetPositionAbsent(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		pos, err := tx.GetPosition(ctx, 7, account)
		if err != nil {
			return err
		}
		if !pos.IsEmpty() || pos.MarketID != 7 || pos.Account != account {
			t.Errorf("absent position = %+v", pos)
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
}

func TestListMarketsFilterAndPaginate(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		for i := 0; i < 5; i++ {
			id, err := tx.NextMarketID(ctx)
			if err != nil {
				return err
			}
			m := domain.NewMarket(id, "q", []string{"Yes", "No"}, "", "", account, 10, time.Now())
			if i%2 == 0 {
				m.State = domain.MarketStateResolved
			}
			if err := tx.PutMarket(ctx, m); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	resolved, err := s.ListMarkets(ctx, domain.MarketStateResolved, domain.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(resolved) != 3 {
		t.Errorf("resolved count = %d, want 3", len(resolved))
	}

	page, err := s.ListMarkets(ctx, "", domain.ListOpts{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].ID != 2 {
		t.Errorf("page = %+v, want ids 2,3", page)
	}
}

func TestEventLogOrdering(t *testing.T) {
	s := New()
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := s.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		for i := 0; i < 3; i++ {
			ev := domain.Event{
				ID:        string(rune('a' + i)),
				Type:      domain.EventBetPlaced,
				MarketID:  1,
				CreatedAt: base.Add(time.Duration(i) * time.Minute),
			}
			if err := tx.AppendEvent(ctx, ev); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	byMarket, err := s.EventsByMarket(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(byMarket) != 3 || byMarket[0].ID != "a" {
		t.Errorf("by-market events not in append order: %+v", byMarket)
	}

	newest, err := s.ListEvents(ctx, domain.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(newest) != 3 || newest[0].ID != "c" {
		t.Errorf("list not newest-first: %+v", newest)
	}

	since := base.Add(90 * time.Second)
	recent, err := s.ListEvents(ctx, domain.ListOpts{Since: &since})
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 || recent[0].ID != "c" {
		t.Errorf("since filter = %+v, want only c", recent)
	}
}
