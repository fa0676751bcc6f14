package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Theseuschain/the-prediction-market/internal/domain"
	"github.com/Theseuschain/the-prediction-market/internal/engine"
	"github.com/Theseuschain/the-prediction-market/internal/server/middleware"
	"github.com/Theseuschain/the-prediction-market/internal/store/memory"
)

const (
	admin   = domain.AccountID("0x0000000000000000000000000000000000000001")
	creator = domain.AccountID("0x0000000000000000000000000000000000000010")
	alice   = domain.AccountID("0x00000000000000000000000000000000000000aa")
)

type fixedClock struct{ h domain.Height }

func (c fixedClock) Height() domain.Height { return c.h }

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(ctx context.Context, req domain.ResolutionRequest) error {
	return nil
}

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := engine.New(admin, memory.New(), fixedClock{h: 1}, noopDispatcher{}, nil, nil, logger)

	ctx := context.Background()
	if err := eng.SetMarketCreator(ctx, admin, creator); err != nil {
		t.Fatalf("set creator: %v", err)
	}
	if err := eng.Deposit(ctx, admin, alice, 5000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	return eng
}

func newMux(eng *engine.Engine) *http.ServeMux {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	markets := NewMarketHandler(eng, logger)
	bets := NewBetHandler(eng, logger)
	admin := NewAdminHandler(eng, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/markets", markets.CreateMarket)
	mux.HandleFunc("GET /api/markets", markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", markets.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/odds", markets.GetImpliedOdds)
	mux.HandleFunc("GET /api/markets/{id}/position", markets.GetPosition)
	mux.HandleFunc("POST /api/markets/{id}/bets", bets.PlaceBet)
	mux.HandleFunc("GET /api/config", admin.GetConfig)
	return mux
}

// do issues a request with an authenticated caller attached, the way the
// signature middleware would.
func do(mux *http.ServeMux, method, target string, caller domain.AccountID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if caller != "" {
		req = req.WithContext(middleware.WithCaller(req.Context(), caller))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func createMarket(t *testing.T, mux *http.ServeMux) domain.Market {
	t.Helper()
	rec := do(mux, http.MethodPost, "/api/markets", creator,
		`{"question":"Which outcome?","options":["Yes","No"],"deadline":100}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create market: status %d body %s", rec.Code, rec.Body)
	}
	var m domain.Market
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("unmarshal market: %v", err)
	}
	return m
}

func TestCreateMarketEndpoint(t *testing.T) {
	mux := newMux(newEngine(t))

	t.Run("creates market for the configured agent", func(t *testing.T) {
		m := createMarket(t, mux)
		if m.State != domain.MarketStateOpen || len(m.Options) != 2 {
			t.Errorf("market = %+v", m)
		}
	})

	t.Run("rejects unsigned requests", func(t *testing.T) {
		rec := do(mux, http.MethodPost, "/api/markets", "",
			`{"question":"q","options":["Yes","No"],"deadline":100}`)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("rejects non-agent callers", func(t *testing.T) {
		rec := do(mux, http.MethodPost, "/api/markets", alice,
			`{"question":"q","options":["Yes","No"],"deadline":100}`)
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("rejects invalid options with 400", func(t *testing.T) {
		rec := do(mux, http.MethodPost, "/api/markets", creator,
			`{"question":"q","options":["Yes"],"deadline":100}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestPlaceBetEndpoint(t *testing.T) {
	mux := newMux(newEngine(t))
	m := createMarket(t, mux)

	t.Run("places bet and returns the position", func(t *testing.T) {
		rec := do(mux, http.MethodPost, "/api/markets/0/bets", alice,
			`{"option":0,"amount":1000}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d body %s", rec.Code, rec.Body)
		}
		var pos domain.Position
		if err := json.Unmarshal(rec.Body.Bytes(), &pos); err != nil {
			t.Fatalf("unmarshal position: %v", err)
		}
		if pos.Stake(0) != 1000 {
			t.Errorf("stake = %d, want 1000", pos.Stake(0))
		}
	})

	t.Run("insufficient funds maps to 409", func(t *testing.T) {
		rec := do(mux, http.MethodPost, "/api/markets/0/bets", alice,
			`{"option":0,"amount":999999}`)
		if rec.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", rec.Code)
		}
	})

	t.Run("unknown market maps to 404", func(t *testing.T) {
		rec := do(mux, http.MethodPost, "/api/markets/42/bets", alice,
			`{"option":0,"amount":10}`)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("malformed market id maps to 400", func(t *testing.T) {
		rec := do(mux, http.MethodPost, "/api/markets/abc/bets", alice,
			`{"option":0,"amount":10}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	_ = m
}

func TestReadEndpoints(t *testing.T) {
	mux := newMux(newEngine(t))
	createMarket(t, mux)
	do(mux, http.MethodPost, "/api/markets/0/bets", alice, `{"option":1,"amount":500}`)

	t.Run("get market", func(t *testing.T) {
		rec := do(mux, http.MethodGet, "/api/markets/0", "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var m domain.Market
		if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
			t.Fatal(err)
		}
		if m.TotalPool != 500 {
			t.Errorf("total pool = %d, want 500", m.TotalPool)
		}
	})

	t.Run("list markets filters by state", func(t *testing.T) {
		rec := do(mux, http.MethodGet, "/api/markets?state=resolved", "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var resp listMarketsResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if len(resp.Markets) != 0 {
			t.Errorf("resolved markets = %d, want 0", len(resp.Markets))
		}
	})

	t.Run("implied odds", func(t *testing.T) {
		rec := do(mux, http.MethodGet, "/api/markets/0/odds", "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var resp oddsResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if !resp.HasBets || len(resp.Odds) != 2 {
			t.Errorf("odds response = %+v", resp)
		}
	})

	t.Run("position requires valid account param", func(t *testing.T) {
		rec := do(mux, http.MethodGet, "/api/markets/0/position?account=nope", "", "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}

		rec = do(mux, http.MethodGet, "/api/markets/0/position?account="+string(alice), "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var pos domain.Position
		if err := json.Unmarshal(rec.Body.Bytes(), &pos); err != nil {
			t.Fatal(err)
		}
		if pos.Stake(1) != 500 {
			t.Errorf("stake = %d, want 500", pos.Stake(1))
		}
	})

	t.Run("config is public", func(t *testing.T) {
		rec := do(mux, http.MethodGet, "/api/config", "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	})
}
