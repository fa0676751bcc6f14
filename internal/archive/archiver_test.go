package archive

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Theseuschain/the-prediction-market/internal/domain"
)

type fakeSource struct {
	market domain.Market
	events []domain.Event
}

func (s *fakeSource) GetMarket(ctx context.Context, id domain.MarketID) (domain.Market, error) {
	if id != s.market.ID {
		return domain.Market{}, domain.ErrNotFound
	}
	return s.market, nil
}

func (s *fakeSource) MarketEvents(ctx context.Context, id domain.MarketID) ([]domain.Event, error) {
	return s.events, nil
}

type fakeWriter struct {
	path string
	data []byte
}

func (w *fakeWriter) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	w.path = path
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.data = b
	return nil
}

type fakeBus struct {
	ch chan []byte
}

func (b *fakeBus) Publish(ctx context.Context, channel string, payload []byte) error { return nil }
func (b *fakeBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	return nil
}
func (b *fakeBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return b.ch, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestArchiveUploadsRecord(t *testing.T) {
	winning := domain.OptionIndex(0)
	source := &fakeSource{
		market: domain.Market{
			ID:            4,
			Question:      "Which outcome?",
			Options:       []string{"Yes", "No"},
			State:         domain.MarketStateResolved,
			WinningOption: &winning,
		},
		events: []domain.Event{{ID: "e1", Type: domain.EventMarketResolved, MarketID: 4}},
	}
	writer := &fakeWriter{}
	a := New(source, writer, nil, discardLogger())

	if err := a.Archive(context.Background(), 4); err != nil {
		t.Fatalf("archive: %v", err)
	}

	if !strings.HasPrefix(writer.path, "settlements/") || !strings.HasSuffix(writer.path, "market-4.json") {
		t.Errorf("path = %s", writer.path)
	}

	var rec Record
	if err := json.Unmarshal(writer.data, &rec); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if rec.Market.ID != 4 || len(rec.Events) != 1 {
		t.Errorf("record = %+v", rec)
	}
}

func TestRunArchivesOnResolvedEvents(t *testing.T) {
	source := &fakeSource{
		market: domain.Market{ID: 9, State: domain.MarketStateResolved},
	}
	writer := &fakeWriter{}
	bus := &fakeBus{ch: make(chan []byte, 2)}
	a := New(source, writer, bus, discardLogger())

	betEv, _ := json.Marshal(domain.Event{Type: domain.EventBetPlaced, MarketID: 9})
	resolvedEv, _ := json.Marshal(domain.Event{Type: domain.EventMarketResolved, MarketID: 9})
	bus.ch <- betEv
	bus.ch <- resolvedEv
	close(bus.ch)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	if writer.path == "" {
		t.Error("resolved event did not trigger an archive upload")
	}
}
