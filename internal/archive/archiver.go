// Package archive exports settled markets to long-term object storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Theseuschain/the-prediction-market/internal/domain"
)

// BlobWriter is the narrow upload interface the archiver needs.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// SettlementSource reads the data that goes into an archive record.
type SettlementSource interface {
	GetMarket(ctx context.Context, id domain.MarketID) (domain.Market, error)
	MarketEvents(ctx context.Context, id domain.MarketID) ([]domain.Event, error)
}

// Record is the JSON document uploaded per settled market: the final market
// snapshot plus its complete event history.
type Record struct {
	Market     domain.Market  `json:"market"`
	Events     []domain.Event `json:"events"`
	ArchivedAt time.Time      `json:"archived_at"`
}

// Archiver listens for market_resolved events on the signal bus and uploads
// an archive record for each settled market.
type Archiver struct {
	source SettlementSource
	writer BlobWriter
	bus    domain.SignalBus
	logger *slog.Logger
}

// New creates an Archiver.
func New(source SettlementSource, writer BlobWriter, bus domain.SignalBus, logger *slog.Logger) *Archiver {
	return &Archiver{
		source: source,
		writer: writer,
		bus:    bus,
		logger: logger.With(slog.String("component", "archive")),
	}
}

// Run consumes the settlement channel until the context is cancelled,
// archiving every market that reaches the resolved state. Archive failures
// are logged and skipped; the store remains the source of truth.
func (a *Archiver) Run(ctx context.Context) error {
	events, err := a.bus.Subscribe(ctx, domain.SettlementChannel)
	if err != nil {
		return fmt.Errorf("archive: subscribe: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-events:
			if !ok {
				return nil
			}
			var ev domain.Event
			if err := json.Unmarshal(payload, &ev); err != nil {
				a.logger.Warn("discarding malformed settlement event", slog.Any("error", err))
				continue
			}
			if ev.Type != domain.EventMarketResolved {
				continue
			}
			if err := a.Archive(ctx, ev.MarketID); err != nil {
				a.logger.Error("archive failed",
					slog.Uint64("market_id", uint64(ev.MarketID)),
					slog.Any("error", err),
				)
			}
		}
	}
}

// Archive uploads the archive record for a single market.
func (a *Archiver) Archive(ctx context.Context, id domain.MarketID) error {
	market, err := a.source.GetMarket(ctx, id)
	if err != nil {
		return fmt.Errorf("archive: load market %d: %w", id, err)
	}
	events, err := a.source.MarketEvents(ctx, id)
	if err != nil {
		return fmt.Errorf("archive: load events %d: %w", id, err)
	}

	rec := Record{
		Market:     market,
		Events:     events,
		ArchivedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("archive: marshal record %d: %w", id, err)
	}

	path := archivePath(id, rec.ArchivedAt)
	if err := a.writer.Put(ctx, path, bytes.NewReader(data), "application/json"); err != nil {
		return fmt.Errorf("archive: upload %s: %w", path, err)
	}

	a.logger.Info("market archived",
		slog.Uint64("market_id", uint64(id)),
		slog.String("path", path),
	)
	return nil
}

// archivePath builds the object key for a settled market, partitioned by
// year-month of settlement.
//
//	settlements/2025-01/market-42.json
func archivePath(id domain.MarketID, at time.Time) string {
	return fmt.Sprintf("settlements/%s/market-%d.json", at.Format("2006-01"), id)
}
