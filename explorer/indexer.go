package explorer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"lendvault/core/events"
)

// Indexer persists venue events into a relational store so operators can query
// activity without replaying the node's state database. It satisfies
// events.Emitter and is normally registered on the node through a FanOut.
type Indexer struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewIndexer(db *gorm.DB, logger *slog.Logger) (*Indexer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("explorer: migrate schema: %w", err)
	}
	return &Indexer{db: db, logger: logger.With("component", "explorer")}, nil
}

// Emit records the event. Indexing failures are logged and swallowed: the
// explorer is a read-side convenience and must never fail a venue operation.
func (ix *Indexer) Emit(evt events.Event) {
	attrs, err := json.Marshal(evt.Attributes)
	if err != nil {
		ix.logger.Error("encode event attributes", "type", evt.Type, "error", err)
		return
	}
	record := EventRecord{
		ID:         uuid.New(),
		Type:       evt.Type,
		Height:     evt.Height,
		Asset:      eventAsset(evt),
		Account:    eventAccount(evt),
		Attributes: string(attrs),
	}
	if err := ix.db.Create(&record).Error; err != nil {
		ix.logger.Error("index event", "type", evt.Type, "error", err)
	}
}

// Recent returns the newest events, most recent first.
func (ix *Indexer) Recent(limit int) ([]EventRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []EventRecord
	err := ix.db.Order("created_at DESC").Limit(limit).Find(&records).Error
	return records, err
}

// ByAccount returns events where the account was the primary actor.
func (ix *Indexer) ByAccount(account string, limit int) ([]EventRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []EventRecord
	err := ix.db.Where("account = ?", account).
		Order("created_at DESC").Limit(limit).Find(&records).Error
	return records, err
}

// ByAsset returns events touching the given market.
func (ix *Indexer) ByAsset(asset string, limit int) ([]EventRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []EventRecord
	err := ix.db.Where("asset = ?", strings.ToUpper(strings.TrimSpace(asset))).
		Order("created_at DESC").Limit(limit).Find(&records).Error
	return records, err
}

// CountByType reports how many events of the given type have been indexed.
func (ix *Indexer) CountByType(eventType string) (int64, error) {
	var count int64
	err := ix.db.Model(&EventRecord{}).Where("type = ?", eventType).Count(&count).Error
	return count, err
}

// eventAsset picks the market an event belongs to. Liquidations are indexed
// under their repay leg.
func eventAsset(evt events.Event) string {
	if asset, ok := evt.Attributes["asset"]; ok {
		return asset
	}
	return evt.Attributes["repay_asset"]
}

// eventAccount picks the primary actor: the supplier for deposits and
// withdrawals, the borrower for debt flows.
func eventAccount(evt events.Event) string {
	if account, ok := evt.Attributes["account"]; ok {
		return account
	}
	return evt.Attributes["borrower"]
}
