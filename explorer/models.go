package explorer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventRecord is one venue event persisted for querying. Attributes are kept
// as a JSON blob since each event type carries a different set of keys.
type EventRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Type       string    `gorm:"size:64;index"`
	Height     uint64    `gorm:"index"`
	Asset      string    `gorm:"size:32;index"`
	Account    string    `gorm:"size:96;index"`
	Attributes string
	CreatedAt  time.Time
}

// AutoMigrate creates or updates the explorer schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&EventRecord{})
}
