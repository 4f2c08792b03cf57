package models

import (
	"time"

	"gorm.io/datatypes"
)

// History action types. Generate events are synthesized from Batch rows at
// read time and never stored here.
const (
	ActionGenerate = "generate"
	ActionCopy     = "copy"
	ActionDownload = "download"
)

// HistoryEvent is an ad-hoc action logged after the fact by callers, such
// as copying or downloading an exported batch.
type HistoryEvent struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	APIKeyID uint64  `gorm:"not null;index"`                                  // Owning API key ID.
	APIKey   *APIKey `gorm:"foreignKey:APIKeyID;constraint:OnDelete:CASCADE"` // Owning key record.

	ActionType     string `gorm:"type:text;not null;index"` // copy or download.
	TotalGenerated int    `gorm:"not null;default:0"`       // Proxy count the action covered.

	Detail datatypes.JSON `gorm:"type:jsonb"` // Optional structured client detail.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
}
