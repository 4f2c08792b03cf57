package models

import "time"

// Batch records one successful generation call. Batches are immutable after
// creation and own their proxy records; both are removed only when the
// owning API key is deleted.
type Batch struct {
	ID string `gorm:"type:text;primaryKey"` // Opaque batch identifier (UUID).

	APIKeyID uint64  `gorm:"not null;index"`                                  // Owning API key ID.
	APIKey   *APIKey `gorm:"foreignKey:APIKeyID;constraint:OnDelete:CASCADE"` // Owning key record.

	TotalGenerated int `gorm:"not null;default:0"` // Number of records committed with the batch.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
}
