package models

import "time"

// ProxyRecord is one issued proxy credential. The proxy string is a pure
// encoding of the other fields; the unique index is the final backstop for
// the global no-duplicates invariant.
type ProxyRecord struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	BatchID string `gorm:"type:text;not null;index"`                       // Owning batch ID.
	Batch   *Batch `gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE"` // Owning batch record.

	APIKeyID uint64 `gorm:"not null;index"` // Owning API key ID.

	ProxyString string `gorm:"type:text;not null;uniqueIndex"` // Full wire string.
	Host        string `gorm:"type:text;not null"`             // Host with resolved shard index.
	Port        string `gorm:"type:text;not null"`             // Port.
	UserID      string `gorm:"type:text;not null"`             // User segment.
	CountryCode string `gorm:"type:text;not null"`             // Canonical 2-letter country code.
	SessionID   string `gorm:"type:text;not null"`             // 6-digit session id.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
}
