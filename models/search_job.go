package models

import "time"

// SearchJobStatus ist der Zustand eines Outbox-Eintrags.
type SearchJobStatus string

const (
	SearchJobPending    SearchJobStatus = "pending"
	SearchJobProcessing SearchJobStatus = "processing"
	SearchJobCompleted  SearchJobStatus = "completed"
	SearchJobFailed     SearchJobStatus = "failed"
)

// SearchJob ist ein Outbox-Eintrag: "lege im Search-Service eine Suche für diese Datenquelle an".
// Er wird in derselben Transaktion wie die Prüfung der Verknüpfung geschrieben.
type SearchJob struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CorrelationID string `json:"correlation_id" gorm:"size:64"`
	ProtocolID    uint   `json:"protocol_id" gorm:"index;not null"`
	DataSourceID  uint   `json:"data_source_id" gorm:"index;not null"`
	Query         string `json:"query" gorm:"type:text"`

	Status         SearchJobStatus `json:"status" gorm:"size:16;index;not null"`
	RetryCount     int             `json:"retry_count"`
	MaxRetries     int             `json:"max_retries"`
	NextRetryAt    *time.Time      `json:"next_retry_at,omitempty"`
	ProcessedAt    *time.Time      `json:"processed_at,omitempty"`
	LastError      *string         `json:"last_error,omitempty" gorm:"type:text"`
	RemoteSearchID *uint           `json:"remote_search_id,omitempty"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (SearchJob) TableName() string {
	return "search_jobs"
}
