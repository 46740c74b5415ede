package searchservice

import "time"

// CreateSearchRequest ist der Body von POST /search/{dataSourceId}/create-search.
type CreateSearchRequest struct {
	ProtocolID uint   `json:"protocol_id"`
	Query      string `json:"query,omitempty"`
}

// SearchResponse ist die Antwort des Search-Service auf eine angelegte Suche.
type SearchResponse struct {
	ID           uint      `json:"id"`
	ProtocolID   uint      `json:"protocol_id"`
	DataSourceID uint      `json:"data_source_id"`
	Query        string    `json:"query,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// FullDeleteResponse ist die Antwort von DELETE /form-instance/full-delete/{formId}.
type FullDeleteResponse struct {
	FormID  uint  `json:"form_id"`
	Deleted int64 `json:"deleted"`
}
