package response

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/user/content-crawler/internal/entity"
)

// JobResponse is a DTO for a crawl job record.
type JobResponse struct {
	ID            string          `json:"id"`
	URL           string          `json:"url"`
	NormalizedURL string          `json:"normalizedUrl,omitempty"`
	Type          string          `json:"type"`
	SourceID      *string         `json:"sourceId,omitempty"`
	Status        string          `json:"status"`
	RetryCount    int             `json:"retryCount"`
	ErrorMessage  string          `json:"errorMessage,omitempty"`
	ExtractedData json.RawMessage `json:"extractedData,omitempty"`
	ProcessedAt   *time.Time      `json:"processedAt,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// NewJobResponse maps a job entity to its DTO.
func NewJobResponse(j *entity.CrawlJob) JobResponse {
	return JobResponse{
		ID:            j.ID,
		URL:           j.URL,
		NormalizedURL: j.NormalizedURL,
		Type:          string(j.Type),
		SourceID:      j.SourceID,
		Status:        string(j.Status),
		RetryCount:    j.RetryCount,
		ErrorMessage:  j.ErrorMessage,
		ExtractedData: j.ExtractedData,
		ProcessedAt:   j.ProcessedAt,
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     j.UpdatedAt,
	}
}

type EnqueueResponse struct {
	Status   string `json:"status"`
	Enqueued int    `json:"enqueued"`
}

// ErrorResponse carries a message and, for conflicts, the machine-readable reason.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
	Status string `json:"status,omitempty"`
}

// JSON writes payload with the given status code.
func JSON(w http.ResponseWriter, status int, payload any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(payload)
}
