package models

import "time"

// CampaignRequest identifies a campaign by its natural key.
type CampaignRequest struct {
	Username     string `json:"username"`
	CampaignName string `json:"campaign_name"`
}

// TaskResponse is returned immediately after a background stage is enqueued.
type TaskResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// DBHealthResponse represents the database health check response
type DBHealthResponse struct {
	Status    string        `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Connected bool          `json:"connected"`
	Latency   time.Duration `json:"latency_ms"`
	Error     string        `json:"error,omitempty"`
}
