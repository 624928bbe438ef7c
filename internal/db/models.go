package db

import (
	"time"

	"github.com/google/uuid"
)

// TrackedPodcast is a podcast a user follows.
type TrackedPodcast struct {
	UserID    uuid.UUID `json:"user_id"`
	PodcastID string    `json:"podcast_id"`
	Source    string    `json:"source"` // spotify|apple|other
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// ChartPosition is one observed rank of a podcast in a platform chart.
type ChartPosition struct {
	ID         int64     `json:"id"`
	PodcastID  string    `json:"podcast_id"`
	Source     string    `json:"source"` // spotify|apple
	Country    string    `json:"country"`
	Category   string    `json:"category"`
	Position   int       `json:"position"`
	CapturedAt time.Time `json:"captured_at"`
}

// ChartFilter narrows ListChartPositions.
type ChartFilter struct {
	Source    string
	Country   string
	Category  string
	PodcastID string
	Limit     int
}

// Analysis is the persisted result of an AI analysis.
type Analysis struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Kind      string    `json:"kind"` // episode|cover|trends
	Subject   string    `json:"subject"`
	Result    string    `json:"result"`
	CreatedAt time.Time `json:"created_at"`
}
