package database

import (
	"time"
)

// Review is one stored point. Exactly one of PositivePoint and
// NegativePoint is set.
type Review struct {
	ID            int64     `json:"id,omitempty"`
	ModelID       int64     `json:"model_id"`
	Source        string    `json:"source"`
	URL           string    `json:"url"`
	Year          int       `json:"year"`
	PositivePoint *string   `json:"positive_point,omitempty"`
	NegativePoint *string   `json:"negative_point,omitempty"`
	DateCollected time.Time `json:"date_collected"`
	ContentHash   string    `json:"content_hash"`
}

// ReviewBundle is everything extracted from one review page.
type ReviewBundle struct {
	Source        string
	URL           string
	Year          int
	Positives     []string
	Negatives     []string
	DateCollected time.Time
}
