package domain

import "time"

type Review struct {
	ID           int64      `json:"id,omitempty"`
	RestaurantID int64      `json:"-"`
	Source       string     `json:"source"`
	SourceID     string     `json:"source_id"` // provider id, or a stable hash when absent
	Author       *string    `json:"author,omitempty"`
	Rating       *float64   `json:"rating,omitempty"`
	Text         *string    `json:"text,omitempty"`
	URL          *string    `json:"url,omitempty"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
}
