package domain

import "time"

type Restaurant struct {
	ID          int64
	Name        string
	Address     string
	Lat, Lon    *float64
	Phone       string
	Location    string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ExternalID links a restaurant to one provider. At most one per (restaurant, source).
type ExternalID struct {
	RestaurantID int64  `json:"-"`
	Source       string `json:"source"`
	ProviderID   string `json:"provider_id"`
}

// Rating is the latest snapshot per (restaurant, source), not a history.
type Rating struct {
	RestaurantID int64     `json:"-"`
	Source       string    `json:"source"`
	Score        float64   `json:"score"`
	ReviewCount  int       `json:"review_count"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// Category is a shared dictionary entry; restaurants link to it by ID.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Media struct {
	RestaurantID int64  `json:"-"`
	Source       string `json:"source"`
	URL          string `json:"url"`
}

// RestaurantView is the read model served by the API.
type RestaurantView struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Address     string       `json:"address,omitempty"`
	Coords      *Coords      `json:"coords,omitempty"`
	Phone       string       `json:"phone,omitempty"`
	Location    string       `json:"location,omitempty"`
	Description string       `json:"description,omitempty"`
	Categories  []string     `json:"categories"`
	ExternalIDs []ExternalID `json:"external_ids"`
	Ratings     []Rating     `json:"ratings"`
	Photos      []Media      `json:"photos"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type Coords struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}
