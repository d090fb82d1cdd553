package domain

// Listing is one provider's normalized view of a restaurant at search or
// detail time. It is consumed by the indexer and never stored as-is.
type Listing struct {
	Source      string
	ProviderID  string
	Name        string
	Address     string
	Lat, Lon    *float64
	Phone       string
	Rating      *float64
	ReviewCount int
	Categories  []string
	Photos      []string
	URL         string
}

// HasCoords reports whether both coordinates are present.
func (l Listing) HasCoords() bool { return l.Lat != nil && l.Lon != nil }

// ListingBundle is everything written to the catalog for one listing:
// the detail record plus the reviews fetched alongside it.
type ListingBundle struct {
	Listing     Listing
	Reviews     []Review
	Location    string // area label the listing was indexed under
	Description string // only applied when the restaurant has none yet
}
