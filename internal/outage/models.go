package outage

import "time"

// HouseRecord is one per-house outage entry as reported by the scraping service.
type HouseRecord struct {
	Type      string `json:"type"`
	SubType   string `json:"sub_type"`
	StartDate string `json:"start_date"` // "15:04 02.01.2006", free text from the source
	EndDate   string `json:"end_date"`
}

// Actionable reports whether the record names an outage kind. Tier-1 house
// matches require this.
func (r HouseRecord) Actionable() bool {
	return r.SubType != "" || r.Type != ""
}

// Active reports whether the record carries any outage evidence at all.
// Street-level inference counts these.
func (r HouseRecord) Active() bool {
	return r.SubType != "" || r.Type != "" || r.StartDate != "" || r.EndDate != ""
}

// StreetOutage is the raw source response for one street.
type StreetOutage struct {
	// Houses is keyed by house-number-like strings. Keys may not exactly
	// match the stored house number (whitespace, suffix conventions).
	Houses map[string]HouseRecord `json:"houses"`
	// StreetFlag is the source's street-wide "outage somewhere here" marker.
	// Unreliable in isolation.
	StreetFlag bool `json:"street_outage"`
	// UpdatedAt is the source's self-reported freshness marker, free text.
	UpdatedAt string `json:"updated_at"`
}

// Summary is the interpreted, cacheable verdict for one address.
type Summary struct {
	InferredOff   bool      `json:"inferred_off"`
	Message       string    `json:"message"`
	SourceUpdated string    `json:"source_updated"`
	// Failed marks a summary produced from a fetch failure. It carries no
	// evidence either way and must never flip a subscriber's state.
	Failed    bool      `json:"failed"`
	FetchedAt time.Time `json:"fetched_at"`
}
