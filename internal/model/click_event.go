package model

import "time"

// ClickEvent is an immutable record of one resolved outbound redirect.
type ClickEvent struct {
	ID        string    `json:"id"` // ULID (time-sortable)
	Timestamp time.Time `json:"timestamp"`
	ProductID string    `json:"product_id"`
	FromPage  string    `json:"from_page,omitempty"` // short tag of the originating page

	// Request metadata
	Referrer  string `json:"referrer,omitempty"`   // Referer header (truncated 500 chars)
	UserAgent string `json:"user_agent,omitempty"` // UA string (truncated 500 chars)

	// SHA256(salt + IP), hex. The raw IP is never stored.
	IPHash string `json:"ip_hash"`

	DestinationURL string `json:"destination_url"` // post-rewrite
	UTMCampaign    string `json:"utm_campaign"`
	UTMContent     string `json:"utm_content"`
}

// ProductClickTotal is the click count for one product.
type ProductClickTotal struct {
	ProductID string `json:"product_id"`
	Clicks    int64  `json:"clicks"`
}
