package models

import (
	"time"

	"github.com/lib/pq"
)

// Channel identifies the delivery medium for a creative.
type Channel string

const (
	ChannelSMS      Channel = "SMS"
	ChannelEmail    Channel = "Email"
	ChannelPush     Channel = "Push"
	ChannelInApp    Channel = "InApp"
	ChannelWeb      Channel = "Web"
	ChannelIVR      Channel = "IVR"
	ChannelUSSD     Channel = "USSD"
	ChannelWhatsApp Channel = "WhatsApp"
)

// Channels lists every supported delivery channel.
var Channels = []Channel{
	ChannelSMS, ChannelEmail, ChannelPush, ChannelInApp,
	ChannelWeb, ChannelIVR, ChannelUSSD, ChannelWhatsApp,
}

// ValidChannel reports whether the given value is a supported channel.
func ValidChannel(value Channel) bool {
	for _, c := range Channels {
		if c == value {
			return true
		}
	}
	return false
}

// OfferCreative is channel-specific content attached to an offer,
// parameterized by locale and template variables. Each (offer_id,
// channel, locale, version) tuple is unique; is_latest marks the head
// version for its key.
type OfferCreative struct {
	ID                int64          `db:"id" json:"id"`
	OfferID           int64          `db:"offer_id" json:"offer_id"`
	Channel           Channel        `db:"channel" json:"channel"`
	Locale            string         `db:"locale" json:"locale"`
	Title             string         `db:"title" json:"title,omitempty"`
	TextBody          string         `db:"text_body" json:"text_body,omitempty"`
	HTMLBody          string         `db:"html_body" json:"html_body,omitempty"`
	Variables         JSONMap        `db:"variables" json:"variables,omitempty"`
	DefaultValues     JSONMap        `db:"default_values" json:"default_values,omitempty"`
	RequiredVariables pq.StringArray `db:"required_variables" json:"required_variables,omitempty"`
	Version           int            `db:"version" json:"version"`
	IsActive          bool           `db:"is_active" json:"is_active"`
	IsLatest          bool           `db:"is_latest" json:"is_latest"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
	CreatedBy         int64          `db:"created_by" json:"created_by"`
	UpdatedBy         int64          `db:"updated_by" json:"updated_by"`
}

// CreativeFilter captures list filters for creatives.
type CreativeFilter struct {
	OfferID    *int64
	Channel    Channel
	Locale     string
	Active     *bool
	LatestOnly bool
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// CreativeChannelStat aggregates creative counts for one channel.
type CreativeChannelStat struct {
	Channel Channel `db:"channel" json:"channel"`
	Total   int     `db:"total" json:"total"`
	Active  int     `db:"active" json:"active"`
}

// CreativeStats summarises the creative inventory.
type CreativeStats struct {
	Total       int                   `json:"total"`
	Active      int                   `json:"active"`
	Locales     int                   `json:"locales"`
	ByChannel   []CreativeChannelStat `json:"by_channel"`
	GeneratedAt time.Time             `json:"generated_at"`
}
