package models

import (
	"time"

	"github.com/lib/pq"
)

// OfferStatus tracks the marketing lifecycle of an offer.
type OfferStatus string

const (
	OfferStatusDraft    OfferStatus = "draft"
	OfferStatusActive   OfferStatus = "active"
	OfferStatusPaused   OfferStatus = "paused"
	OfferStatusArchived OfferStatus = "archived"
)

// Offer is a marketing offer creatives and campaigns hang off.
// CatalogTags holds string-encoded category associations of the form
// "catalog:<categoryId>".
type Offer struct {
	ID             int64          `db:"id" json:"id"`
	Name           string         `db:"name" json:"name"`
	Description    string         `db:"description" json:"description,omitempty"`
	OfferType      string         `db:"offer_type" json:"offer_type,omitempty"`
	LineOfBusiness string         `db:"line_of_business" json:"line_of_business,omitempty"`
	Status         OfferStatus    `db:"status" json:"status"`
	CatalogTags    pq.StringArray `db:"catalog_tags" json:"catalog_tags,omitempty"`
	ValidFrom      *time.Time     `db:"valid_from" json:"valid_from,omitempty"`
	ValidUntil     *time.Time     `db:"valid_until" json:"valid_until,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
	CreatedBy      int64          `db:"created_by" json:"created_by"`
	UpdatedBy      int64          `db:"updated_by" json:"updated_by"`
}

// OfferFilter captures filtering criteria for listing offers.
type OfferFilter struct {
	Status    OfferStatus
	OfferType string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
