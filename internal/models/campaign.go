package models

import (
	"time"

	"github.com/lib/pq"
)

// CampaignStatus tracks the campaign lifecycle.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

// Campaign targets a segment with one or more offers over a schedule window.
type Campaign struct {
	ID         int64          `db:"id" json:"id"`
	Name       string         `db:"name" json:"name"`
	Objective  string         `db:"objective" json:"objective,omitempty"`
	Department string         `db:"department" json:"department,omitempty"`
	SegmentID  *int64         `db:"segment_id" json:"segment_id,omitempty"`
	OfferIDs   pq.Int64Array  `db:"offer_ids" json:"offer_ids,omitempty"`
	Status     CampaignStatus `db:"status" json:"status"`
	StartsAt   *time.Time     `db:"starts_at" json:"starts_at,omitempty"`
	EndsAt     *time.Time     `db:"ends_at" json:"ends_at,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
	CreatedBy  int64          `db:"created_by" json:"created_by"`
	UpdatedBy  int64          `db:"updated_by" json:"updated_by"`
}

// CampaignFilter captures filtering criteria for listing campaigns.
type CampaignFilter struct {
	Status    CampaignStatus
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
