package models

import "time"

// Segment is a targetable slice of the customer base. Criteria is an
// opaque JSON document interpreted by the downstream targeting engine.
type Segment struct {
	ID            int64     `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Description   string    `db:"description" json:"description,omitempty"`
	SegmentType   string    `db:"segment_type" json:"segment_type,omitempty"`
	Criteria      JSONMap   `db:"criteria" json:"criteria,omitempty"`
	EstimatedSize *int64    `db:"estimated_size" json:"estimated_size,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
	CreatedBy     int64     `db:"created_by" json:"created_by"`
	UpdatedBy     int64     `db:"updated_by" json:"updated_by"`
}

// SegmentFilter captures filtering criteria for listing segments.
type SegmentFilter struct {
	SegmentType string
	Search      string
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}
