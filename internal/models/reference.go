package models

import "time"

// Reference list type names managed through the generic configuration CRUD.
const (
	ReferenceTypeLineOfBusiness     = "lineOfBusiness"
	ReferenceTypeDepartments        = "departments"
	ReferenceTypeCampaignObjectives = "campaignObjectives"
	ReferenceTypeOfferTypes         = "offerTypes"
	ReferenceTypeSegmentTypes       = "segmentTypes"
	ReferenceTypeSenderIDs          = "senderIds"
	ReferenceTypeCreativeTemplates  = "creativeTemplates"
)

// ReferenceItem is an entry in a named reference-data list. Template
// presets additionally carry body/variable fields; plain lists leave
// them empty.
type ReferenceItem struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	IsActive      *bool     `json:"is_active,omitempty"`
	MetadataValue string    `json:"metadata_value,omitempty"`
	Title         string    `json:"title,omitempty"`
	TextBody      string    `json:"text_body,omitempty"`
	HTMLBody      string    `json:"html_body,omitempty"`
	Variables     JSONMap   `json:"variables,omitempty"`
	Locale        string    `json:"locale,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ReferencePatch describes a partial update; nil fields are left untouched.
type ReferencePatch struct {
	Name          *string `json:"name,omitempty"`
	Description   *string `json:"description,omitempty"`
	IsActive      *bool   `json:"is_active,omitempty"`
	MetadataValue *string `json:"metadata_value,omitempty"`
	Title         *string `json:"title,omitempty"`
	TextBody      *string `json:"text_body,omitempty"`
	HTMLBody      *string `json:"html_body,omitempty"`
	Variables     JSONMap `json:"variables,omitempty"`
	Locale        *string `json:"locale,omitempty"`
}
