package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cvm-platform/cvm-admin-api/internal/configstore"
	"github.com/cvm-platform/cvm-admin-api/internal/models"
	"github.com/cvm-platform/cvm-admin-api/internal/template"
	appErrors "github.com/cvm-platform/cvm-admin-api/pkg/errors"
)

// FieldSpec describes validation for a single text field of a
// reference type: whether it must be present, how long it may be, and
// the messages shown when either rule fails.
type FieldSpec struct {
	Required        bool   `json:"required"`
	MaxLength       int    `json:"max_length"`
	RequiredMessage string `json:"required_message"`
	TooLongMessage  string `json:"too_long_message"`
}

// TypeDescriptor declares how one reference list behaves: labels for
// the admin UI plus the field rules applied on create and update.
type TypeDescriptor struct {
	Type           string    `json:"type"`
	Label          string    `json:"label"`
	ItemLabel      string    `json:"item_label"`
	Name           FieldSpec `json:"name"`
	Description    FieldSpec `json:"description"`
	TemplateFields bool      `json:"template_fields"`
}

func fieldSpec(label string, required bool, maxLength int) FieldSpec {
	return FieldSpec{
		Required:        required,
		MaxLength:       maxLength,
		RequiredMessage: fmt.Sprintf("%s is required", label),
		TooLongMessage:  fmt.Sprintf("%s must be at most %d characters", label, maxLength),
	}
}

// Descriptors returns the built-in reference type registry.
func Descriptors() map[string]TypeDescriptor {
	return map[string]TypeDescriptor{
		models.ReferenceTypeLineOfBusiness: {
			Type:        models.ReferenceTypeLineOfBusiness,
			Label:       "Lines of Business",
			ItemLabel:   "Line of Business",
			Name:        fieldSpec("Name", true, 60),
			Description: fieldSpec("Description", false, 200),
		},
		models.ReferenceTypeDepartments: {
			Type:        models.ReferenceTypeDepartments,
			Label:       "Departments",
			ItemLabel:   "Department",
			Name:        fieldSpec("Name", true, 60),
			Description: fieldSpec("Description", true, 200),
		},
		models.ReferenceTypeCampaignObjectives: {
			Type:        models.ReferenceTypeCampaignObjectives,
			Label:       "Campaign Objectives",
			ItemLabel:   "Objective",
			Name:        fieldSpec("Name", true, 80),
			Description: fieldSpec("Description", false, 250),
		},
		models.ReferenceTypeOfferTypes: {
			Type:        models.ReferenceTypeOfferTypes,
			Label:       "Offer Types",
			ItemLabel:   "Offer Type",
			Name:        fieldSpec("Name", true, 60),
			Description: fieldSpec("Description", false, 200),
		},
		models.ReferenceTypeSegmentTypes: {
			Type:        models.ReferenceTypeSegmentTypes,
			Label:       "Segment Types",
			ItemLabel:   "Segment Type",
			Name:        fieldSpec("Name", true, 60),
			Description: fieldSpec("Description", false, 200),
		},
		models.ReferenceTypeSenderIDs: {
			Type:        models.ReferenceTypeSenderIDs,
			Label:       "Sender IDs",
			ItemLabel:   "Sender ID",
			Name:        fieldSpec("Name", true, 11),
			Description: fieldSpec("Description", false, 120),
		},
		models.ReferenceTypeCreativeTemplates: {
			Type:           models.ReferenceTypeCreativeTemplates,
			Label:          "Creative Templates",
			ItemLabel:      "Template",
			Name:           fieldSpec("Name", true, 80),
			Description:    fieldSpec("Description", false, 250),
			TemplateFields: true,
		},
	}
}

// ReferenceItemInput carries a create or update payload. Variables
// arrive as raw text so invalid JSON can be reported as a field error
// instead of a request decode failure.
type ReferenceItemInput struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	IsActive      *bool  `json:"is_active,omitempty"`
	MetadataValue string `json:"metadata_value,omitempty"`
	Title         string `json:"title,omitempty"`
	TextBody      string `json:"text_body,omitempty"`
	HTMLBody      string `json:"html_body,omitempty"`
	Variables     string `json:"variables,omitempty"`
	Locale        string `json:"locale,omitempty"`
}

type referenceAuditor interface {
	Record(action, resource, resourceID string, userID int64, oldValue, newValue interface{})
}

// ReferenceService implements descriptor-driven CRUD over the
// reference-data store.
type ReferenceService struct {
	store       *configstore.Store
	descriptors map[string]TypeDescriptor
	auditor     referenceAuditor
	logger      *zap.Logger
}

// NewReferenceService constructs the service. A nil auditor disables
// audit emission.
func NewReferenceService(store *configstore.Store, auditor referenceAuditor, logger *zap.Logger) *ReferenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferenceService{
		store:       store,
		descriptors: Descriptors(),
		auditor:     auditor,
		logger:      logger,
	}
}

// Descriptor returns the descriptor for a type.
func (s *ReferenceService) Descriptor(listType string) (TypeDescriptor, error) {
	desc, ok := s.descriptors[listType]
	if !ok {
		return TypeDescriptor{}, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("unknown reference type %q", listType))
	}
	return desc, nil
}

// DescriptorList returns every registered descriptor.
func (s *ReferenceService) DescriptorList() []TypeDescriptor {
	out := make([]TypeDescriptor, 0, len(s.descriptors))
	for _, t := range []string{
		models.ReferenceTypeLineOfBusiness,
		models.ReferenceTypeDepartments,
		models.ReferenceTypeCampaignObjectives,
		models.ReferenceTypeOfferTypes,
		models.ReferenceTypeSegmentTypes,
		models.ReferenceTypeSenderIDs,
		models.ReferenceTypeCreativeTemplates,
	} {
		out = append(out, s.descriptors[t])
	}
	return out
}

// List returns items of a type, optionally filtered by a
// case-insensitive substring match on name or description.
func (s *ReferenceService) List(ctx context.Context, listType, search string) ([]models.ReferenceItem, error) {
	if _, err := s.Descriptor(listType); err != nil {
		return nil, err
	}
	items := s.store.Get(listType)
	if search == "" {
		return items, nil
	}
	needle := strings.ToLower(search)
	filtered := make([]models.ReferenceItem, 0, len(items))
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.Name), needle) ||
			strings.Contains(strings.ToLower(item.Description), needle) {
			filtered = append(filtered, item)
		}
	}
	return filtered, nil
}

// Get returns one item by id.
func (s *ReferenceService) Get(ctx context.Context, listType string, id int64) (*models.ReferenceItem, error) {
	if _, err := s.Descriptor(listType); err != nil {
		return nil, err
	}
	for _, item := range s.store.Get(listType) {
		if item.ID == id {
			found := item
			return &found, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "reference item not found")
}

// Create validates the payload against the type descriptor and adds
// the item, letting the store assign its id.
func (s *ReferenceService) Create(ctx context.Context, listType string, input ReferenceItemInput, userID int64) (*models.ReferenceItem, error) {
	desc, err := s.Descriptor(listType)
	if err != nil {
		return nil, err
	}
	vars, err := s.validate(desc, input)
	if err != nil {
		return nil, err
	}

	item := models.ReferenceItem{
		Name:          strings.TrimSpace(input.Name),
		Description:   strings.TrimSpace(input.Description),
		IsActive:      input.IsActive,
		MetadataValue: input.MetadataValue,
	}
	if desc.TemplateFields {
		item.Title = input.Title
		item.TextBody = input.TextBody
		item.HTMLBody = input.HTMLBody
		item.Variables = vars
		item.Locale = input.Locale
	}

	created := s.store.Add(listType, item)
	if s.auditor != nil {
		s.auditor.Record(models.AuditActionReferenceChange, listType, fmt.Sprintf("%d", created.ID), userID, nil, created)
	}
	return &created, nil
}

// Update applies a validated partial update. Returns not-found when
// the id does not exist in the list.
func (s *ReferenceService) Update(ctx context.Context, listType string, id int64, input ReferenceItemInput, userID int64) (*models.ReferenceItem, error) {
	desc, err := s.Descriptor(listType)
	if err != nil {
		return nil, err
	}
	vars, err := s.validate(desc, input)
	if err != nil {
		return nil, err
	}

	before, err := s.Get(ctx, listType, id)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	description := strings.TrimSpace(input.Description)
	patch := models.ReferencePatch{
		Name:        &name,
		Description: &description,
		IsActive:    input.IsActive,
	}
	if input.MetadataValue != "" {
		patch.MetadataValue = &input.MetadataValue
	}
	if desc.TemplateFields {
		patch.Title = &input.Title
		patch.TextBody = &input.TextBody
		patch.HTMLBody = &input.HTMLBody
		patch.Variables = vars
		if input.Locale != "" {
			patch.Locale = &input.Locale
		}
	}

	updated := s.store.Update(listType, id, patch)
	if updated == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "reference item not found")
	}
	if s.auditor != nil {
		s.auditor.Record(models.AuditActionReferenceChange, listType, fmt.Sprintf("%d", id), userID, before, updated)
	}
	return updated, nil
}

// Delete removes an item. Returns not-found when the id is absent.
func (s *ReferenceService) Delete(ctx context.Context, listType string, id int64, userID int64) error {
	if _, err := s.Descriptor(listType); err != nil {
		return err
	}
	before, err := s.Get(ctx, listType, id)
	if err != nil {
		return err
	}
	if !s.store.Delete(listType, id) {
		return appErrors.Clone(appErrors.ErrNotFound, "reference item not found")
	}
	if s.auditor != nil {
		s.auditor.Record(models.AuditActionReferenceChange, listType, fmt.Sprintf("%d", id), userID, before, nil)
	}
	return nil
}

// PreviewRequest carries a draft template body plus variables to
// substitute for preview.
type PreviewRequest struct {
	TextBody  string `json:"text_body"`
	Variables string `json:"variables"`
}

// Preview substitutes variables into a draft template body without
// persisting anything.
func (s *ReferenceService) Preview(ctx context.Context, req PreviewRequest) (string, error) {
	vars, err := parseVariables(req.Variables)
	if err != nil {
		return "", err
	}
	return template.Render(req.TextBody, vars), nil
}

func (s *ReferenceService) validate(desc TypeDescriptor, input ReferenceItemInput) (models.JSONMap, error) {
	name := strings.TrimSpace(input.Name)
	if desc.Name.Required && name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, desc.Name.RequiredMessage)
	}
	if desc.Name.MaxLength > 0 && len([]rune(name)) > desc.Name.MaxLength {
		return nil, appErrors.Clone(appErrors.ErrValidation, desc.Name.TooLongMessage)
	}

	description := strings.TrimSpace(input.Description)
	if desc.Description.Required && description == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, desc.Description.RequiredMessage)
	}
	if desc.Description.MaxLength > 0 && len([]rune(description)) > desc.Description.MaxLength {
		return nil, appErrors.Clone(appErrors.ErrValidation, desc.Description.TooLongMessage)
	}

	if !desc.TemplateFields {
		return nil, nil
	}
	return parseVariables(input.Variables)
}

// parseVariables decodes the raw variables text. It must be a JSON
// object; arrays, primitives and malformed input are rejected.
func parseVariables(raw string) (models.JSONMap, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	var decoded interface{}
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "variables must be valid JSON")
	}
	obj, ok := decoded.(map[string]interface{})
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "variables must be a JSON object")
	}
	return models.JSONMap(obj), nil
}
