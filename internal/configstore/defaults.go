package configstore

import (
	"time"

	"github.com/cvm-platform/cvm-admin-api/internal/models"
)

// DefaultLists seeds the store when no snapshot can be read.
func DefaultLists(now time.Time) map[string][]models.ReferenceItem {
	seed := func(names ...string) []models.ReferenceItem {
		items := make([]models.ReferenceItem, 0, len(names))
		for i, name := range names {
			items = append(items, models.ReferenceItem{
				ID:        int64(i + 1),
				Name:      name,
				CreatedAt: now,
				UpdatedAt: now,
			})
		}
		return items
	}

	return map[string][]models.ReferenceItem{
		models.ReferenceTypeLineOfBusiness:     seed("Prepaid", "Postpaid", "Broadband"),
		models.ReferenceTypeDepartments:        seed("Marketing", "Sales", "Customer Care"),
		models.ReferenceTypeCampaignObjectives: seed("Acquisition", "Retention", "Upsell"),
	}
}
