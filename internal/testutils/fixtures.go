package testutils

import (
	"github.com/ahrav/go-triage/infrastructure/catalog"
	"github.com/ahrav/go-triage/internal/domain"
)

// CatalogEntities is the known-entity set the fixtures resolve against.
func CatalogEntities() []domain.Entity {
	return []domain.Entity{
		{Name: "InvoiceService", FilePath: "billing/InvoiceService.java", Description: "Issues and posts customer invoices"},
		{Name: "CreateOrder", FilePath: "orders/CreateOrder.xaml", Description: "Creates a sales order from a cart"},
		{Name: "ValidateAddress", FilePath: "orders/ValidateAddress.xaml", Description: "Validates shipping addresses"},
		{Name: "SyncInventory", FilePath: "inventory/SyncInventory.xaml", Description: "Pulls stock levels from the warehouse"},
	}
}

// NewCatalog builds a catalog over CatalogEntities. It panics on error.
func NewCatalog() *catalog.Catalog {
	cat, err := catalog.New(CatalogEntities())
	if err != nil {
		panic(err)
	}
	return cat
}

// StrongCodeInput carries a stack trace, an application-error tier, and a
// past case that was fixed in code.
func StrongCodeInput() domain.Input {
	return domain.Input{
		Case: domain.Case{
			Description:   "NullPointerException at com.acme.billing.InvoiceServiceImpl.process",
			CategoryTiers: []string{"Application Error"},
			Priority:      "P2",
		},
		History: []domain.HistoricalCase{{
			ID:             "CASE-1001",
			ResolutionText: "Shipped a code fix for the NullPointerException",
		}},
	}
}

// CustomerOverrideInput is marked as a third-party issue.
func CustomerOverrideInput() domain.Input {
	return domain.Input{
		Case: domain.Case{
			Description:   "Partner feed rejected every record since Monday",
			CategoryTiers: []string{"Third-Party Issue"},
		},
	}
}

// DiversityInput names CreateOrder in its text and receives a semantic
// match for it.
func DiversityInput() domain.Input {
	return domain.Input{
		Case: domain.Case{
			Description: "CreateOrder fails intermittently for large carts",
		},
		Semantic: []domain.SimilarityMatch{{Name: "CreateOrder", Score: 0.6}},
	}
}

// ConfigurationInput leans toward a configuration problem.
func ConfigurationInput() domain.Input {
	return domain.Input{
		Case: domain.Case{
			Description:   "Orders stuck after the tax table was edited",
			CategoryTiers: []string{"Configuration | Data", "Interface"},
		},
	}
}
