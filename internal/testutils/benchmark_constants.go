package testutils

// Dataset size constants.
const (
	// MinimumDatasetSize is the minimum number of cases in a valid labeled
	// dataset.
	MinimumDatasetSize = 1
)

// Domain identifiers used to group labeled cases.
const (
	DomainBilling  = "billing"
	DomainOrders   = "orders"
	DomainPartners = "partners"
	DomainGeneral  = "general"
)

// CompatibleLicenses lists licenses accepted for shared case datasets.
var CompatibleLicenses = map[string]bool{
	"mit":           true,
	"apache-2.0":    true,
	"apache 2.0":    true,
	"cc-by":         true,
	"cc-by-4.0":     true,
	"cc0":           true,
	"public domain": true,
	"bsd":           true,
	"bsd-3-clause":  true,
	"internal":      true,
}
