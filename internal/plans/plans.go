// Package plans defines the subscription tiers and their entitlements.
// The catalog is the single source of truth for the quotas the backend
// enforces; it is static and never touches the network.
package plans

import "errors"

// ID identifies a subscription plan. The set is closed: only the three
// constants below are valid.
type ID string

const (
	Free         ID = "free"
	Professional ID = "professional"
	ProPlus      ID = "pro_plus"
)

// Valid reports whether id is one of the defined plan identifiers.
func (id ID) Valid() bool {
	switch id {
	case Free, Professional, ProPlus:
		return true
	}
	return false
}

// Entitlements are the monthly quotas and feature flags a plan grants.
type Entitlements struct {
	MonthlyReceipts      int
	MonthlyMileageClaims int
	AnalyticsDashboard   bool
	ExportFormats        []string
	SupportTier          string
}

// Plan is one subscription tier with its display metadata and entitlements.
type Plan struct {
	ID                ID
	Name              string
	MonthlyPricePence int
	Entitlements      Entitlements
}

// ErrPlanNotFound is returned when no plan matches a lookup.
var ErrPlanNotFound = errors.New("plan not found")

var catalog = []Plan{
	{
		ID:                Free,
		Name:              "Free",
		MonthlyPricePence: 0,
		Entitlements: Entitlements{
			MonthlyReceipts:      10,
			MonthlyMileageClaims: 5,
			AnalyticsDashboard:   false,
			ExportFormats:        nil,
			SupportTier:          "none",
		},
	},
	{
		ID:                Professional,
		Name:              "Professional",
		MonthlyPricePence: 999,
		Entitlements: Entitlements{
			MonthlyReceipts:      100,
			MonthlyMileageClaims: 50,
			AnalyticsDashboard:   true,
			ExportFormats:        []string{"csv"},
			SupportTier:          "email",
		},
	},
	{
		ID:                ProPlus,
		Name:              "Pro Plus",
		MonthlyPricePence: 1999,
		Entitlements: Entitlements{
			MonthlyReceipts:      500,
			MonthlyMileageClaims: 200,
			AnalyticsDashboard:   true,
			ExportFormats:        []string{"csv", "pdf", "images"},
			SupportTier:          "priority",
		},
	},
}

// All returns every plan in display order.
func All() []Plan {
	out := make([]Plan, len(catalog))
	copy(out, catalog)
	return out
}

// ByID returns the plan with the given identifier.
func ByID(id ID) (Plan, error) {
	for _, p := range catalog {
		if p.ID == id {
			return p, nil
		}
	}
	return Plan{}, ErrPlanNotFound
}

// ByMonthlyPrice returns the plan whose monthly price matches pence exactly.
func ByMonthlyPrice(pence int) (Plan, error) {
	for _, p := range catalog {
		if p.MonthlyPricePence == pence {
			return p, nil
		}
	}
	return Plan{}, ErrPlanNotFound
}
