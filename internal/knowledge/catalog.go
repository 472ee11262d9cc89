// Package knowledge holds the treatment catalog and its fuzzy lookup. The
// catalog is seeded once at startup and treated as read-mostly reference data.
package knowledge

// Category classifies a treatment. The set is closed.
type Category string

const (
	CategoryPreventive  Category = "preventive"
	CategoryDiagnostic  Category = "diagnostic"
	CategoryRestorative Category = "restorative"
	CategoryEndodontic  Category = "endodontic"
	CategoryCosmetic    Category = "cosmetic"
	CategorySurgical    Category = "surgical"
	CategoryPeriodontal Category = "periodontal"
)

// Treatment is one catalog entry with its price range and chair time.
type Treatment struct {
	ID              string   `json:"treatment_id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	PriceMin        int      `json:"price_range_min"`
	PriceMax        int      `json:"price_range_max"`
	DurationMinutes int      `json:"duration_minutes"`
	Category        Category `json:"category"`
}

// DefaultCatalog returns the standard treatment list the clinic quotes over
// the phone.
func DefaultCatalog() []Treatment {
	return []Treatment{
		{ID: "basic_cleaning", Name: "Basic Cleaning", Description: "Regular dental cleaning and polishing", PriceMin: 120, PriceMax: 150, DurationMinutes: 45, Category: CategoryPreventive},
		{ID: "general_checkup", Name: "General Checkup", Description: "Comprehensive oral examination", PriceMin: 80, PriceMax: 100, DurationMinutes: 30, Category: CategoryPreventive},
		{ID: "bitewing_xray", Name: "Bitewing X-rays", Description: "X-rays to check for cavities between teeth", PriceMin: 25, PriceMax: 40, DurationMinutes: 5, Category: CategoryDiagnostic},
		{ID: "panoramic_xray", Name: "Panoramic X-ray", Description: "Full mouth X-ray for comprehensive view", PriceMin: 100, PriceMax: 130, DurationMinutes: 10, Category: CategoryDiagnostic},
		{ID: "composite_filling", Name: "Composite Filling", Description: "Tooth-colored filling material", PriceMin: 150, PriceMax: 250, DurationMinutes: 30, Category: CategoryRestorative},
		{ID: "amalgam_filling", Name: "Amalgam Filling", Description: "Silver filling material", PriceMin: 100, PriceMax: 200, DurationMinutes: 30, Category: CategoryRestorative},
		{ID: "root_canal", Name: "Root Canal", Description: "Treatment for infected tooth pulp", PriceMin: 800, PriceMax: 1200, DurationMinutes: 90, Category: CategoryEndodontic},
		{ID: "crown", Name: "Crown", Description: "Cap to restore damaged tooth", PriceMin: 1000, PriceMax: 1500, DurationMinutes: 60, Category: CategoryRestorative},
		{ID: "teeth_whitening", Name: "Teeth Whitening", Description: "Professional teeth whitening treatment", PriceMin: 300, PriceMax: 500, DurationMinutes: 90, Category: CategoryCosmetic},
		{ID: "extraction", Name: "Tooth Extraction", Description: "Removal of damaged or problematic tooth", PriceMin: 150, PriceMax: 400, DurationMinutes: 45, Category: CategorySurgical},
		{ID: "deep_cleaning", Name: "Deep Cleaning (per quadrant)", Description: "Scaling and root planing for gum disease", PriceMin: 200, PriceMax: 300, DurationMinutes: 60, Category: CategoryPeriodontal},
	}
}

// Catalog is an ordered treatment list with fuzzy lookup. Insertion order is
// the tie-break for equal similarity scores, so searches are deterministic.
type Catalog struct {
	treatments []Treatment
}

// NewCatalog builds a catalog from the given seed. An empty seed falls back
// to DefaultCatalog.
func NewCatalog(seed []Treatment) *Catalog {
	if len(seed) == 0 {
		seed = DefaultCatalog()
	}
	treatments := make([]Treatment, len(seed))
	copy(treatments, seed)
	return &Catalog{treatments: treatments}
}

// All returns the catalog entries in insertion order.
func (c *Catalog) All() []Treatment {
	out := make([]Treatment, len(c.treatments))
	copy(out, c.treatments)
	return out
}

// ByID returns a treatment by its identifier.
func (c *Catalog) ByID(id string) (Treatment, bool) {
	for _, t := range c.treatments {
		if t.ID == id {
			return t, true
		}
	}
	return Treatment{}, false
}
