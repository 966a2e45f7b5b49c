package models

// Catalog is the seed file layout used to import businesses in bulk.
type Catalog struct {
	Businesses []CatalogBusiness `yaml:"businesses"`
}

type CatalogBusiness struct {
	Name     string           `yaml:"name"`
	Address  string           `yaml:"address"`
	City     string           `yaml:"city"`
	State    string           `yaml:"state"`
	Zipcode  string           `yaml:"zipcode"`
	Hours    []CatalogHours   `yaml:"hours"`
	Services []CatalogService `yaml:"services"`
}

type CatalogHours struct {
	Weekday    int    `yaml:"weekday"`
	Open       string `yaml:"open"`
	Close      string `yaml:"close"`
	MaxPerSlot int    `yaml:"max_per_slot"`
}

type CatalogService struct {
	Name            string `yaml:"name"`
	Description     string `yaml:"description"`
	DurationMinutes int    `yaml:"duration_minutes"`
	PriceCents      int64  `yaml:"price_cents"`
	// nil means the default: services compete for the shared pool.
	CompetesWithOthers *bool `yaml:"competes_with_others"`
}
