package billing

import "time"

// Tariff fixes the exchange between connected time, caller credits and
// receiver earnings. Accounting is whole-tick only: a call that ends
// mid-tick is not billed for the partial tick, and the receiver is not
// credited for it either.
type Tariff struct {
	// TickDuration is the connected-time interval worth one credit.
	TickDuration time.Duration

	// CreditsPerTick is debited from the caller each full tick.
	CreditsPerTick int64

	// EarningsPerTickMinor is credited to the receiver's pending
	// earnings each full tick, in minor units of Currency.
	EarningsPerTickMinor int64

	Currency string
}

func DefaultTariff() Tariff {
	return Tariff{
		TickDuration:         30 * time.Second,
		CreditsPerTick:       1,
		EarningsPerTickMinor: 23,
		Currency:             "KES",
	}
}

// Package is a purchasable credit bundle. Prices are in minor units.
type Package struct {
	Credits        int64 `json:"credits"`
	PriceMinor     int64 `json:"price_minor"`
	PerCreditMinor int64 `json:"per_credit_minor"`
	SavingsPercent int   `json:"savings_percent"`
}

// Packages returns the fixed purchase tiers. Larger bundles carry a
// lower per-credit price.
func Packages() []Package {
	return []Package{
		{Credits: 10, PriceMinor: 230, PerCreditMinor: 23, SavingsPercent: 0},
		{Credits: 25, PriceMinor: 550, PerCreditMinor: 22, SavingsPercent: 4},
		{Credits: 50, PriceMinor: 1050, PerCreditMinor: 21, SavingsPercent: 9},
		{Credits: 100, PriceMinor: 2000, PerCreditMinor: 20, SavingsPercent: 13},
		{Credits: 200, PriceMinor: 3800, PerCreditMinor: 19, SavingsPercent: 17},
	}
}

// FindPackage resolves a tier by its credit count.
func FindPackage(credits int64) (Package, bool) {
	for _, p := range Packages() {
		if p.Credits == credits {
			return p, true
		}
	}
	return Package{}, false
}
