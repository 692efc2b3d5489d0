package billing

import "testing"

func TestDefaultTariff(t *testing.T) {
	tr := DefaultTariff()
	if tr.TickDuration <= 0 || tr.CreditsPerTick <= 0 || tr.EarningsPerTickMinor <= 0 {
		t.Fatalf("expected positive tariff values, got %+v", tr)
	}
	if tr.Currency == "" {
		t.Fatalf("expected currency")
	}
}

func TestPackages_PerCreditPriceDecreases(t *testing.T) {
	pkgs := Packages()
	if len(pkgs) == 0 {
		t.Fatalf("expected packages")
	}
	prev := pkgs[0]
	for _, p := range pkgs[1:] {
		if p.Credits <= prev.Credits {
			t.Fatalf("expected ascending credit tiers")
		}
		if p.PerCreditMinor > prev.PerCreditMinor {
			t.Fatalf("expected per-credit price to fall with bundle size")
		}
		prev = p
	}
}

func TestFindPackage(t *testing.T) {
	if _, ok := FindPackage(50); !ok {
		t.Fatalf("expected 50-credit package")
	}
	if _, ok := FindPackage(7); ok {
		t.Fatalf("expected no 7-credit package")
	}
}
