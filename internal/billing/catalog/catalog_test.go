package catalog

import "testing"

const sampleCatalog = `
plans:
  - name: basic
    bands:
      - max_headcount: 10
        per_head_cents: 1500
      - max_headcount: 50
        per_head_cents: 1200
      - max_headcount: 0
        per_head_cents: 900
  - name: premium
    bands:
      - max_headcount: 0
        per_head_cents: 2500
`

func TestParseAndPrice(t *testing.T) {
	cat, err := Parse([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("Parse() = %v, want nil", err)
	}

	tests := []struct {
		plan      string
		headcount int
		want      int64
	}{
		{"basic", 1, 1500},
		{"basic", 10, 1500},
		{"basic", 11, 1200},
		{"basic", 50, 1200},
		{"basic", 51, 900},
		{"basic", 5000, 900},
		{"premium", 3, 2500},
	}
	for _, tt := range tests {
		got, err := cat.PerHeadCents(tt.plan, tt.headcount)
		if err != nil {
			t.Errorf("PerHeadCents(%s, %d) = %v, want nil", tt.plan, tt.headcount, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PerHeadCents(%s, %d) = %d, want %d", tt.plan, tt.headcount, got, tt.want)
		}
	}
}

func TestTotalCents(t *testing.T) {
	cat, err := Parse([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("Parse() = %v, want nil", err)
	}
	total, err := cat.TotalCents("basic", 20)
	if err != nil {
		t.Fatalf("TotalCents() = %v, want nil", err)
	}
	if want := int64(20 * 1200); total != want {
		t.Errorf("TotalCents(basic, 20) = %d, want %d", total, want)
	}
}

func TestParseRejectsBadCatalogs(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", "plans: []"},
		{"unnamed plan", "plans:\n  - bands:\n      - max_headcount: 0\n        per_head_cents: 100"},
		{"no bands", "plans:\n  - name: basic\n    bands: []"},
		{"no unbounded band", "plans:\n  - name: basic\n    bands:\n      - max_headcount: 10\n        per_head_cents: 100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.raw)); err == nil {
				t.Error("Parse() = nil, want error")
			}
		})
	}
}

func TestUnknownPlanAndHeadcount(t *testing.T) {
	cat, err := Parse([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("Parse() = %v, want nil", err)
	}
	if _, err := cat.PerHeadCents("enterprise", 10); err == nil {
		t.Error("PerHeadCents(enterprise) = nil, want error")
	}
	if _, err := cat.PerHeadCents("basic", 0); err == nil {
		t.Error("PerHeadCents(headcount 0) = nil, want error")
	}
}
