// Package catalog loads the fixed plan catalog and prices contracts from it.
// Fixed plans charge per employee with headcount-banded pricing; custom
// plans are priced by hand on the contract itself.
package catalog

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

type Band struct {
	MaxHeadcount int   `yaml:"max_headcount"`
	PerHeadCents int64 `yaml:"per_head_cents"`
}

type Plan struct {
	Name  string `yaml:"name"`
	Bands []Band `yaml:"bands"`
}

type Catalog struct {
	plans map[string]Plan
}

// Load reads the plan catalog from a YAML file. Bands are sorted by
// headcount so lookup takes the first band that covers the requested size;
// the last band must have max_headcount 0 (unbounded) to act as the
// catch-all tier.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan catalog: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Catalog, error) {
	var doc struct {
		Plans []Plan `yaml:"plans"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse plan catalog: %w", err)
	}
	if len(doc.Plans) == 0 {
		return nil, fmt.Errorf("plan catalog is empty")
	}

	plans := make(map[string]Plan, len(doc.Plans))
	for _, p := range doc.Plans {
		if p.Name == "" {
			return nil, fmt.Errorf("plan catalog contains an unnamed plan")
		}
		if len(p.Bands) == 0 {
			return nil, fmt.Errorf("plan %q has no pricing bands", p.Name)
		}
		sort.Slice(p.Bands, func(i, j int) bool {
			// Unbounded band (0) sorts last.
			if p.Bands[i].MaxHeadcount == 0 {
				return false
			}
			if p.Bands[j].MaxHeadcount == 0 {
				return true
			}
			return p.Bands[i].MaxHeadcount < p.Bands[j].MaxHeadcount
		})
		if p.Bands[len(p.Bands)-1].MaxHeadcount != 0 {
			return nil, fmt.Errorf("plan %q is missing an unbounded final band", p.Name)
		}
		plans[p.Name] = p
	}
	return &Catalog{plans: plans}, nil
}

// PerHeadCents returns the per-employee price of a plan for the given
// headcount.
func (c *Catalog) PerHeadCents(plan string, headcount int) (int64, error) {
	p, ok := c.plans[plan]
	if !ok {
		return 0, fmt.Errorf("unknown plan %q", plan)
	}
	if headcount <= 0 {
		return 0, fmt.Errorf("headcount must be positive")
	}
	for _, b := range p.Bands {
		if b.MaxHeadcount == 0 || headcount <= b.MaxHeadcount {
			return b.PerHeadCents, nil
		}
	}
	return 0, fmt.Errorf("plan %q has no band for headcount %d", plan, headcount)
}

// TotalCents prices a whole contract.
func (c *Catalog) TotalCents(plan string, headcount int) (int64, error) {
	per, err := c.PerHeadCents(plan, headcount)
	if err != nil {
		return 0, err
	}
	return per * int64(headcount), nil
}

// Plans lists the plan names in the catalog.
func (c *Catalog) Plans() []string {
	names := make([]string, 0, len(c.plans))
	for name := range c.plans {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
