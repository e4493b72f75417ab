// Package config loads the subscription plan catalog from YAML.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/dukex/hesab/pkg/pricing"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var ErrInvalidCatalog = errors.New("invalid plan catalog")

// PlanCatalogFile is the structure of a plans.yaml file.
//
//	monthly_price: "150000"
//	plans:
//	  - name: quarterly
//	    months: 3
//	    discount: "0.05"
type PlanCatalogFile struct {
	MonthlyPrice string         `yaml:"monthly_price"`
	Plans        []PlanFileItem `yaml:"plans"`
}

// PlanFileItem is one plan in the YAML file.
type PlanFileItem struct {
	Name     string `yaml:"name"`
	Months   int    `yaml:"months"`
	Discount string `yaml:"discount"`
}

// PlanCatalog is a validated catalog.
type PlanCatalog struct {
	MonthlyPrice decimal.Decimal
	Plans        []pricing.Plan
}

// Pricer builds the pricer the subscription workflow quotes with.
func (c PlanCatalog) Pricer() *pricing.Pricer {
	return pricing.New(c.MonthlyPrice, c.Plans...)
}

// LoadPlanCatalog loads the plan catalog from a YAML file.
func LoadPlanCatalog(filepath string) (PlanCatalog, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return PlanCatalog{}, fmt.Errorf("failed to read plan catalog %s: %w", filepath, err)
	}

	return ParsePlanCatalog(data)
}

// ParsePlanCatalog parses and validates YAML catalog data. A missing monthly
// price or plan list falls back to the defaults.
func ParsePlanCatalog(data []byte) (PlanCatalog, error) {
	var file PlanCatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return PlanCatalog{}, fmt.Errorf("failed to parse YAML plan catalog: %w", err)
	}

	catalog := PlanCatalog{MonthlyPrice: pricing.DefaultMonthlyPrice}

	if file.MonthlyPrice != "" {
		price, err := decimal.NewFromString(file.MonthlyPrice)
		if err != nil || !price.IsPositive() {
			return PlanCatalog{}, fmt.Errorf("%w: monthly_price %q", ErrInvalidCatalog, file.MonthlyPrice)
		}

		catalog.MonthlyPrice = price
	}

	if len(file.Plans) == 0 {
		catalog.Plans = pricing.DefaultPlans()

		return catalog, nil
	}

	seen := make(map[string]bool, len(file.Plans))

	for i, item := range file.Plans {
		plan, err := item.plan()
		if err != nil {
			return PlanCatalog{}, fmt.Errorf("plan %d: %w", i, err)
		}

		if seen[plan.Name] {
			return PlanCatalog{}, fmt.Errorf("%w: duplicate plan %q", ErrInvalidCatalog, plan.Name)
		}

		seen[plan.Name] = true
		catalog.Plans = append(catalog.Plans, plan)
	}

	return catalog, nil
}

func (p PlanFileItem) plan() (pricing.Plan, error) {
	if p.Name == "" {
		return pricing.Plan{}, fmt.Errorf("%w: name is required", ErrInvalidCatalog)
	}

	if p.Months <= 0 {
		return pricing.Plan{}, fmt.Errorf("%w: %s must last at least one month", ErrInvalidCatalog, p.Name)
	}

	discount := decimal.Zero

	if p.Discount != "" {
		d, err := decimal.NewFromString(p.Discount)
		if err != nil || d.IsNegative() || d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return pricing.Plan{}, fmt.Errorf("%w: %s discount %q must be in [0, 1)", ErrInvalidCatalog, p.Name, p.Discount)
		}

		discount = d
	}

	return pricing.Plan{Name: p.Name, Months: p.Months, Discount: discount}, nil
}
