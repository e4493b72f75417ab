// Package pricing computes subscription prices in rials.
package pricing

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUnknownPlan is returned for a plan name that is not in the catalog.
var ErrUnknownPlan = errors.New("unknown subscription plan")

// Plan is one purchasable subscription period.
type Plan struct {
	Name     string
	Months   int
	Discount decimal.Decimal // fraction off the undiscounted price, e.g. 0.15
}

// Quote is the price of one plan period.
type Quote struct {
	Plan       string          `json:"plan"`
	Months     int             `json:"months"`
	BasePrice  decimal.Decimal `json:"base_price"`
	Discount   decimal.Decimal `json:"discount"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// DefaultMonthlyPrice is the undiscounted price of one month.
var DefaultMonthlyPrice = decimal.NewFromInt(150_000)

// Pricer quotes plans against a monthly base price.
type Pricer struct {
	monthly decimal.Decimal
	plans   map[string]Plan
}

// DefaultPlans are the monthly, quarterly and yearly plans.
func DefaultPlans() []Plan {
	return []Plan{
		{Name: "monthly", Months: 1, Discount: decimal.Zero},
		{Name: "quarterly", Months: 3, Discount: decimal.RequireFromString("0.05")},
		{Name: "yearly", Months: 12, Discount: decimal.RequireFromString("0.15")},
	}
}

// New creates a pricer. With no plans given it uses DefaultPlans.
func New(monthly decimal.Decimal, plans ...Plan) *Pricer {
	if len(plans) == 0 {
		plans = DefaultPlans()
	}

	p := &Pricer{
		monthly: monthly,
		plans:   make(map[string]Plan, len(plans)),
	}

	for _, plan := range plans {
		p.plans[plan.Name] = plan
	}

	return p
}

// Plans returns the plan names, sorted.
func (p *Pricer) Plans() []string {
	names := make([]string, 0, len(p.plans))
	for name := range p.plans {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// Quote prices one period of the named plan. Totals are rounded down to whole rials.
func (p *Pricer) Quote(name string) (Quote, error) {
	plan, ok := p.plans[name]
	if !ok {
		return Quote{}, fmt.Errorf("%w: %q", ErrUnknownPlan, name)
	}

	base := p.monthly.Mul(decimal.NewFromInt(int64(plan.Months)))
	discount := base.Mul(plan.Discount).Floor()

	return Quote{
		Plan:       plan.Name,
		Months:     plan.Months,
		BasePrice:  base,
		Discount:   discount,
		TotalPrice: base.Sub(discount),
	}, nil
}

// Period returns when a plan bought at start ends.
func (p *Pricer) Period(name string, start time.Time) (time.Time, error) {
	plan, ok := p.plans[name]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownPlan, name)
	}

	return start.AddDate(0, plan.Months, 0), nil
}
