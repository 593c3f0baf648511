// Package lbo is a leveraged buyout returns model: entry debt and equity,
// a yearly cash flow waterfall with optional cash sweep, and exit returns.
// It is the reference model behind the dealmodel CLI.
package lbo

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dealmodel/dealmodel/pkg/fieldpath"
)

// ErrInvalidInputs is returned for inputs the model cannot run on.
var ErrInvalidInputs = errors.New("invalid lbo inputs")

// Tranche is one layer of acquisition debt, sized as a multiple of entry
// EBITDA.
type Tranche struct {
	Multiple float64 `yaml:"multiple" json:"multiple"`
	Rate     float64 `yaml:"rate" json:"rate"`
}

// Inputs are the deal assumptions.
type Inputs struct {
	Name          string    `yaml:"name" json:"name"`
	EntryEBITDA   float64   `yaml:"entry_ebitda" json:"entry_ebitda"`
	EntryMultiple float64   `yaml:"entry_multiple" json:"entry_multiple"`
	ExitMultiple  float64   `yaml:"exit_multiple" json:"exit_multiple"`
	HoldYears     int       `yaml:"hold_years" json:"hold_years"`
	EBITDAGrowth  []float64 `yaml:"ebitda_growth" json:"ebitda_growth"` // last value repeats
	SeniorDebt    Tranche   `yaml:"senior_debt" json:"senior_debt"`
	SubDebt       Tranche   `yaml:"sub_debt" json:"sub_debt"`
	TaxRate       float64   `yaml:"tax_rate" json:"tax_rate"`
	CapexPct      float64   `yaml:"capex_pct" json:"capex_pct"` // of EBITDA
	NWCPct        float64   `yaml:"nwc_pct" json:"nwc_pct"`     // of EBITDA growth
	CashSweep     bool      `yaml:"cash_sweep" json:"cash_sweep"`
}

// DefaultInputs returns a mid-market sample deal.
func DefaultInputs() Inputs {
	return Inputs{
		Name:          "Sample Deal",
		EntryEBITDA:   100,
		EntryMultiple: 10,
		ExitMultiple:  10,
		HoldYears:     5,
		EBITDAGrowth:  []float64{0.08, 0.07, 0.06, 0.05, 0.05},
		SeniorDebt:    Tranche{Multiple: 4, Rate: 0.06},
		SubDebt:       Tranche{Multiple: 1.5, Rate: 0.10},
		TaxRate:       0.25,
		CapexPct:      0.15,
		NWCPct:        0.10,
		CashSweep:     true,
	}
}

// LoadInputs reads inputs from a YAML file. Fields missing from the file
// keep their DefaultInputs values.
func LoadInputs(path string) (Inputs, error) {
	in := DefaultInputs()
	data, err := os.ReadFile(path)
	if err != nil {
		return in, fmt.Errorf("reading inputs: %w", err)
	}
	if err := yaml.Unmarshal(data, &in); err != nil {
		return in, fmt.Errorf("parsing inputs: %w", err)
	}
	return in, nil
}

// Registry exposes every assumption by dot-path.
func Registry() *fieldpath.Registry[Inputs] {
	return fieldpath.NewRegistry[Inputs]().
		String("name", func(in *Inputs) *string { return &in.Name }).
		Float64("entry_ebitda", func(in *Inputs) *float64 { return &in.EntryEBITDA }).
		Float64("entry_multiple", func(in *Inputs) *float64 { return &in.EntryMultiple }).
		Float64("exit_multiple", func(in *Inputs) *float64 { return &in.ExitMultiple }).
		Int("hold_years", func(in *Inputs) *int { return &in.HoldYears }).
		Float64Slice("ebitda_growth", func(in *Inputs) *[]float64 { return &in.EBITDAGrowth }).
		Float64("senior_debt.multiple", func(in *Inputs) *float64 { return &in.SeniorDebt.Multiple }).
		Float64("senior_debt.rate", func(in *Inputs) *float64 { return &in.SeniorDebt.Rate }).
		Float64("sub_debt.multiple", func(in *Inputs) *float64 { return &in.SubDebt.Multiple }).
		Float64("sub_debt.rate", func(in *Inputs) *float64 { return &in.SubDebt.Rate }).
		Float64("tax_rate", func(in *Inputs) *float64 { return &in.TaxRate }).
		Float64("capex_pct", func(in *Inputs) *float64 { return &in.CapexPct }).
		Float64("nwc_pct", func(in *Inputs) *float64 { return &in.NWCPct }).
		Bool("cash_sweep", func(in *Inputs) *bool { return &in.CashSweep })
}

// DefaultDrivers are the assumptions flexed by standard scenarios.
var DefaultDrivers = []string{"ebitda_growth", "exit_multiple"}

func (in Inputs) validate() error {
	switch {
	case in.EntryEBITDA <= 0:
		return fmt.Errorf("%w: entry_ebitda must be positive", ErrInvalidInputs)
	case in.HoldYears < 1:
		return fmt.Errorf("%w: hold_years must be at least 1", ErrInvalidInputs)
	case in.HoldYears > 30:
		return fmt.Errorf("%w: hold_years must be at most 30", ErrInvalidInputs)
	}
	return nil
}

func (in Inputs) growth(year int) float64 {
	if len(in.EBITDAGrowth) == 0 {
		return 0
	}
	if year < len(in.EBITDAGrowth) {
		return in.EBITDAGrowth[year]
	}
	return in.EBITDAGrowth[len(in.EBITDAGrowth)-1]
}

// Calculate runs the model. The result holds scalar returns, yearly series
// and a nested "credit" section:
//
//	entry_ev, debt_raised, equity_check, exit_ev, exit_equity,
//	net_debt_at_exit, moic, irr,
//	ebitda[], fcf[], debt_balance[],
//	credit.max_leverage, credit.min_interest_coverage
func Calculate(in Inputs) (fieldpath.Outputs, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	entryEV := in.EntryEBITDA * in.EntryMultiple
	senior := in.EntryEBITDA * in.SeniorDebt.Multiple
	sub := in.EntryEBITDA * in.SubDebt.Multiple
	debtRaised := senior + sub
	equity := entryEV - debtRaised
	if equity <= 0 {
		return nil, fmt.Errorf("%w: debt %.2f exceeds entry value %.2f", ErrInvalidInputs, debtRaised, entryEV)
	}

	var (
		ebitdas     = make([]float64, in.HoldYears)
		fcfs        = make([]float64, in.HoldYears)
		balances    = make([]float64, in.HoldYears)
		cash        float64
		prev        = in.EntryEBITDA
		maxLeverage = debtRaised / in.EntryEBITDA
		minCoverage = math.Inf(1)
	)

	for year := 0; year < in.HoldYears; year++ {
		ebitda := prev * (1 + in.growth(year))
		interest := senior*in.SeniorDebt.Rate + sub*in.SubDebt.Rate
		taxes := math.Max(0, (ebitda-interest)*in.TaxRate)
		capex := ebitda * in.CapexPct
		nwc := (ebitda - prev) * in.NWCPct
		fcf := ebitda - interest - taxes - capex - nwc

		cash += fcf
		if cash < 0 {
			// Shortfalls are funded by drawing more senior debt.
			senior -= cash
			cash = 0
		}
		if in.CashSweep && cash > 0 {
			repay := math.Min(cash, senior)
			senior -= repay
			cash -= repay
			repay = math.Min(cash, sub)
			sub -= repay
			cash -= repay
		}

		if interest > 0 {
			minCoverage = math.Min(minCoverage, ebitda/interest)
		}
		maxLeverage = math.Max(maxLeverage, (senior+sub)/ebitda)

		ebitdas[year] = ebitda
		fcfs[year] = fcf
		balances[year] = senior + sub
		prev = ebitda
	}

	exitEV := prev * in.ExitMultiple
	netDebt := senior + sub - cash
	exitEquity := exitEV - netDebt
	moic := exitEquity / equity
	irr := -1.0
	if exitEquity > 0 {
		irr = math.Pow(moic, 1/float64(in.HoldYears)) - 1
	}
	if math.IsInf(minCoverage, 1) {
		minCoverage = 0
	}

	return fieldpath.Outputs{
		"entry_ev":         entryEV,
		"debt_raised":      debtRaised,
		"equity_check":     equity,
		"exit_ev":          exitEV,
		"exit_equity":      exitEquity,
		"net_debt_at_exit": netDebt,
		"moic":             moic,
		"irr":              irr,
		"ebitda":           ebitdas,
		"fcf":              fcfs,
		"debt_balance":     balances,
		"credit": map[string]any{
			"max_leverage":          maxLeverage,
			"min_interest_coverage": minCoverage,
		},
	}, nil
}
