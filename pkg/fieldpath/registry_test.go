package fieldpath

import (
	"errors"
	"reflect"
	"testing"
)

type debt struct {
	SeniorRate float64
	Tranches   int
}

type inputs struct {
	Name        string
	EntryEBITDA float64
	Growth      []float64
	Dividends   bool
	Debt        debt
	Mezz        *debt
}

func testRegistry() *Registry[inputs] {
	return NewRegistry[inputs]().
		String("name", func(in *inputs) *string { return &in.Name }).
		Float64("entry_ebitda", func(in *inputs) *float64 { return &in.EntryEBITDA }).
		Float64Slice("growth", func(in *inputs) *[]float64 { return &in.Growth }).
		Bool("dividends", func(in *inputs) *bool { return &in.Dividends }).
		Float64("debt.senior_rate", func(in *inputs) *float64 { return &in.Debt.SeniorRate }).
		Int("debt.tranches", func(in *inputs) *int { return &in.Debt.Tranches }).
		Float64("mezz.senior_rate", func(in *inputs) *float64 {
			if in.Mezz == nil {
				return nil
			}
			return &in.Mezz.SeniorRate
		})
}

func TestRegistrySetAndGet(t *testing.T) {
	reg := testRegistry()
	in := inputs{}

	tests := []struct {
		path  string
		value any
		want  any
	}{
		{path: "name", value: "Project Atlas", want: "Project Atlas"},
		{path: "entry_ebitda", value: 120, want: 120.0},
		{path: "debt.senior_rate", value: 0.06, want: 0.06},
		{path: "debt.tranches", value: 3.0, want: 3},
		{path: "dividends", value: true, want: true},
		{path: "growth", value: []any{0.05, 1}, want: []float64{0.05, 1}},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			if err := reg.Set(&in, tc.path, tc.value); err != nil {
				t.Fatalf("Set: %v", err)
			}
			got, err := reg.Get(&in, tc.path)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Get(%s) = %#v, want %#v", tc.path, got, tc.want)
			}
		})
	}
}

func TestRegistryErrors(t *testing.T) {
	reg := testRegistry()
	in := inputs{}

	tests := []struct {
		name  string
		path  string
		value any
		want  error
	}{
		{name: "unknown path", path: "debt.junior_rate", value: 0.1, want: ErrUnknownPath},
		{name: "nil nested pointer", path: "mezz.senior_rate", value: 0.1, want: ErrUnknownPath},
		{name: "string into float", path: "entry_ebitda", value: "lots", want: ErrTypeMismatch},
		{name: "fraction into int", path: "debt.tranches", value: 2.5, want: ErrTypeMismatch},
		{name: "number into bool", path: "dividends", value: 1, want: ErrTypeMismatch},
		{name: "strings into slice", path: "growth", value: []any{"a"}, want: ErrTypeMismatch},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := reg.Set(&in, tc.path, tc.value)
			if !errors.Is(err, tc.want) {
				t.Errorf("Set error = %v, want %v", err, tc.want)
			}
		})
	}

	if _, err := reg.Float(&in, "name"); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("Float on string field error = %v, want ErrTypeMismatch", err)
	}
	if _, err := reg.Get(&in, "nope"); !errors.Is(err, ErrUnknownPath) {
		t.Errorf("Get unknown error = %v, want ErrUnknownPath", err)
	}
}

func TestRegistryApply(t *testing.T) {
	reg := testRegistry()
	in := inputs{Debt: debt{SeniorRate: 0.06}}

	err := reg.Apply(&in, map[string]any{
		"debt.senior_rate": 0.10,
		"not.registered":   5,
		"mezz.senior_rate": 0.12,
		"entry_ebitda":     150.0,
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if in.Debt.SeniorRate != 0.10 || in.EntryEBITDA != 150 {
		t.Errorf("Apply result = %+v", in)
	}

	err = reg.Apply(&in, map[string]any{"entry_ebitda": "bad"})
	if !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("Apply mismatch error = %v, want ErrTypeMismatch", err)
	}
}

func TestRegistrySliceIsCopied(t *testing.T) {
	reg := testRegistry()
	src := []float64{1, 2}
	in := inputs{}
	if err := reg.Set(&in, "growth", src); err != nil {
		t.Fatalf("Set: %v", err)
	}
	src[0] = 99
	if in.Growth[0] != 1 {
		t.Error("Set should copy the assigned slice")
	}

	got, _ := reg.Get(&in, "growth")
	got.([]float64)[1] = 99
	if in.Growth[1] != 2 {
		t.Error("Get should return a copy of the slice")
	}
}

func TestRegistryMetadata(t *testing.T) {
	reg := testRegistry()
	want := []string{"debt.senior_rate", "debt.tranches", "dividends", "entry_ebitda", "growth", "mezz.senior_rate", "name"}
	if got := reg.Paths(); !reflect.DeepEqual(got, want) {
		t.Errorf("Paths = %v", got)
	}
	if k, ok := reg.Kind("debt.tranches"); !ok || k != KindInt || !k.Numeric() {
		t.Errorf("Kind(debt.tranches) = %v, %v", k, ok)
	}
	if k, _ := reg.Kind("growth"); k.Numeric() {
		t.Error("slice kind should not be numeric")
	}
	if !reg.Has("name") || reg.Has("Name") {
		t.Error("Has should match registered paths exactly")
	}
}

func TestOutputsLookup(t *testing.T) {
	out := Outputs{
		"irr":   0.21,
		"moic":  2,
		"label": "base",
		"returns": map[string]any{
			"equity": map[string]any{"value": 450.5},
		},
		"debt":    Outputs{"leverage": 4.5},
		"by_year": map[string]float64{"y1": 10},
	}

	tests := []struct {
		path string
		want float64
		ok   bool
	}{
		{path: "irr", want: 0.21, ok: true},
		{path: "moic", want: 2, ok: true},
		{path: "returns.equity.value", want: 450.5, ok: true},
		{path: "debt.leverage", want: 4.5, ok: true},
		{path: "by_year.y1", want: 10, ok: true},
		{path: "label", ok: false},
		{path: "returns.equity", ok: false},
		{path: "returns.missing.value", ok: false},
		{path: "irr.deeper", ok: false},
	}
	for _, tc := range tests {
		got, ok := out.Lookup(tc.path)
		if ok != tc.ok || got != tc.want {
			t.Errorf("Lookup(%s) = %v, %v; want %v, %v", tc.path, got, ok, tc.want, tc.ok)
		}
	}
}
