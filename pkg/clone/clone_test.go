package clone

import (
	"reflect"
	"testing"
)

type tranche struct {
	Rate float64
}

type model struct {
	Name     string
	Growth   []float64
	Tranches map[string]*tranche
	Senior   *tranche
}

func TestDeep(t *testing.T) {
	src := model{
		Name:     "atlas",
		Growth:   []float64{0.05, 0.04},
		Tranches: map[string]*tranche{"tla": {Rate: 0.06}},
		Senior:   &tranche{Rate: 0.07},
	}

	dst, err := Deep(src)
	if err != nil {
		t.Fatalf("Deep: %v", err)
	}
	if !reflect.DeepEqual(dst, src) {
		t.Fatalf("copy differs: %+v vs %+v", dst, src)
	}

	dst.Growth[0] = 1
	dst.Tranches["tla"].Rate = 1
	dst.Senior.Rate = 1
	if src.Growth[0] != 0.05 || src.Tranches["tla"].Rate != 0.06 || src.Senior.Rate != 0.07 {
		t.Errorf("mutating the copy changed the source: %+v", src)
	}
}
