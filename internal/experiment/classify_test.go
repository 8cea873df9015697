package experiment

import (
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		id    string
		stoch bool
		want  Variant
	}{
		{"/fjsp_sdst/fattahi/Fattahi1", false, FJSPSDST},
		{"/FJSP_SDST/fattahi/Fattahi1", true, FJSPSDST},
		{"/fjsp/brandimarte/Mk01.fjs", false, FJSPDet},
		{"/fjsp/brandimarte/Mk01.fjs", true, FJSPStoch},
		{"custom/mk02.fjs", false, FJSPDet},
		{"/jsp/adams/abz5", false, JSPOrFSP},
		{"/fsp/taillard/ta001", false, JSPOrFSP},
		{"/JSP/Adams/ABZ5", false, JSPOrFSP},
	}
	for _, tc := range cases {
		got, err := Classify(tc.id, tc.stoch)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tc.id, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s stoch=%v: expected %s, got %s", tc.id, tc.stoch, tc.want, got)
		}
	}
}

func TestClassifySetupMarkerWins(t *testing.T) {
	ids := []string{
		"/fjsp_sdst/x",
		"/fjsp/fjsp_sdst/x",
		"/fjsp_sdst/brandimarte/Mk01.fjs",
	}
	for _, id := range ids {
		for _, stoch := range []bool{false, true} {
			got, err := Classify(id, stoch)
			if err != nil || got != FJSPSDST {
				t.Errorf("%s stoch=%v: expected FJSP_SDST, got %q (%v)", id, stoch, got, err)
			}
		}
	}
}

func TestClassifyRejects(t *testing.T) {
	ids := []string{
		"",
		"   ",
		"/taillard/ta001",
		"/openshop/x",
		// flexible next to a job shop or flow shop marker
		"/fjsp/fsp_mix",
		"/fjsp/fsp_like/mk01",
		"/fjsp/jsp_like/mk01",
		"/fjsp_sdst/fsp/x",
		"/jsp/fjsp_sdst_x",
		// a .fjs file under a job shop or flow shop family
		"/jsp/taillard/x.fjs",
		"/fsp/taillard/x.fjs",
	}
	for _, id := range ids {
		got, err := Classify(id, false)
		if !errors.Is(err, ErrClassification) {
			t.Errorf("%q: expected ErrClassification, got %q (%v)", id, got, err)
		}
	}
}

func TestVariantStochastic(t *testing.T) {
	for _, v := range []Variant{FJSPSDST, FJSPDet, JSPOrFSP} {
		if v.Stochastic() {
			t.Errorf("%s should not be stochastic", v)
		}
	}
	if !FJSPStoch.Stochastic() {
		t.Error("FJSP_STOCH should be stochastic")
	}
}
