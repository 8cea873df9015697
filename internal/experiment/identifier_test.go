package experiment

import (
	"strings"
	"testing"

	"github.com/psantana5/shopbench/pkg/config"
	"github.com/psantana5/shopbench/pkg/cp"
)

func TestExperimentIDDeterministic(t *testing.T) {
	tests := []struct {
		limit    float64
		instance string
		want     string
	}{
		{5, "/jsp/adams/abz5", "cpls_5/jsp_adams_abz5"},
		{2.5, `jsp\adams\abz5`, "cpls_2.5/jsp_adams_abz5"},
	}
	for _, tt := range tests {
		got := ExperimentID(IDParams{Solver: "cpls", TimeLimit: tt.limit, Instance: tt.instance})
		if got != tt.want {
			t.Errorf("ExperimentID(%v, %q) = %q, want %q", tt.limit, tt.instance, got, tt.want)
		}
	}
}

func TestExperimentIDStochastic(t *testing.T) {
	exp := ExperimentID(IDParams{
		Solver: "cpls", TimeLimit: 60, Stoch: true, NumRealizations: 10,
		Objective: cp.Expectation, Instance: "/fjsp/brandimarte/Mk01.fjs",
	})
	if want := "cpls_60/stoch_10_expectationfjsp_brandimarte_Mk01.fjs"; exp != want {
		t.Errorf("expectation id = %q, want %q", exp, want)
	}

	p := IDParams{
		Solver: "cpls", TimeLimit: 60, Stoch: true, NumRealizations: 10,
		Objective: cp.ValueAtRisk, Alpha: 0.9, Instance: "/fjsp/brandimarte/Mk01.fjs",
	}
	ninety := ExperimentID(p)
	if want := "cpls_60/stoch_10_VaR_90fjsp_brandimarte_Mk01.fjs"; ninety != want {
		t.Errorf("VaR id = %q, want %q", ninety, want)
	}
	if again := ExperimentID(p); again != ninety {
		t.Errorf("identifier changed between calls: %q then %q", ninety, again)
	}

	p.Alpha = 0.95
	if got, want := ExperimentID(p), strings.Replace(ninety, "_90", "_95", 1); got != want {
		t.Errorf("alpha 0.95 id = %q, want %q", got, want)
	}
	if exp == ninety {
		t.Error("expectation and VaR runs share an identifier")
	}
}

func TestExperimentIDSeparatesRunKinds(t *testing.T) {
	base := IDParams{Solver: "cpls", TimeLimit: 5, NumRealizations: 4, Instance: "/fjsp/x.fjs"}
	det := ExperimentID(base)

	base.Stoch = true
	base.Objective = cp.Expectation
	exp := ExperimentID(base)

	base.Objective = cp.ValueAtRisk
	base.Alpha = 0.5
	vr := ExperimentID(base)

	if len(map[string]bool{det: true, exp: true, vr: true}) != 3 {
		t.Errorf("identifiers collide: %q %q %q", det, exp, vr)
	}
	for _, id := range []string{det, exp, vr} {
		if strings.Count(id, "/") != 1 || strings.Contains(id, `\`) {
			t.Errorf("%q: expected exactly one separator", id)
		}
	}
}

func TestIDFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Instance.ProblemInstance = "/fjsp/brandimarte/Mk01.fjs"
	cfg.Instance.Stoch = true
	cfg.Instance.NumRealizations = 8
	cfg.Instance.StochObj = "VaR"
	cfg.Instance.VaRAlpha = 0.9
	cfg.Solver.TimeLimit = 5

	if got, want := IDFromConfig(cfg), "cpls_5/stoch_8_VaR_90fjsp_brandimarte_Mk01.fjs"; got != want {
		t.Errorf("IDFromConfig = %q, want %q", got, want)
	}
}
