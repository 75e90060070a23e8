package gate

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

var levels = []Level{Low, Med, High}

func TestBand(t *testing.T) {
	tests := []struct {
		in   float64
		want Level
	}{
		{-0.5, Low},
		{0, Low},
		{0.33, Low},
		{1.0 / 3.0, Med},
		{0.5, Med},
		{0.66, Med},
		{2.0 / 3.0, High},
		{0.9, High},
		{1, High},
		{7, High},
	}
	for _, tt := range tests {
		if got := Band(tt.in); got != tt.want {
			t.Errorf("Band(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestRiskinessTable(t *testing.T) {
	want := map[[2]Level]Level{
		{Low, Low}: Med, {Low, Med}: Med, {Low, High}: Low,
		{Med, Low}: High, {Med, Med}: Med, {Med, High}: Med,
		{High, Low}: High, {High, Med}: High, {High, High}: Med,
	}
	for k, w := range want {
		if got := Riskiness(k[0], k[1]); got != w {
			t.Errorf("Riskiness(impact=%s, rev=%s) = %s, want %s", k[0], k[1], got, w)
		}
	}
}

func TestAllowed_MedMed(t *testing.T) {
	risk := Riskiness(Band(0.5), Band(0.5))
	got := Allowed(risk, Band(0.5), PostureDefault)
	if diff := cmp.Diff([]ActionClass{Probe, Limited}, got.Members()); diff != "" {
		t.Errorf("allowed set mismatch (-want +got):\n%s", diff)
	}
}

func TestAllowed_MonotoneInImpact(t *testing.T) {
	for _, rev := range levels {
		for _, unc := range levels {
			for _, p := range []Posture{PostureDefault, PostureConservative} {
				prev := Allowed(Riskiness(Low, rev), unc, p)
				for _, imp := range []Level{Med, High} {
					cur := Allowed(Riskiness(imp, rev), unc, p)
					if !cur.SubsetOf(prev) {
						t.Errorf("rev=%s unc=%s posture=%s: impact %s allows %s, not within %s",
							rev, unc, p, imp, cur, prev)
					}
					prev = cur
				}
			}
		}
	}
}

func TestAllowed_ConservativeNeverLoosens(t *testing.T) {
	for _, risk := range levels {
		for _, unc := range levels {
			def := Allowed(risk, unc, PostureDefault)
			con := Allowed(risk, unc, PostureConservative)
			if !con.SubsetOf(def) {
				t.Errorf("risk=%s unc=%s: conservative %s not subset of default %s", risk, unc, con, def)
			}
			if con.Has(Commit) {
				t.Errorf("risk=%s unc=%s: conservative still allows COMMIT", risk, unc)
			}
		}
	}
}

func TestValidateOverride_Subset(t *testing.T) {
	g := Governance{Mode: ExtendedAllowed, OverrideScope: []string{"A", "B"}, OverrideRationale: "incident bridge"}
	tests := []struct {
		name string
		used []string
		want bool
	}{
		{"subset", []string{"A"}, true},
		{"full", []string{"A", "B"}, true},
		{"undeclared", []string{"C"}, false},
		{"empty", nil, false},
		{"blank", []string{" "}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := ValidateOverride(g, tt.used)
			if ok != tt.want {
				t.Errorf("ValidateOverride(%v) = %v (%s), want %v", tt.used, ok, reason, tt.want)
			}
		})
	}
}

func TestValidateOverride_RequiresGovernance(t *testing.T) {
	used := []string{"A"}
	cases := map[string]Governance{
		"advisory":     {Mode: AdvisoryOnly, OverrideScope: []string{"A"}, OverrideRationale: "r"},
		"no scope":     {Mode: ExtendedAllowed, OverrideRationale: "r"},
		"no rationale": {Mode: ExtendedAllowed, OverrideScope: []string{"A"}, OverrideRationale: "  "},
	}
	for name, g := range cases {
		if ok, _ := ValidateOverride(g, used); ok {
			t.Errorf("%s: override validated, want rejection", name)
		}
	}
}

func TestEvaluate_Scenarios(t *testing.T) {
	risky := Subject{Impact: 0.9, Reversibility: 0.1, Uncertainty: 0.9, Class: Commit, Dependencies: []string{"obs_1"}}
	bypass := Governance{
		Mode:              ExtendedAllowed,
		OverrideScope:     []string{ScopeGateBypass},
		OverrideRationale: "operator accepted blast radius",
	}

	tests := []struct {
		name        string
		subject     Subject
		gov         Governance
		scope       []string
		allowed     bool
		needsBypass bool
	}{
		{"no override", risky, Governance{}, nil, false, true},
		{"valid override", risky, bypass, []string{ScopeGateBypass}, true, true},
		{"override not requested", risky, bypass, nil, false, true},
		{"all med commit", Subject{Impact: 0.5, Reversibility: 0.5, Uncertainty: 0.5, Class: Commit, Dependencies: []string{"d"}}, Governance{}, nil, false, true},
		{"all med limited", Subject{Impact: 0.5, Reversibility: 0.5, Uncertainty: 0.5, Class: Limited, Dependencies: []string{"d"}}, Governance{}, nil, true, false},
		{"low risk commit", Subject{Impact: 0.1, Reversibility: 0.9, Uncertainty: 0.9, Class: Commit, Dependencies: []string{"d"}}, Governance{}, nil, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Evaluate(tt.subject, tt.gov, tt.scope)
			if v.Allowed != tt.allowed || v.RequiresOverride != tt.needsBypass {
				t.Errorf("Evaluate = (%v, %v, %q), want (%v, %v)", v.Allowed, v.RequiresOverride, v.Reason, tt.allowed, tt.needsBypass)
			}
			if v.Reason == "" {
				t.Error("empty reason")
			}
		})
	}
}

func TestEvaluate_DependenciesRequiredEvenWithOverride(t *testing.T) {
	s := Subject{Impact: 0.9, Reversibility: 0.1, Uncertainty: 0.9, Class: Commit}
	g := Governance{Mode: ExtendedAllowed, OverrideScope: []string{ScopeGateBypass}, OverrideRationale: "r"}
	v := Evaluate(s, g, []string{ScopeGateBypass})
	if v.Allowed || v.RequiresOverride {
		t.Fatalf("Evaluate = (%v, %v), want (false, false)", v.Allowed, v.RequiresOverride)
	}
	if v.Reason != "invalid option: dependencies required" {
		t.Errorf("reason = %q", v.Reason)
	}
}

func TestParseActionClass(t *testing.T) {
	for in, want := range map[string]ActionClass{"probe": Probe, " LIMITED ": Limited, "Commit": Commit} {
		got, err := ParseActionClass(in)
		if err != nil || got != want {
			t.Errorf("ParseActionClass(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseActionClass("yolo"); err == nil {
		t.Error("expected error for unknown class")
	}
}

func TestClassSetString(t *testing.T) {
	if got := Classes(Commit, Probe).String(); got != "{PROBE,COMMIT}" {
		t.Errorf("String = %q", got)
	}
	if Classes().Has("") {
		t.Error("empty class reported as member")
	}
}
