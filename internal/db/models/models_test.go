package models

import "testing"

func TestParseDecision(t *testing.T) {
	tests := []struct {
		in     string
		want   Decision
		wantOK bool
	}{
		{"pass", DecisionPass, true},
		{"fail", DecisionFail, true},
		{"PASS", "", false},
		{"", "", false},
		{"approve", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseDecision(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseDecision(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestDraftLabel(t *testing.T) {
	d := Draft{Filename: "r.pdf"}
	if got := d.Label(); got != "Draft - r.pdf" {
		t.Errorf("Label() = %q", got)
	}
	study := "ST-9"
	d.StudyID = &study
	if got := d.Label(); got != "ST-9 - r.pdf" {
		t.Errorf("Label() = %q", got)
	}
}
