// Package models - approval.go defines the Approval model and the pass/fail decision type.
package models

import "time"

// Decision is the QA outcome submitted for a draft
type Decision string

const (
	DecisionPass Decision = "pass"
	DecisionFail Decision = "fail"
)

// ParseDecision accepts exactly "pass" or "fail"
func ParseDecision(s string) (Decision, bool) {
	switch Decision(s) {
	case DecisionPass, DecisionFail:
		return Decision(s), true
	}
	return "", false
}

// Approval records the QA decision for exactly one draft (draft_id is unique)
type Approval struct {
	ID         int64      `db:"id" json:"id"`
	DraftID    int64      `db:"draft_id" json:"draft_id"`
	Passed     bool       `db:"passed" json:"passed"`
	ApprovedBy *string    `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedOn *time.Time `db:"approved_on" json:"approved_on,omitempty"`
}
