// Package models - mail_instruction.go defines the MailInstruction model, one row per
// recipient notified about a draft's outcome.
package models

import "time"

// RecipientSource records where a recipient address came from
type RecipientSource string

const (
	RecipientSourceDirectory RecipientSource = "directory"
	RecipientSourceManual    RecipientSource = "manual"
)

// MailInstruction is an append-only notification record
type MailInstruction struct {
	ID         int64           `db:"id" json:"id"`
	DraftID    int64           `db:"draft_id" json:"draft_id"`
	Recipient  string          `db:"recipient" json:"recipient"`
	SourceType RecipientSource `db:"source_type" json:"source_type"`
	AddedBy    string          `db:"added_by" json:"added_by"`
	AddedOn    time.Time       `db:"added_on" json:"added_on"`
}
