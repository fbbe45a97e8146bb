// Package models - access_log.go defines the AccessLog model, the append-only audit trail of
// dashboard reads and approval decisions.
package models

import "time"

// Access log action tags
const (
	AccessActionView     = "View"
	AccessActionApproved = "Approved"
)

// AccessLog is one audit trail entry
type AccessLog struct {
	ID        string    `db:"id" json:"id"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
	UserID    string    `db:"user_id" json:"user_id"`
	Role      string    `db:"role" json:"role"`
	Action    string    `db:"action" json:"action"`
	Subject   string    `db:"subject" json:"subject"`
	IPAddress *string   `db:"ip_address" json:"ip_address,omitempty"`
}
