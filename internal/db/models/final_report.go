// Package models - final_report.go defines FinalReport (published reports) and ProcessLog
// (state messages written by the report generation pipeline).
package models

import "time"

// FinalReport is an approved report published to the finals container
type FinalReport struct {
	ID         int64      `db:"id" json:"id"`
	Filename   string     `db:"filename" json:"filename"`
	Region     string     `db:"region" json:"region"`
	Site       string     `db:"site" json:"site"`
	StudyID    *string    `db:"study_id" json:"study_id,omitempty"`
	Batch      *string    `db:"batch" json:"batch,omitempty"`
	Product    *string    `db:"product" json:"product,omitempty"`
	Passed     bool       `db:"passed" json:"passed"`
	ApprovedBy string     `db:"approved_by" json:"approved_by"`
	ApprovedOn time.Time  `db:"approved_on" json:"approved_on"`
	StartDate  *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate    *time.Time `db:"end_date" json:"end_date,omitempty"`
}

// ProcessLog is a pipeline progress entry
type ProcessLog struct {
	ID        int64     `db:"id" json:"id"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
	Study     string    `db:"study" json:"study"`
	Region    string    `db:"region" json:"region"`
	Site      string    `db:"site" json:"site"`
	Product   string    `db:"product" json:"product"`
	State     string    `db:"state" json:"state"`
	Text      string    `db:"text" json:"text"`
}
