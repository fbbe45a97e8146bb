// Package models - draft.go defines the Draft model for report documents awaiting QA review.
package models

import "time"

// Draft is a report PDF pending QA approval. Drafts are created by the upload pipeline;
// the dashboard only reads them and flips Locked once an approval is recorded.
type Draft struct {
	ID        int64      `db:"id" json:"id"`
	Filename  string     `db:"filename" json:"filename"`
	Region    string     `db:"region" json:"region"`
	Site      string     `db:"site" json:"site"`
	StudyID   *string    `db:"study_id" json:"study_id,omitempty"`
	Batch     *string    `db:"batch" json:"batch,omitempty"`
	Product   *string    `db:"product" json:"product,omitempty"`
	StartDate *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate   *time.Time `db:"end_date" json:"end_date,omitempty"`
	Locked    bool       `db:"locked" json:"locked"`
	CreatedOn time.Time  `db:"created_on" json:"created_on"`
}

// Label returns the study ID when known, otherwise "Draft", followed by the filename
func (d *Draft) Label() string {
	study := "Draft"
	if d.StudyID != nil && *d.StudyID != "" {
		study = *d.StudyID
	}
	return study + " - " + d.Filename
}
