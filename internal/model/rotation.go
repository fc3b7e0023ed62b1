package model

import "time"

// Rotation records one daily cutover; one row per rotation day.
type Rotation struct {
	RotationDate     Date       `db:"rotation_date"     json:"rotation_date"`
	RunID            string     `db:"run_id"            json:"run_id"`
	Boundary         time.Time  `db:"boundary"          json:"boundary"`
	StartedAt        time.Time  `db:"started_at"        json:"started_at"`
	FinishedAt       *time.Time `db:"finished_at"       json:"finished_at,omitempty"`
	Committed        int        `db:"committed"         json:"committed"`
	Skipped          int        `db:"skipped"           json:"skipped"`
	Failed           int        `db:"failed"            json:"failed"`
	ClearedOverrides int        `db:"cleared_overrides" json:"cleared_overrides"`
}
