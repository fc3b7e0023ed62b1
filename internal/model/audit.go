package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Action names an audited mutation.
type Action string

const (
	ActionPush                 Action = "push"
	ActionEdit                 Action = "edit"
	ActionDelete               Action = "delete"
	ActionClone                Action = "clone"
	ActionOverride             Action = "override"
	ActionOverrideClear        Action = "override-clear"
	ActionRotation             Action = "rotation"
	ActionSnapshotWriteFailed  Action = "snapshot-write-failed"
	ActionRotationBoardFailure Action = "rotation-board-failure"
)

var knownActions = map[Action]struct{}{
	ActionPush: {}, ActionEdit: {}, ActionDelete: {}, ActionClone: {},
	ActionOverride: {}, ActionOverrideClear: {}, ActionRotation: {},
	ActionSnapshotWriteFailed: {}, ActionRotationBoardFailure: {},
}

func (a Action) Valid() bool {
	_, ok := knownActions[a]
	return ok
}

// Details is the free-form JSON object attached to an audit record.
type Details map[string]any

func (d Details) Value() (driver.Value, error) {
	if d == nil {
		return "{}", nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (d *Details) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*d = Details{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into Details", src)
	}
	out := Details{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return err
		}
	}
	*d = out
	return nil
}

// AuditRecord is one append-only audit row.
type AuditRecord struct {
	ID           int64     `db:"id"            json:"id"`
	Action       Action    `db:"action"        json:"action"`
	Board        *Board    `db:"board"         json:"board_type,omitempty"`
	ScheduleDate *Date     `db:"schedule_date" json:"schedule_date,omitempty"`
	Details      Details   `db:"details"       json:"details"`
	Timestamp    time.Time `db:"timestamp"     json:"timestamp"`
	Actor        string    `db:"actor"         json:"actor"`
}
