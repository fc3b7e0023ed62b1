package packets

import (
	"time"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/rotation"
)

type PushResponse struct {
	Status    string                `json:"status"`
	Scheduled int                   `json:"scheduled"`
	Entries   []model.ScheduleEntry `json:"entries"`
}

type EditResponse struct {
	Status string               `json:"status"`
	Entry  *model.ScheduleEntry `json:"entry"`
}

type DeleteResponse struct {
	Status  string     `json:"status"`
	Deleted int        `json:"deleted"`
	Date    model.Date `json:"date"`
}

type CloneResponse struct {
	Status  string                `json:"status"`
	Cloned  int                   `json:"cloned"`
	Days    []model.Date          `json:"days,omitempty"`
	Entries []model.ScheduleEntry `json:"entries"`
}

type OverrideResponse struct {
	Status   string          `json:"status"`
	Override *model.Override `json:"override"`
}

type ClearOverrideResponse struct {
	Status string      `json:"status"`
	Board  model.Board `json:"board_type"`
}

// BoardStatus is what one board is showing according to the server.
type BoardStatus struct {
	Resolved *model.ResolvedState `json:"resolved,omitempty"`
	Override *model.Override      `json:"override,omitempty"`
}

type StatusResponse struct {
	Boards         map[model.Board]BoardStatus `json:"boards"`
	NextRotationAt time.Time                   `json:"next_rotation_at"`
	LastRotation   *model.Rotation             `json:"last_rotation,omitempty"`
	RotationState  rotation.State              `json:"rotation_state"`
	ServerTime     time.Time                   `json:"server_time"`
}

type RotateResponse struct {
	Status   string          `json:"status"`
	Skipped  string          `json:"skipped,omitempty"`
	Rotation *model.Rotation `json:"rotation,omitempty"`
}
