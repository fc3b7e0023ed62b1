package packets

// PushEntry is one card in a push. Dates are YYYY-MM-DD.
type PushEntry struct {
	ScheduleDate string  `json:"schedule_date"`
	Board        string  `json:"board_type"`
	Version      string  `json:"version"`
	Title        string  `json:"workout_title"`
	DateLabel    *string `json:"workout_date_label"`
	Content      string  `json:"html_content"`
}

type PushRequest struct {
	Entries []PushEntry `json:"entries" binding:"required"`
}

type EditRequest struct {
	Title     *string `json:"workout_title"`
	Content   *string `json:"html_content"`
	Version   *string `json:"version"`
	DateLabel *string `json:"workout_date_label"`
}

type CloneRequest struct {
	SourceDate string  `json:"source_date" binding:"required"`
	TargetDate string  `json:"target_date" binding:"required"`
	Board      *string `json:"board_type"`
}

type CloneWeekRequest struct {
	SourceWeekStart string `json:"source_week_start" binding:"required"`
	TargetWeekStart string `json:"target_week_start" binding:"required"`
}

type OverrideRequest struct {
	Board      string  `json:"board_type" binding:"required"`
	Content    *string `json:"html_content"`
	SourceDate *string `json:"source_date"`
	Reason     string  `json:"reason"`
}
