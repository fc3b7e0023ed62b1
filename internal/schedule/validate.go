package schedule

import (
	"strings"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/apperr"
	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
)

// MaxPushDays bounds both the number of distinct dates in one push and the
// calendar span they cover.
const MaxPushDays = 31

// EntryInput is one card in a push request.
type EntryInput struct {
	Date      model.Date
	Board     model.Board
	Version   model.Version
	Title     string
	DateLabel *string
	Content   string
}

// validatePush checks every entry before anything is written. Errors carry
// the index of the first offending entry.
func (s *Service) validatePush(inputs []EntryInput) ([]EntryInput, error) {
	if len(inputs) == 0 {
		return nil, apperr.Validation("push must contain at least one entry")
	}
	today := s.Today()
	out := make([]EntryInput, len(inputs))
	dates := make(map[model.Date]struct{}, len(inputs))
	var first, last model.Date

	for i, in := range inputs {
		if in.Date.IsZero() {
			return nil, apperr.ValidationAt(i, "schedule_date is required")
		}
		if in.Date.Before(today) {
			return nil, apperr.ValidationAt(i, "%s is in the past (today is %s)", in.Date, today)
		}
		if !s.catalog.HasBoard(in.Board) {
			return nil, apperr.ValidationAt(i, "unknown board %q", in.Board)
		}
		if in.Version == "" {
			in.Version = s.catalog.DefaultVersion(in.Board)
		}
		if !s.catalog.HasVersion(in.Version) {
			return nil, apperr.ValidationAt(i, "unknown version %q", in.Version)
		}
		in.Title = strings.TrimSpace(in.Title)
		if in.Title == "" {
			return nil, apperr.ValidationAt(i, "workout_title is required")
		}
		if strings.TrimSpace(in.Content) == "" {
			return nil, apperr.ValidationAt(i, "html_content is required")
		}

		if _, seen := dates[in.Date]; !seen {
			dates[in.Date] = struct{}{}
			if len(dates) > MaxPushDays {
				return nil, apperr.ValidationAt(i, "push covers more than %d distinct dates", MaxPushDays)
			}
		}
		if i == 0 || in.Date.Before(first) {
			first = in.Date
		}
		if i == 0 || in.Date.After(last) {
			last = in.Date
		}
		if first.DaysUntil(last) >= MaxPushDays {
			return nil, apperr.ValidationAt(i, "push spans more than %d days (%s to %s)", MaxPushDays, first, last)
		}
		out[i] = in
	}
	return out, nil
}

func (s *Service) validateVersion(v model.Version) error {
	if !s.catalog.HasVersion(v) {
		return apperr.Validation("unknown version %q", v)
	}
	return nil
}

func (s *Service) validateBoard(b model.Board) error {
	if !s.catalog.HasBoard(b) {
		return apperr.Validation("unknown board %q", b)
	}
	return nil
}
