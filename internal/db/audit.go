package db

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
)

const auditColumns = `id, action, board, schedule_date, details, timestamp, actor`

// InsertAudit appends a record. The table has no update or delete path.
func (q *queries) InsertAudit(ctx context.Context, rec *model.AuditRecord) error {
	var board *string
	if rec.Board != nil {
		b := string(*rec.Board)
		board = &b
	}
	err := q.get(ctx, &rec.ID, `
	INSERT INTO audit_log (action, board, schedule_date, details, timestamp, actor)
	VALUES (?, ?, ?, ?, ?, ?)
	RETURNING id`,
		string(rec.Action), board, rec.ScheduleDate, rec.Details, utc(rec.Timestamp), rec.Actor,
	)
	if err != nil {
		log.Error().Err(err).Str("action", string(rec.Action)).Msg("InsertAudit failed")
		return err
	}
	return nil
}

func auditWhere(f AuditFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.Action != nil {
		clauses = append(clauses, "action = ?")
		args = append(args, string(*f.Action))
	}
	if f.Board != nil {
		clauses = append(clauses, "board = ?")
		args = append(args, string(*f.Board))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// ListAudit returns records newest first. Ids follow insertion order, so they
// break timestamp ties and give a total order.
func (q *queries) ListAudit(ctx context.Context, f AuditFilter) ([]model.AuditRecord, error) {
	where, args := auditWhere(f)
	query := `SELECT ` + auditColumns + ` FROM audit_log` + where + ` ORDER BY id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}
	out := []model.AuditRecord{}
	if err := q.sel(ctx, &out, query, args...); err != nil {
		log.Error().Err(err).Msg("ListAudit failed")
		return nil, err
	}
	return out, nil
}

func (q *queries) CountAudit(ctx context.Context, f AuditFilter) (int, error) {
	where, args := auditWhere(f)
	var n int
	if err := q.get(ctx, &n, `SELECT COUNT(*) FROM audit_log`+where, args...); err != nil {
		log.Error().Err(err).Msg("CountAudit failed")
		return 0, err
	}
	return n, nil
}
