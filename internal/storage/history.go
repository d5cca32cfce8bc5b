package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pdfrenamer/internal/models"
)

// DefaultHistoryLimit caps ListBySession when no limit is given.
const DefaultHistoryLimit = 200

// History records the outcome of every processed upload. Only names and
// statuses are stored, never file content.
type History struct {
	db *sql.DB
}

func NewHistory(db *sql.DB) *History {
	return &History{db: db}
}

// Record appends rec and returns its id.
func (h *History) Record(ctx context.Context, rec models.HistoryRecord) (int64, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	res, err := h.db.ExecContext(ctx, `
		INSERT INTO rename_history (session_id, original_name, proposed_name, status, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.OriginalName, rec.ProposedName, string(rec.Status), rec.Reason, rec.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert history: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("history id: %w", err)
	}
	return id, nil
}

// ListBySession returns the newest records for sessionID first.
func (h *History) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.HistoryRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, session_id, original_name, proposed_name, status, reason, created_at
		FROM rename_history
		WHERE session_id = ?
		ORDER BY id DESC
		LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []models.HistoryRecord
	for rows.Next() {
		var rec models.HistoryRecord
		var status string
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.OriginalName, &rec.ProposedName, &status, &rec.Reason, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		rec.Status = models.HistoryStatus(status)
		out = append(out, rec)
	}
	return out, rows.Err()
}
