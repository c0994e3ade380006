package db

import (
	"context"
	"time"
)

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

type InsertDispatchParams struct {
	ChatID     string  `json:"chat_id"`
	TopicID    *string `json:"topic_id"`
	Part       int64   `json:"part"`
	Parts      int64   `json:"parts"`
	Length     int64   `json:"length"`
	Status     string  `json:"status"`
	StatusCode *int64  `json:"status_code"`
	Error      *string `json:"error"`
}

func (q *Queries) InsertDispatch(ctx context.Context, arg InsertDispatchParams) error {
	const stmt = `INSERT INTO dispatches (chat_id, topic_id, part, parts, length, status, status_code, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := q.db.ExecContext(ctx, stmt,
		arg.ChatID, arg.TopicID, arg.Part, arg.Parts, arg.Length, arg.Status, arg.StatusCode, arg.Error)
	return err
}

type Dispatch struct {
	ID         int64     `json:"id"`
	ChatID     string    `json:"chat_id"`
	TopicID    *string   `json:"topic_id"`
	Part       int64     `json:"part"`
	Parts      int64     `json:"parts"`
	Length     int64     `json:"length"`
	Status     string    `json:"status"`
	StatusCode *int64    `json:"status_code"`
	Error      *string   `json:"error"`
	CreatedAt  time.Time `json:"created_at"`
}

type ListRecentDispatchesParams struct {
	ChatID *string `json:"chat_id"`
	Limit  int64   `json:"limit"`
}

// ListRecentDispatches returns the newest rows first, optionally for one chat.
func (q *Queries) ListRecentDispatches(ctx context.Context, arg ListRecentDispatchesParams) ([]Dispatch, error) {
	const stmt = `SELECT id, chat_id, topic_id, part, parts, length, status, status_code, error, created_at
FROM dispatches
WHERE ?1 IS NULL OR chat_id = ?1
ORDER BY id DESC
LIMIT ?2`
	rows, err := q.db.QueryContext(ctx, stmt, arg.ChatID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Dispatch
	for rows.Next() {
		var r Dispatch
		if err := rows.Scan(&r.ID, &r.ChatID, &r.TopicID, &r.Part, &r.Parts, &r.Length,
			&r.Status, &r.StatusCode, &r.Error, &r.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

type CountDispatchesByStatusRow struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

func (q *Queries) CountDispatchesByStatus(ctx context.Context) ([]CountDispatchesByStatusRow, error) {
	const stmt = `SELECT status, COUNT(1) FROM dispatches GROUP BY status ORDER BY status`
	rows, err := q.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []CountDispatchesByStatusRow
	for rows.Next() {
		var r CountDispatchesByStatusRow
		if err := rows.Scan(&r.Status, &r.Count); err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}
