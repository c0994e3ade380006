package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/jehaby/teleboy"
	sqldb "github.com/jehaby/teleboy/internal/db"
	_ "github.com/mattn/go-sqlite3"
)

// openJournal opens the sqlite delivery journal and applies migrations.
func openJournal(dsn string) (*sql.DB, *sqldb.Queries, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	if err := sqldb.Migrate(db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, sqldb.New(db), nil
}

// journalRecorder stores every dispatched unit. Write failures are logged and
// never affect sending.
func journalRecorder(q *sqldb.Queries) teleboy.Recorder {
	return teleboy.RecorderFunc(func(ctx context.Context, d teleboy.Dispatch) {
		params := sqldb.InsertDispatchParams{
			ChatID: d.ChatID,
			Part:   int64(d.Part),
			Parts:  int64(d.Parts),
			Length: int64(d.Length),
			Status: sqldb.StatusSent,
		}
		if d.TopicID != "" {
			topic := d.TopicID
			params.TopicID = &topic
		}
		if d.Err != nil {
			params.Status = sqldb.StatusFailed
			msg := d.Err.Error()
			params.Error = &msg
			var se *teleboy.StatusError
			if errors.As(d.Err, &se) {
				code := int64(se.StatusCode)
				params.StatusCode = &code
			}
		}
		// short-lived context so a cancelled send still gets journaled
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := q.InsertDispatch(wctx, params); err != nil {
			slog.Error("journal insert failed", "chat_id", d.ChatID, "part", d.Part, "err", err)
		}
	})
}
