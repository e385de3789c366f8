package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"studioflow/internal/domain"
)

// Execer is satisfied by both *sql.DB and *sql.Tx so events can be written
// inside the same transaction as the entity change they describe, or on their own.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

// Append writes one event through ex. A nil ex uses the writer's DB.
func (w Writer) Append(ctx context.Context, ex Execer, evtType, entityKind, entityID string, payload EventPayload) (domain.Event, error) {
	if w.Now == nil {
		w.Now = time.Now
	}
	if ex == nil {
		ex = w.DB
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return domain.Event{}, fmt.Errorf("marshal event payload: %w", err)
	}
	res, err := ex.ExecContext(ctx, `INSERT INTO events(ts,type,entity_kind,entity_id,payload_json) VALUES (?,?,?,?,?)`,
		ts, evtType, nullable(entityKind), nullable(entityID), string(data))
	if err != nil {
		return domain.Event{}, fmt.Errorf("append %s: %w", evtType, err)
	}
	id, _ := res.LastInsertId()
	return domain.Event{ID: id, TS: ts, Type: evtType, EntityKind: entityKind, EntityID: entityID, Payload: string(data)}, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
