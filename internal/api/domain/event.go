package domain

import "time"

// JobEvent is one append-only audit record for a pipeline phase. Events are
// observational only; writing them must never affect the job itself.
type JobEvent struct {
	ID           string    `db:"id"`
	JobID        string    `db:"job_id"`
	EventType    string    `db:"event_type"`
	Message      string    `db:"message"`
	Metadata     []byte    `db:"metadata"`
	ErrorMessage string    `db:"error_message"`
	CreatedAt    time.Time `db:"created_at"`
}
