package models

import "time"

// User is a chat participant. Signup and credential issuance live in the
// external auth service; this table only carries what the pipeline needs.
type User struct {
	ID        int64     `db:"id" json:"id"`
	Nickname  string    `db:"nickname" json:"nickname"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
