// Package models defines the persisted records shared by the stores and handlers.
package models

import "time"

// User is the application-side profile for an authenticated subject.
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email,omitempty"`
	Name      string    `db:"name" json:"name,omitempty"`
	LastLogin time.Time `db:"last_login" json:"lastLogin"`
}
