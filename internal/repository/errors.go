// Package repository holds the MySQL persistence of the venue: the
// guest-tracking tables read and written at the door, gift rules and
// awards, and staff accounts with their refresh tokens. The sentinel
// values below let higher layers distinguish failure scenarios.
package repository

import "errors"

// ErrNotFound is returned when the addressed event, record or guest list
// does not exist. Handlers translate it into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a check-in or check-out cannot be performed
// because of the record's current state, such as checking in a guest who
// is already inside or a roster guest whose list has concluded. Handlers
// translate it into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned when creating a staff account whose email is
// already registered.
var ErrEmailExists = errors.New("email already exists")
