package db

import "errors"

// ErrNotFound is the single not-found sentinel shared by every repository,
// memory and postgres alike.
var ErrNotFound = errors.New("not found")

// IgnoreErrNotFound swallows ErrNotFound for call sites where an absent
// record is a valid state rather than a failure.
func IgnoreErrNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
