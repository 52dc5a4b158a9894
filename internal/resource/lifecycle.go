// AngelaMos | 2026
// lifecycle.go

package resource

import "errors"

var (
	ErrAlreadyActive   = errors.New("already active")
	ErrAlreadyInactive = errors.New("already inactive")
)

// Entity is anything with an id and an activation flag.
type Entity interface {
	GetID() string
	Active() bool
}

// Reactivate validates the Inactive -> Active transition.
func Reactivate(e Entity) error {
	if e.Active() {
		return ErrAlreadyActive
	}
	return nil
}

// Deactivate validates the Active -> Inactive transition.
func Deactivate(e Entity) error {
	if !e.Active() {
		return ErrAlreadyInactive
	}
	return nil
}
