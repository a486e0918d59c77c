package state

import (
	"errors"
	"fmt"
)

var (
	ErrChoiceNotFound    = errors.New("choice not found")
	ErrChoiceUnavailable = errors.New("choice unavailable")
	ErrBattleInProgress  = errors.New("battle still in progress")
	ErrSnapshotInvalid   = errors.New("invalid snapshot")
)

// ChoiceNotFoundError reports a choice id that the current scene does not
// declare. It matches ErrChoiceNotFound.
type ChoiceNotFoundError struct {
	SceneID  string
	ChoiceID int
}

func (e *ChoiceNotFoundError) Error() string {
	return fmt.Sprintf("choice %d not found in scene %q", e.ChoiceID, e.SceneID)
}

func (e *ChoiceNotFoundError) Unwrap() error {
	return ErrChoiceNotFound
}
