package core

import (
	"errors"
	"fmt"
)

var (
	ErrNoFaceDetected   = errors.New("no face detected in image")
	ErrImageUnavailable = errors.New("image could not be loaded")

	ErrUserNotFound          = errors.New("user not found")
	ErrFaceAlreadyRegistered = errors.New("user already has a registered face")
	ErrFaceNotRegistered     = errors.New("user has no registered face")
	ErrImageNotFound         = errors.New("image not found")
)

// MultipleFacesError is returned by single-face operations under the strict
// policy when the detector finds more than one face.
type MultipleFacesError struct {
	Count int
}

func (e *MultipleFacesError) Error() string {
	return fmt.Sprintf("expected exactly one face in image, detected %d", e.Count)
}
