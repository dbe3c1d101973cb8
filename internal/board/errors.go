package board

import "errors"

var (
	ErrInvalidStatus        = errors.New("invalid status")
	ErrInvalidTransition    = errors.New("invalid transition")
	ErrJobNotFound          = errors.New("job not found")
	ErrConfirmationRequired = errors.New("deleting a job requires a confirmation code")
	ErrConfirmationMismatch = errors.New("confirmation code does not match")
	ErrNoPending            = errors.New("no pending transition")
	ErrArtifactMissing      = errors.New("no artifact exists for the job yet")
	ErrEmptyEdit            = errors.New("edit changes nothing")
)
