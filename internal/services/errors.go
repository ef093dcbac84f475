package services

import "errors"

var (
	// ErrNotFound indicates the requested dossier or job does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnknownStage indicates the stage key is not part of the pipeline.
	ErrUnknownStage = errors.New("unknown workflow stage")

	// ErrUnknownSubstep indicates the stage does not define the substep.
	ErrUnknownSubstep = errors.New("unknown stage substep")

	// ErrStageNotReady indicates an earlier stage has no result yet.
	ErrStageNotReady = errors.New("stage not ready: earlier stages incomplete")

	// ErrDossierArchived indicates the dossier is archived and read-only.
	ErrDossierArchived = errors.New("dossier is archived")

	// ErrNoConcept indicates no concept report has been generated yet.
	ErrNoConcept = errors.New("no concept report available")

	// ErrJobActive indicates the dossier already has a running express job.
	ErrJobActive = errors.New("express job already active for dossier")

	// ErrJobFinished indicates the express job already reached a terminal state.
	ErrJobFinished = errors.New("express job already finished")

	// ErrNothingToRun indicates every pipeline stage already has a result.
	ErrNothingToRun = errors.New("all stages already completed")

	// ErrProviderUnavailable indicates the AI provider is unreachable.
	ErrProviderUnavailable = errors.New("ai provider unavailable")

	// ErrProviderTimeout indicates the AI request exceeded the configured timeout.
	ErrProviderTimeout = errors.New("ai request timed out")

	// ErrInvalidOutput indicates the AI response could not be parsed into the
	// expected structured format.
	ErrInvalidOutput = errors.New("invalid ai output format")

	// ErrRetryExhausted indicates all retry attempts have been exhausted.
	ErrRetryExhausted = errors.New("ai retry attempts exhausted")
)
