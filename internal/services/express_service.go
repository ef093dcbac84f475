package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"fiscaal-rapportage/internal/models"
	"fiscaal-rapportage/internal/utils"
)

// ExpressService manages express-mode batch jobs: it runs the remaining
// stages of a dossier in the background with auto-accepted reviewer feedback,
// and fans progress out to polling clients and SSE subscribers.
type ExpressService struct {
	workflow *WorkflowService
	store    DossierStore

	mu          sync.RWMutex
	jobs        map[string]*models.ExpressJob
	cancels     map[string]context.CancelFunc
	subscribers map[string][]chan models.ProgressEvent
}

// NewExpressService creates a new express service
func NewExpressService(workflow *WorkflowService, store DossierStore) *ExpressService {
	return &ExpressService{
		workflow:    workflow,
		store:       store,
		jobs:        make(map[string]*models.ExpressJob),
		cancels:     make(map[string]context.CancelFunc),
		subscribers: make(map[string][]chan models.ProgressEvent),
	}
}

// Start creates a job for the dossier's remaining stages and runs it in the
// background. Returns ErrJobActive when a job is already running for the
// dossier and ErrNothingToRun when the pipeline is complete.
func (s *ExpressService) Start(ctx context.Context, dossierID string) (*models.ExpressJob, error) {
	dossier, err := s.workflow.GetDossier(ctx, dossierID)
	if err != nil {
		return nil, err
	}
	if dossier.Status == models.DossierStatusArchived {
		return nil, ErrDossierArchived
	}

	remaining := dossier.RemainingStages()
	if len(remaining) == 0 {
		return nil, ErrNothingToRun
	}

	s.mu.Lock()
	for _, job := range s.jobs {
		if job.DossierID == dossierID && !job.Status.Finished() {
			s.mu.Unlock()
			return nil, ErrJobActive
		}
	}

	job := &models.ExpressJob{
		ID:        utils.GenerateUUID(),
		DossierID: dossierID,
		Status:    models.JobStatusPending,
		StartedAt: time.Now().UTC(),
	}
	for _, stage := range remaining {
		job.Stages = append(job.Stages, models.StageProgress{
			StageKey: stage.Key,
			Status:   models.StepStatusPending,
		})
		if stage.Type == models.StageTypeReviewer {
			job.Stages = append(job.Stages, models.StageProgress{
				StageKey: stage.Key,
				Substep:  models.SubstepVerwerking,
				Status:   models.StepStatusPending,
			})
		}
	}

	jobCtx, cancel := context.WithCancel(context.Background())
	s.jobs[job.ID] = job
	s.cancels[job.ID] = cancel
	s.mu.Unlock()

	// Remember the job on the dossier for the dashboard
	dossier.ExpressJobID = job.ID
	dossier.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateDossier(ctx, dossier); err != nil {
		log.Printf("WARNING: failed to record express job on dossier %s: %v", dossierID, err)
	}

	go s.run(jobCtx, job.ID, dossierID, remaining)

	return s.snapshot(job.ID), nil
}

// Get returns a snapshot of a job, or ErrNotFound
func (s *ExpressService) Get(jobID string) (*models.ExpressJob, error) {
	job := s.snapshot(jobID)
	if job == nil {
		return nil, fmt.Errorf("%w: express job %s", ErrNotFound, jobID)
	}
	return job, nil
}

// Cancel aborts a running job. Stages that already completed keep their
// results on the dossier.
func (s *ExpressService) Cancel(jobID string) error {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: express job %s", ErrNotFound, jobID)
	}
	if job.Status.Finished() {
		s.mu.Unlock()
		return ErrJobFinished
	}
	cancel := s.cancels[jobID]
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

// Subscribe registers an SSE subscriber for a job's progress events. The
// returned function unsubscribes and must be called when the client is gone.
func (s *ExpressService) Subscribe(jobID string) (<-chan models.ProgressEvent, func()) {
	ch := make(chan models.ProgressEvent, 16)

	s.mu.Lock()
	s.subscribers[jobID] = append(s.subscribers[jobID], ch)
	s.mu.Unlock()

	unsubscribe := func() {
		s.mu.Lock()
		subs := s.subscribers[jobID]
		for i, sub := range subs {
			if sub == ch {
				s.subscribers[jobID] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
	}
	return ch, unsubscribe
}

// PurgeFinished removes finished jobs older than ttl from the registry and
// returns them so the caller can archive them.
func (s *ExpressService) PurgeFinished(ttl time.Duration) []*models.ExpressJob {
	cutoff := time.Now().UTC().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	var purged []*models.ExpressJob
	for id, job := range s.jobs {
		if job.Status.Finished() && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			purged = append(purged, job)
			delete(s.jobs, id)
			delete(s.cancels, id)
			delete(s.subscribers, id)
		}
	}
	return purged
}

// run executes the remaining stages in pipeline order
func (s *ExpressService) run(ctx context.Context, jobID, dossierID string, remaining []models.WorkflowStage) {
	s.setJobStatus(jobID, models.JobStatusProcessing, "")

	for _, stage := range remaining {
		if ctx.Err() != nil {
			s.finish(jobID, models.JobStatusCancelled, "")
			return
		}

		s.setStepStatus(jobID, stage.Key, "", models.StepStatusRunning)
		_, _, err := s.workflow.RunStage(ctx, dossierID, stage.Key)
		if err != nil {
			if ctx.Err() != nil {
				s.setStepStatus(jobID, stage.Key, "", models.StepStatusSkipped)
				s.finish(jobID, models.JobStatusCancelled, "")
				return
			}
			s.setStepStatusError(jobID, stage.Key, "", err.Error())
			s.finish(jobID, models.JobStatusFailed, fmt.Sprintf("stage %s: %v", stage.Key, err))
			return
		}
		s.setStepStatus(jobID, stage.Key, "", models.StepStatusCompleted)

		// Express mode auto-accepts reviewer feedback: run verwerking directly
		if stage.Type == models.StageTypeReviewer {
			if ctx.Err() != nil {
				s.finish(jobID, models.JobStatusCancelled, "")
				return
			}
			s.setStepStatus(jobID, stage.Key, models.SubstepVerwerking, models.StepStatusRunning)
			_, _, err := s.workflow.RunSubstep(ctx, dossierID, stage.Key, models.SubstepVerwerking)
			if err != nil {
				if ctx.Err() != nil {
					s.setStepStatus(jobID, stage.Key, models.SubstepVerwerking, models.StepStatusSkipped)
					s.finish(jobID, models.JobStatusCancelled, "")
					return
				}
				s.setStepStatusError(jobID, stage.Key, models.SubstepVerwerking, err.Error())
				s.finish(jobID, models.JobStatusFailed, fmt.Sprintf("substep %s/%s: %v", stage.Key, models.SubstepVerwerking, err))
				return
			}
			s.setStepStatus(jobID, stage.Key, models.SubstepVerwerking, models.StepStatusCompleted)
		}
	}

	s.finish(jobID, models.JobStatusCompleted, "")
}

func (s *ExpressService) setJobStatus(jobID string, status models.JobStatus, errMsg string) {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if !ok {
		s.mu.Unlock()
		return
	}
	job.Status = status
	job.Error = errMsg
	event := models.ProgressEvent{JobID: jobID, JobStatus: status, Error: errMsg}
	s.mu.Unlock()

	s.publish(jobID, event)
}

func (s *ExpressService) setStepStatus(jobID, stageKey, substep string, status models.StepStatus) {
	s.updateStep(jobID, stageKey, substep, status, "")
}

func (s *ExpressService) setStepStatusError(jobID, stageKey, substep, errMsg string) {
	s.updateStep(jobID, stageKey, substep, models.StepStatusFailed, errMsg)
}

func (s *ExpressService) updateStep(jobID, stageKey, substep string, status models.StepStatus, errMsg string) {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if !ok {
		s.mu.Unlock()
		return
	}
	for i := range job.Stages {
		if job.Stages[i].StageKey == stageKey && job.Stages[i].Substep == substep {
			job.Stages[i].Status = status
			job.Stages[i].Error = errMsg
			break
		}
	}
	event := models.ProgressEvent{
		JobID:     jobID,
		JobStatus: job.Status,
		StageKey:  stageKey,
		Substep:   substep,
		Status:    status,
		Error:     errMsg,
	}
	s.mu.Unlock()

	s.publish(jobID, event)
}

// finish marks the job terminal, leaves untouched steps as skipped and closes
// all subscriber channels
func (s *ExpressService) finish(jobID string, status models.JobStatus, errMsg string) {
	now := time.Now().UTC()

	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if !ok {
		s.mu.Unlock()
		return
	}
	job.Status = status
	job.Error = errMsg
	job.FinishedAt = &now
	for i := range job.Stages {
		if job.Stages[i].Status == models.StepStatusPending {
			job.Stages[i].Status = models.StepStatusSkipped
		}
	}
	if cancel, ok := s.cancels[jobID]; ok {
		cancel()
		delete(s.cancels, jobID)
	}
	subs := s.subscribers[jobID]
	delete(s.subscribers, jobID)
	event := models.ProgressEvent{JobID: jobID, JobStatus: status, Error: errMsg}
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
			// Full buffer: drop the oldest event so the terminal one fits
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- event:
			default:
			}
		}
		close(ch)
	}
	log.Printf("express job %s finished with status %s", jobID, status)
}

func (s *ExpressService) publish(jobID string, event models.ProgressEvent) {
	s.mu.RLock()
	subs := make([]chan models.ProgressEvent, len(s.subscribers[jobID]))
	copy(subs, s.subscribers[jobID])
	s.mu.RUnlock()

	for _, ch := range subs {
		// Drop events for slow subscribers instead of blocking the runner
		select {
		case ch <- event:
		default:
		}
	}
}

// snapshot returns a copy of the job safe for concurrent readers
func (s *ExpressService) snapshot(jobID string) *models.ExpressJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil
	}
	copied := *job
	copied.Stages = make([]models.StageProgress, len(job.Stages))
	copy(copied.Stages, job.Stages)
	if job.FinishedAt != nil {
		finished := *job.FinishedAt
		copied.FinishedAt = &finished
	}
	return &copied
}
