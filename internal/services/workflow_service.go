package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"fiscaal-rapportage/internal/models"
)

// WorkflowService drives the stage pipeline of a dossier: gating, stage and
// substep runs, manual edits and the concept version history.
type WorkflowService struct {
	store DossierStore
	ai    Completer
}

// NewWorkflowService creates a new workflow service
func NewWorkflowService(store DossierStore, ai Completer) *WorkflowService {
	return &WorkflowService{store: store, ai: ai}
}

// GetDossier loads a dossier or returns ErrNotFound
func (s *WorkflowService) GetDossier(ctx context.Context, id string) (*models.Dossier, error) {
	dossier, err := s.store.GetDossier(ctx, id)
	if err != nil {
		return nil, err
	}
	if dossier == nil {
		return nil, fmt.Errorf("%w: dossier %s", ErrNotFound, id)
	}
	return dossier, nil
}

// RunStage executes one pipeline stage. For reviewer stages this runs the
// review substep; the verwerking substep is a separate call.
func (s *WorkflowService) RunStage(ctx context.Context, dossierID, stageKey string) (*models.Dossier, *models.StageResult, error) {
	stage, ok := models.StageByKey(stageKey)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownStage, stageKey)
	}

	dossier, err := s.GetDossier(ctx, dossierID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.checkRunnable(dossier, stage); err != nil {
		return nil, nil, err
	}

	previousStatus := dossier.Status
	if err := s.markProcessing(ctx, dossier); err != nil {
		return nil, nil, err
	}

	systemPrompt, userPrompt := buildStagePrompts(stage, dossier)
	completion, err := s.ai.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		s.restoreStatus(ctx, dossier, previousStatus)
		return nil, nil, fmt.Errorf("stage %s failed: %w", stageKey, err)
	}

	result := resultFromCompletion(completion)
	s.storeStageResult(dossier, stage, result)

	if models.ConceptBearing(stage.Key) {
		appendConceptVersion(dossier, stage.Key, result.Content)
	}

	dossier.Status = previousStatus
	if stage.Key == models.StageEindcontrole {
		dossier.Status = models.DossierStatusGenerated
	}
	dossier.UpdatedAt = time.Now().UTC()

	// Persist even if the caller's context died during the AI call
	if err := s.store.UpdateDossier(context.WithoutCancel(ctx), dossier); err != nil {
		return nil, nil, err
	}
	return dossier, &result, nil
}

// RunSubstep executes one substep of a reviewer stage
func (s *WorkflowService) RunSubstep(ctx context.Context, dossierID, stageKey, substep string) (*models.Dossier, *models.StageResult, error) {
	stage, ok := models.StageByKey(stageKey)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownStage, stageKey)
	}
	if !stage.HasSubstep(substep) {
		return nil, nil, fmt.Errorf("%w: %s/%s", ErrUnknownSubstep, stageKey, substep)
	}

	dossier, err := s.GetDossier(ctx, dossierID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.checkRunnable(dossier, stage); err != nil {
		return nil, nil, err
	}
	// Feedback processing needs the review result first
	if substep == models.SubstepVerwerking {
		if _, ok := dossier.SubstepResult(stageKey, models.SubstepReview); !ok {
			return nil, nil, fmt.Errorf("%w: %s has no review result", ErrStageNotReady, stageKey)
		}
	}

	previousStatus := dossier.Status
	if err := s.markProcessing(ctx, dossier); err != nil {
		return nil, nil, err
	}

	systemPrompt, userPrompt := buildSubstepPrompts(stage, substep, dossier)
	completion, err := s.ai.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		s.restoreStatus(ctx, dossier, previousStatus)
		return nil, nil, fmt.Errorf("substep %s/%s failed: %w", stageKey, substep, err)
	}

	result := resultFromCompletion(completion)
	if substep == models.SubstepReview {
		// The review substep doubles as the stage result for gating
		s.storeStageResult(dossier, stage, result)
	} else {
		setSubstepResult(dossier, stageKey, substep, result)
		// Feedback processing rewrites the concept report
		appendConceptVersion(dossier, stageKey, result.Content)
	}

	dossier.Status = previousStatus
	dossier.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateDossier(context.WithoutCancel(ctx), dossier); err != nil {
		return nil, nil, err
	}
	return dossier, &result, nil
}

// EditStageResult replaces a stage result with hand-edited text. The stage
// must be enabled; an absent result may be created this way, skipping the AI.
func (s *WorkflowService) EditStageResult(ctx context.Context, dossierID, stageKey, content string) (*models.Dossier, *models.StageResult, error) {
	stage, ok := models.StageByKey(stageKey)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownStage, stageKey)
	}

	dossier, err := s.GetDossier(ctx, dossierID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.checkRunnable(dossier, stage); err != nil {
		return nil, nil, err
	}

	result := models.StageResult{
		Content:     content,
		GeneratedAt: time.Now().UTC(),
		Manual:      true,
	}
	s.storeStageResult(dossier, stage, result)

	if models.ConceptBearing(stage.Key) {
		appendConceptVersion(dossier, models.VersionSourceManual, content)
	}
	dossier.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateDossier(ctx, dossier); err != nil {
		return nil, nil, err
	}
	return dossier, &result, nil
}

// Versions returns the concept version history of a dossier
func (s *WorkflowService) Versions(ctx context.Context, dossierID string) ([]models.ConceptVersion, error) {
	dossier, err := s.GetDossier(ctx, dossierID)
	if err != nil {
		return nil, err
	}
	return dossier.ConceptVersions, nil
}

// RestoreVersion makes an older concept version current by appending a new
// snapshot with its content. History is never truncated.
func (s *WorkflowService) RestoreVersion(ctx context.Context, dossierID string, number int) (*models.Dossier, error) {
	dossier, err := s.GetDossier(ctx, dossierID)
	if err != nil {
		return nil, err
	}
	if dossier.Status == models.DossierStatusArchived {
		return nil, ErrDossierArchived
	}

	var content string
	found := false
	for _, version := range dossier.ConceptVersions {
		if version.Number == number {
			content = version.Content
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: concept version %d", ErrNotFound, number)
	}

	appendConceptVersion(dossier, models.VersionSourceRestore, content)
	dossier.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateDossier(ctx, dossier); err != nil {
		return nil, err
	}
	return dossier, nil
}

// checkRunnable enforces the linear gating invariant for a stage
func (s *WorkflowService) checkRunnable(dossier *models.Dossier, stage models.WorkflowStage) error {
	if dossier.Status == models.DossierStatusArchived {
		return ErrDossierArchived
	}
	index := models.StageIndex(stage.Key)
	for _, earlier := range models.WorkflowStages()[:index] {
		if !dossier.HasStageResult(earlier.Key) {
			return fmt.Errorf("%w: %s requires %s", ErrStageNotReady, stage.Key, earlier.Key)
		}
	}
	return nil
}

func (s *WorkflowService) markProcessing(ctx context.Context, dossier *models.Dossier) error {
	dossier.Status = models.DossierStatusProcessing
	dossier.UpdatedAt = time.Now().UTC()
	return s.store.UpdateDossier(ctx, dossier)
}

func (s *WorkflowService) restoreStatus(ctx context.Context, dossier *models.Dossier, status models.DossierStatus) {
	// The run may have failed because ctx was cancelled; the restore write
	// must still reach the store or the dossier stays stuck in processing
	ctx = context.WithoutCancel(ctx)
	dossier.Status = status
	dossier.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateDossier(ctx, dossier); err != nil {
		log.Printf("WARNING: failed to restore dossier %s status: %v", dossier.ID, err)
	}
}

// storeStageResult stores a stage result, resetting substep results on re-run
func (s *WorkflowService) storeStageResult(dossier *models.Dossier, stage models.WorkflowStage, result models.StageResult) {
	if dossier.StageResults == nil {
		dossier.StageResults = make(map[string]models.StageResult)
	}
	dossier.StageResults[stage.Key] = result

	if stage.Type == models.StageTypeReviewer {
		// A fresh review invalidates earlier substep results for this stage
		setSubstepResult(dossier, stage.Key, models.SubstepReview, result)
		delete(dossier.SubstepResults[stage.Key], models.SubstepVerwerking)
	}
}

func setSubstepResult(dossier *models.Dossier, stageKey, substep string, result models.StageResult) {
	if dossier.SubstepResults == nil {
		dossier.SubstepResults = make(map[string]map[string]models.StageResult)
	}
	if dossier.SubstepResults[stageKey] == nil {
		dossier.SubstepResults[stageKey] = make(map[string]models.StageResult)
	}
	dossier.SubstepResults[stageKey][substep] = result
}

// appendConceptVersion snapshots the concept report text
func appendConceptVersion(dossier *models.Dossier, source, content string) models.ConceptVersion {
	version := models.ConceptVersion{
		Number:    len(dossier.ConceptVersions) + 1,
		Source:    source,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	dossier.ConceptVersions = append(dossier.ConceptVersions, version)
	return version
}

func resultFromCompletion(completion *CompletionResult) models.StageResult {
	return models.StageResult{
		Content:          completion.Text,
		Model:            completion.Model,
		PromptTokens:     completion.PromptTokens,
		CompletionTokens: completion.CompletionTokens,
		DurationMs:       completion.DurationMs,
		GeneratedAt:      time.Now().UTC(),
	}
}
