package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiscaal-rapportage/internal/models"
)

func newWorkflowFixture(t *testing.T) (*WorkflowService, *MemStore, *fakeCompleter, *models.Dossier) {
	t.Helper()
	store := NewMemStore()
	ai := &fakeCompleter{}
	workflow := NewWorkflowService(store, ai)
	dossier := newTestDossier(t, store)
	return workflow, store, ai, dossier
}

func TestRunStageUnknownKey(t *testing.T) {
	workflow, _, _, dossier := newWorkflowFixture(t)
	_, _, err := workflow.RunStage(context.Background(), dossier.ID, "loonheffing_review")
	assert.ErrorIs(t, err, ErrUnknownStage)
}

func TestRunStageDossierNotFound(t *testing.T) {
	workflow, _, _, _ := newWorkflowFixture(t)
	_, _, err := workflow.RunStage(context.Background(), "onbekend", models.StageInformatiecheck)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRunStageGating(t *testing.T) {
	workflow, _, _, dossier := newWorkflowFixture(t)

	// Concept report requires the two checks first
	_, _, err := workflow.RunStage(context.Background(), dossier.ID, models.StageConceptrapport)
	require.ErrorIs(t, err, ErrStageNotReady)
	assert.Contains(t, err.Error(), models.StageInformatiecheck)
}

func TestRunStageStoresResult(t *testing.T) {
	workflow, store, ai, dossier := newWorkflowFixture(t)
	ai.respond = func(_, userPrompt string) (string, error) {
		assert.Contains(t, userPrompt, dossier.Intake)
		return "De informatie is volledig.", nil
	}

	updated, result, err := workflow.RunStage(context.Background(), dossier.ID, models.StageInformatiecheck)
	require.NoError(t, err)
	assert.Equal(t, "De informatie is volledig.", result.Content)
	assert.Equal(t, "test-model", result.Model)
	assert.False(t, result.Manual)

	// Status goes back to draft after the run; no concept version yet
	assert.Equal(t, models.DossierStatusDraft, updated.Status)
	assert.Empty(t, updated.ConceptVersions)

	stored, err := store.GetDossier(context.Background(), dossier.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasStageResult(models.StageInformatiecheck))
}

func TestRunStageFailureRestoresStatus(t *testing.T) {
	workflow, store, ai, dossier := newWorkflowFixture(t)
	ai.respond = func(_, _ string) (string, error) {
		return "", errors.New("provider kapot")
	}

	_, _, err := workflow.RunStage(context.Background(), dossier.ID, models.StageInformatiecheck)
	require.Error(t, err)

	stored, err := store.GetDossier(context.Background(), dossier.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DossierStatusDraft, stored.Status)
	assert.False(t, stored.HasStageResult(models.StageInformatiecheck))
}

func TestRunStageCancelledStillRestoresStatus(t *testing.T) {
	store := &ctxCheckedStore{MemStore: NewMemStore()}
	ai := &fakeCompleter{}
	workflow := NewWorkflowService(store, ai)
	dossier := newTestDossier(t, store)

	// The AI call fails because the request context was cancelled mid-run
	ctx, cancel := context.WithCancel(context.Background())
	ai.respond = func(_, _ string) (string, error) {
		cancel()
		return "", ctx.Err()
	}

	_, _, err := workflow.RunStage(ctx, dossier.ID, models.StageInformatiecheck)
	require.Error(t, err)

	// The status restore must go through even though ctx is dead, otherwise
	// the dossier is stuck in processing
	stored, err := store.GetDossier(context.Background(), dossier.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DossierStatusDraft, stored.Status)
	assert.False(t, stored.HasStageResult(models.StageInformatiecheck))
}

func TestConceptStageSnapshotsVersion(t *testing.T) {
	workflow, _, ai, dossier := newWorkflowFixture(t)
	ai.respond = func(systemPrompt, _ string) (string, error) {
		if strings.Contains(systemPrompt, "concept-adviesrapport op") {
			return "Conceptrapport versie een.", nil
		}
		return "ok", nil
	}

	completeStagesThrough(t, workflow, dossier.ID, models.StageConceptrapport)

	updated, err := workflow.GetDossier(context.Background(), dossier.ID)
	require.NoError(t, err)
	require.Len(t, updated.ConceptVersions, 1)
	assert.Equal(t, 1, updated.ConceptVersions[0].Number)
	assert.Equal(t, models.StageConceptrapport, updated.ConceptVersions[0].Source)
	assert.Equal(t, "Conceptrapport versie een.", updated.CurrentConcept())
}

func TestReviewerStageAndVerwerking(t *testing.T) {
	workflow, _, ai, dossier := newWorkflowFixture(t)
	completeStagesThrough(t, workflow, dossier.ID, models.StageConceptrapport)

	// Stage-level run performs the review substep
	ai.respond = func(_, _ string) (string, error) { return "1. Controleer de BTW-vrijstelling.", nil }
	updated, _, err := workflow.RunStage(context.Background(), dossier.ID, models.StageBTWReview)
	require.NoError(t, err)
	review, ok := updated.SubstepResult(models.StageBTWReview, models.SubstepReview)
	require.True(t, ok)
	assert.Equal(t, "1. Controleer de BTW-vrijstelling.", review.Content)
	assert.True(t, updated.HasStageResult(models.StageBTWReview))

	// Verwerking rewrites the concept and snapshots a new version
	ai.respond = func(_, userPrompt string) (string, error) {
		assert.Contains(t, userPrompt, "BTW-vrijstelling")
		return "Herzien rapport na BTW-review.", nil
	}
	updated, _, err = workflow.RunSubstep(context.Background(), dossier.ID, models.StageBTWReview, models.SubstepVerwerking)
	require.NoError(t, err)
	_, ok = updated.SubstepResult(models.StageBTWReview, models.SubstepVerwerking)
	assert.True(t, ok)
	require.Len(t, updated.ConceptVersions, 2)
	assert.Equal(t, models.StageBTWReview, updated.ConceptVersions[1].Source)
	assert.Equal(t, "Herzien rapport na BTW-review.", updated.CurrentConcept())

	// A fresh review invalidates the processed feedback
	ai.respond = func(_, _ string) (string, error) { return "Nieuwe feedbackronde.", nil }
	updated, _, err = workflow.RunStage(context.Background(), dossier.ID, models.StageBTWReview)
	require.NoError(t, err)
	_, ok = updated.SubstepResult(models.StageBTWReview, models.SubstepVerwerking)
	assert.False(t, ok)
}

func TestVerwerkingRequiresReview(t *testing.T) {
	workflow, _, _, dossier := newWorkflowFixture(t)
	completeStagesThrough(t, workflow, dossier.ID, models.StageConceptrapport)

	_, _, err := workflow.RunSubstep(context.Background(), dossier.ID, models.StageBTWReview, models.SubstepVerwerking)
	assert.ErrorIs(t, err, ErrStageNotReady)
}

func TestRunSubstepUnknown(t *testing.T) {
	workflow, _, _, dossier := newWorkflowFixture(t)

	_, _, err := workflow.RunSubstep(context.Background(), dossier.ID, models.StageInformatiecheck, models.SubstepReview)
	assert.ErrorIs(t, err, ErrUnknownSubstep)

	_, _, err = workflow.RunSubstep(context.Background(), dossier.ID, models.StageBTWReview, "goedkeuring")
	assert.ErrorIs(t, err, ErrUnknownSubstep)
}

func TestEindcontroleMarksGenerated(t *testing.T) {
	workflow, _, _, dossier := newWorkflowFixture(t)
	completeStagesThrough(t, workflow, dossier.ID, models.StageEindcontrole)

	updated, err := workflow.GetDossier(context.Background(), dossier.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DossierStatusGenerated, updated.Status)
	assert.Empty(t, updated.RemainingStages())
}

func TestArchivedDossierRejectsRuns(t *testing.T) {
	workflow, store, _, dossier := newWorkflowFixture(t)
	dossier.Status = models.DossierStatusArchived
	require.NoError(t, store.UpdateDossier(context.Background(), dossier))

	_, _, err := workflow.RunStage(context.Background(), dossier.ID, models.StageInformatiecheck)
	assert.ErrorIs(t, err, ErrDossierArchived)

	_, _, err = workflow.EditStageResult(context.Background(), dossier.ID, models.StageInformatiecheck, "handmatig")
	assert.ErrorIs(t, err, ErrDossierArchived)
}

func TestEditStageResult(t *testing.T) {
	workflow, _, _, dossier := newWorkflowFixture(t)
	completeStagesThrough(t, workflow, dossier.ID, models.StageConceptrapport)

	updated, result, err := workflow.EditStageResult(context.Background(), dossier.ID, models.StageConceptrapport, "Handmatig herschreven concept.")
	require.NoError(t, err)
	assert.True(t, result.Manual)
	assert.Equal(t, "Handmatig herschreven concept.", updated.CurrentConcept())

	require.Len(t, updated.ConceptVersions, 2)
	assert.Equal(t, models.VersionSourceManual, updated.ConceptVersions[1].Source)
}

func TestEditStageResultGated(t *testing.T) {
	workflow, _, _, dossier := newWorkflowFixture(t)
	_, _, err := workflow.EditStageResult(context.Background(), dossier.ID, models.StageEindcontrole, "te vroeg")
	assert.ErrorIs(t, err, ErrStageNotReady)
}

func TestRestoreVersion(t *testing.T) {
	workflow, _, ai, dossier := newWorkflowFixture(t)
	version := 0
	ai.respond = func(systemPrompt, _ string) (string, error) {
		if strings.Contains(systemPrompt, "concept-adviesrapport op") {
			version++
		}
		return "Concept versie " + string(rune('0'+version)), nil
	}
	completeStagesThrough(t, workflow, dossier.ID, models.StageConceptrapport)

	_, _, err := workflow.EditStageResult(context.Background(), dossier.ID, models.StageConceptrapport, "Overschreven concept.")
	require.NoError(t, err)

	restored, err := workflow.RestoreVersion(context.Background(), dossier.ID, 1)
	require.NoError(t, err)

	// Restore appends, it never truncates history
	require.Len(t, restored.ConceptVersions, 3)
	assert.Equal(t, models.VersionSourceRestore, restored.ConceptVersions[2].Source)
	assert.Equal(t, restored.ConceptVersions[0].Content, restored.CurrentConcept())

	_, err = workflow.RestoreVersion(context.Background(), dossier.ID, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVersions(t *testing.T) {
	workflow, _, _, dossier := newWorkflowFixture(t)

	versions, err := workflow.Versions(context.Background(), dossier.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)

	completeStagesThrough(t, workflow, dossier.ID, models.StageConceptrapport)
	versions, err = workflow.Versions(context.Background(), dossier.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}
