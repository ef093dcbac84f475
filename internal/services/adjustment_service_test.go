package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiscaal-rapportage/internal/models"
)

const adjustmentSchemaPath = "../../schemas/adjustment_schema.json"

func newAdjustmentFixture(t *testing.T, ai Completer) (*AdjustmentService, *WorkflowService, *models.Dossier) {
	t.Helper()
	store := NewMemStore()
	workflow := NewWorkflowService(store, ai)
	svc := NewAdjustmentService(workflow, store, ai, adjustmentSchemaPath)
	dossier := newTestDossier(t, store)
	return svc, workflow, dossier
}

// setConcept gives the dossier a concept report without running the pipeline
func setConcept(t *testing.T, workflow *WorkflowService, dossierID, concept string) {
	t.Helper()
	ctx := context.Background()
	for _, key := range []string{models.StageInformatiecheck, models.StageComplexiteitscheck} {
		_, _, err := workflow.EditStageResult(ctx, dossierID, key, "ok")
		require.NoError(t, err)
	}
	_, _, err := workflow.EditStageResult(ctx, dossierID, models.StageConceptrapport, concept)
	require.NoError(t, err)
}

func TestAnalyzeProposesSpans(t *testing.T) {
	ai := &fakeCompleter{}
	ai.respond = func(_, _ string) (string, error) {
		return "```json\n[{\"oldText\": \"het tarief bedraagt 19%\", \"newText\": \"het tarief bedraagt 21%\", \"reason\": \"BTW-tarief geactualiseerd\"}]\n```", nil
	}
	svc, workflow, dossier := newAdjustmentFixture(t, ai)
	setConcept(t, workflow, dossier.ID, "Voor de levering geldt dat het tarief bedraagt 19% over de omzet.")

	response, err := svc.Analyze(context.Background(), dossier.ID, "Actualiseer het BTW-tarief.")
	require.NoError(t, err)
	require.Len(t, response.Proposals, 1)

	proposal := response.Proposals[0]
	assert.NotEmpty(t, proposal.ID)
	assert.Equal(t, models.AdjustmentStatusPending, proposal.Status)
	assert.Equal(t, "het tarief bedraagt 19%", proposal.OldText)
	assert.Equal(t, "het tarief bedraagt 21%", proposal.NewText)

	assert.Contains(t, response.Diff, "-")
	assert.Contains(t, response.Diff, "21%")
}

func TestAnalyzeDropsStaleSpans(t *testing.T) {
	ai := &fakeCompleter{}
	ai.respond = func(_, _ string) (string, error) {
		return `[
			{"oldText": "bestaat niet in het concept", "newText": "x"},
			{"oldText": "19%", "newText": "21%"}
		]`, nil
	}
	svc, workflow, dossier := newAdjustmentFixture(t, ai)
	setConcept(t, workflow, dossier.ID, "Het tarief is 19%.")

	response, err := svc.Analyze(context.Background(), dossier.ID, "Actualiseer het tarief.")
	require.NoError(t, err)
	require.Len(t, response.Proposals, 1)
	assert.Equal(t, "19%", response.Proposals[0].OldText)
}

func TestAnalyzeAllSpansStale(t *testing.T) {
	ai := &fakeCompleter{}
	ai.respond = func(_, _ string) (string, error) {
		return `[{"oldText": "bestaat niet", "newText": "x"}]`, nil
	}
	svc, workflow, dossier := newAdjustmentFixture(t, ai)
	setConcept(t, workflow, dossier.ID, "Het tarief is 19%.")

	_, err := svc.Analyze(context.Background(), dossier.ID, "Doe iets.")
	assert.ErrorIs(t, err, ErrInvalidOutput)
}

func TestAnalyzeRejectsInvalidPayload(t *testing.T) {
	ai := &fakeCompleter{}
	ai.respond = func(_, _ string) (string, error) {
		// Missing newText fails schema validation
		return `[{"oldText": "19%"}]`, nil
	}
	svc, workflow, dossier := newAdjustmentFixture(t, ai)
	setConcept(t, workflow, dossier.ID, "Het tarief is 19%.")

	_, err := svc.Analyze(context.Background(), dossier.ID, "Doe iets.")
	assert.ErrorIs(t, err, ErrInvalidOutput)
}

func TestAnalyzeWithoutConcept(t *testing.T) {
	svc, _, dossier := newAdjustmentFixture(t, &fakeCompleter{})
	_, err := svc.Analyze(context.Background(), dossier.ID, "Doe iets.")
	assert.ErrorIs(t, err, ErrNoConcept)
}

func TestApplyReviewedProposals(t *testing.T) {
	ai := &fakeCompleter{}
	svc, workflow, dossier := newAdjustmentFixture(t, ai)
	setConcept(t, workflow, dossier.ID, "Het BTW-tarief is 19%. De VPB-druk is hoog. De IB-claim vervalt.")

	proposals := []models.AdjustmentProposal{
		{ID: "p1", OldText: "19%", NewText: "21%", Status: models.AdjustmentStatusAccepted},
		{ID: "p2", OldText: "De VPB-druk is hoog.", NewText: "De VPB-druk is beperkt.", Status: models.AdjustmentStatusModified, ModifiedText: "De VPB-druk is aanzienlijk."},
		{ID: "p3", OldText: "De IB-claim vervalt.", NewText: "weg ermee", Status: models.AdjustmentStatusRejected},
		{ID: "p4", OldText: "staat er niet in", NewText: "x", Status: models.AdjustmentStatusAccepted},
	}

	response, err := svc.Apply(context.Background(), dossier.ID, proposals)
	require.NoError(t, err)
	assert.Equal(t, 2, response.Applied)
	assert.Equal(t, 1, response.Skipped)
	require.Len(t, response.Failed, 1)
	assert.Equal(t, "p4", response.Failed[0].ID)

	assert.Contains(t, response.Concept, "21%")
	assert.Contains(t, response.Concept, "De VPB-druk is aanzienlijk.")
	assert.Contains(t, response.Concept, "De IB-claim vervalt.")

	// Applying snapshots a new concept version
	updated, err := workflow.GetDossier(context.Background(), dossier.ID)
	require.NoError(t, err)
	last := updated.ConceptVersions[len(updated.ConceptVersions)-1]
	assert.Equal(t, models.VersionSourceAdjustment, last.Source)
	assert.Equal(t, response.Concept, last.Content)
	assert.Equal(t, last.Number, response.Version)
}

func TestApplyNothingAccepted(t *testing.T) {
	svc, workflow, dossier := newAdjustmentFixture(t, &fakeCompleter{})
	setConcept(t, workflow, dossier.ID, "Het tarief is 19%.")

	before, err := workflow.Versions(context.Background(), dossier.ID)
	require.NoError(t, err)

	response, err := svc.Apply(context.Background(), dossier.ID, []models.AdjustmentProposal{
		{ID: "p1", OldText: "19%", NewText: "21%", Status: models.AdjustmentStatusRejected},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, response.Applied)
	assert.Equal(t, 1, response.Skipped)
	assert.Equal(t, "Het tarief is 19%.", response.Concept)

	// No new version without applied spans
	after, err := workflow.Versions(context.Background(), dossier.ID)
	require.NoError(t, err)
	assert.Len(t, after, len(before))
}
