package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowStagesOrder(t *testing.T) {
	stages := WorkflowStages()
	require.Len(t, stages, 8)

	keys := make([]string, len(stages))
	for i, stage := range stages {
		keys[i] = stage.Key
	}
	assert.Equal(t, []string{
		StageInformatiecheck,
		StageComplexiteitscheck,
		StageConceptrapport,
		StageBTWReview,
		StageVPBReview,
		StageIBReview,
		StageFeedbackverwerking,
		StageEindcontrole,
	}, keys)
}

func TestStageByKey(t *testing.T) {
	stage, ok := StageByKey(StageBTWReview)
	require.True(t, ok)
	assert.Equal(t, StageTypeReviewer, stage.Type)
	assert.True(t, stage.HasSubstep(SubstepReview))
	assert.True(t, stage.HasSubstep(SubstepVerwerking))
	assert.False(t, stage.HasSubstep("publicatie"))

	_, ok = StageByKey("onbekend")
	assert.False(t, ok)
}

func TestStageIndex(t *testing.T) {
	assert.Equal(t, 0, StageIndex(StageInformatiecheck))
	assert.Equal(t, 7, StageIndex(StageEindcontrole))
	assert.Equal(t, -1, StageIndex("onbekend"))
}

func TestConceptBearing(t *testing.T) {
	assert.True(t, ConceptBearing(StageConceptrapport))
	assert.True(t, ConceptBearing(StageFeedbackverwerking))
	assert.False(t, ConceptBearing(StageBTWReview))
	assert.False(t, ConceptBearing(StageEindcontrole))
}

func TestReviewerStagesHaveSubsteps(t *testing.T) {
	for _, stage := range WorkflowStages() {
		if stage.Type == StageTypeReviewer {
			assert.Equal(t, []string{SubstepReview, SubstepVerwerking}, stage.Substeps, stage.Key)
		} else {
			assert.Empty(t, stage.Substeps, stage.Key)
		}
	}
}

func TestStageViewsGating(t *testing.T) {
	dossier := &Dossier{
		StageResults: map[string]StageResult{
			StageInformatiecheck:    {Content: "ok"},
			StageComplexiteitscheck: {Content: "eenvoudig"},
		},
	}

	views := dossier.StageViews()
	require.Len(t, views, 8)

	assert.True(t, views[0].Enabled)
	assert.NotNil(t, views[0].Result)
	assert.True(t, views[1].Enabled)
	// First stage without a result is still enabled, everything after is not
	assert.True(t, views[2].Enabled)
	assert.Nil(t, views[2].Result)
	for _, view := range views[3:] {
		assert.False(t, view.Enabled, view.Key)
	}
}

func TestRemainingStages(t *testing.T) {
	dossier := &Dossier{StageResults: map[string]StageResult{}}
	assert.Len(t, dossier.RemainingStages(), 8)

	dossier.StageResults[StageInformatiecheck] = StageResult{Content: "ok"}
	remaining := dossier.RemainingStages()
	require.Len(t, remaining, 7)
	assert.Equal(t, StageComplexiteitscheck, remaining[0].Key)
}

func TestCurrentConcept(t *testing.T) {
	dossier := &Dossier{}
	assert.Empty(t, dossier.CurrentConcept())

	dossier.ConceptVersions = []ConceptVersion{
		{Number: 1, Source: StageConceptrapport, Content: "eerste versie"},
		{Number: 2, Source: VersionSourceManual, Content: "tweede versie"},
	}
	assert.Equal(t, "tweede versie", dossier.CurrentConcept())
}

func TestCloneIsDeep(t *testing.T) {
	original := &Dossier{
		ID:     "d1",
		Status: DossierStatusDraft,
		StageResults: map[string]StageResult{
			StageInformatiecheck: {Content: "ok"},
		},
		SubstepResults: map[string]map[string]StageResult{
			StageBTWReview: {SubstepReview: {Content: "feedback"}},
		},
		ConceptVersions: []ConceptVersion{
			{Number: 1, Content: "concept", CreatedAt: time.Now()},
		},
	}

	copied := original.Clone()
	copied.StageResults[StageComplexiteitscheck] = StageResult{Content: "nieuw"}
	copied.SubstepResults[StageBTWReview][SubstepVerwerking] = StageResult{Content: "verwerkt"}
	copied.ConceptVersions[0].Content = "gewijzigd"

	assert.NotContains(t, original.StageResults, StageComplexiteitscheck)
	assert.NotContains(t, original.SubstepResults[StageBTWReview], SubstepVerwerking)
	assert.Equal(t, "concept", original.ConceptVersions[0].Content)
}

func TestValidDossierStatus(t *testing.T) {
	assert.True(t, ValidDossierStatus(DossierStatusDraft))
	assert.True(t, ValidDossierStatus(DossierStatusArchived))
	assert.False(t, ValidDossierStatus("verwijderd"))
	assert.False(t, ValidDossierStatus(""))
}

func TestJobStatusFinished(t *testing.T) {
	assert.False(t, JobStatusPending.Finished())
	assert.False(t, JobStatusProcessing.Finished())
	assert.True(t, JobStatusCompleted.Finished())
	assert.True(t, JobStatusFailed.Finished())
	assert.True(t, JobStatusCancelled.Finished())
}
