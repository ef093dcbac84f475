package models

import "time"

// DossierStatus represents the lifecycle status of a dossier
type DossierStatus string

const (
	DossierStatusDraft      DossierStatus = "draft"
	DossierStatusProcessing DossierStatus = "processing"
	DossierStatusGenerated  DossierStatus = "generated"
	DossierStatusExported   DossierStatus = "exported"
	DossierStatusArchived   DossierStatus = "archived"
)

// ValidDossierStatus reports whether s is one of the known statuses
func ValidDossierStatus(s DossierStatus) bool {
	switch s {
	case DossierStatusDraft, DossierStatusProcessing, DossierStatusGenerated,
		DossierStatusExported, DossierStatusArchived:
		return true
	}
	return false
}

// Concept version sources (besides the stage key that produced the snapshot)
const (
	VersionSourceManual     = "manual"
	VersionSourceAdjustment = "adjustment"
	VersionSourceRestore    = "restore"
)

// StageResult is the stored output of one stage or substep run
type StageResult struct {
	Content          string    `bson:"content" json:"content"`
	Model            string    `bson:"model,omitempty" json:"model,omitempty"`
	PromptTokens     int       `bson:"promptTokens,omitempty" json:"promptTokens,omitempty"`
	CompletionTokens int       `bson:"completionTokens,omitempty" json:"completionTokens,omitempty"`
	DurationMs       int64     `bson:"durationMs,omitempty" json:"durationMs,omitempty"`
	GeneratedAt      time.Time `bson:"generatedAt" json:"generatedAt"`
	Manual           bool      `bson:"manual,omitempty" json:"manual,omitempty"`
}

// ConceptVersion is a full-text snapshot of the concept report. Snapshots are
// append-only; restoring an old version appends a new one.
type ConceptVersion struct {
	Number    int       `bson:"number" json:"number"`
	Source    string    `bson:"source" json:"source"`
	Content   string    `bson:"content" json:"content"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// Dossier represents one fiscal advisory case moving through the pipeline
type Dossier struct {
	ID              string                            `bson:"_id" json:"id"`
	Title           string                            `bson:"title" json:"title"`
	ClientName      string                            `bson:"clientName" json:"clientName"`
	Advisor         string                            `bson:"advisor,omitempty" json:"advisor,omitempty"`
	Status          DossierStatus                     `bson:"status" json:"status"`
	Intake          string                            `bson:"intake" json:"intake"`
	StageResults    map[string]StageResult            `bson:"stageResults" json:"stageResults"`
	SubstepResults  map[string]map[string]StageResult `bson:"substepResults" json:"substepResults"`
	ConceptVersions []ConceptVersion                  `bson:"conceptVersions" json:"conceptVersions"`
	ExpressJobID    string                            `bson:"expressJobId,omitempty" json:"expressJobId,omitempty"`
	CreatedAt       time.Time                         `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time                         `bson:"updatedAt" json:"updatedAt"`
}

// Clone returns a deep copy of the dossier
func (d *Dossier) Clone() *Dossier {
	copied := *d
	copied.StageResults = make(map[string]StageResult, len(d.StageResults))
	for key, result := range d.StageResults {
		copied.StageResults[key] = result
	}
	copied.SubstepResults = make(map[string]map[string]StageResult, len(d.SubstepResults))
	for key, subs := range d.SubstepResults {
		inner := make(map[string]StageResult, len(subs))
		for sub, result := range subs {
			inner[sub] = result
		}
		copied.SubstepResults[key] = inner
	}
	copied.ConceptVersions = make([]ConceptVersion, len(d.ConceptVersions))
	copy(copied.ConceptVersions, d.ConceptVersions)
	return &copied
}

// HasStageResult reports whether the stage has a stored result
func (d *Dossier) HasStageResult(key string) bool {
	_, ok := d.StageResults[key]
	return ok
}

// SubstepResult returns the stored result of a reviewer substep
func (d *Dossier) SubstepResult(stageKey, substep string) (StageResult, bool) {
	subs, ok := d.SubstepResults[stageKey]
	if !ok {
		return StageResult{}, false
	}
	result, ok := subs[substep]
	return result, ok
}

// CurrentConcept returns the text of the latest concept version, or "" when
// the concept report has not been generated yet
func (d *Dossier) CurrentConcept() string {
	if len(d.ConceptVersions) == 0 {
		return ""
	}
	return d.ConceptVersions[len(d.ConceptVersions)-1].Content
}

// RemainingStages returns the stage definitions that have no result yet, in
// pipeline order
func (d *Dossier) RemainingStages() []WorkflowStage {
	var remaining []WorkflowStage
	for _, stage := range WorkflowStages() {
		if !d.HasStageResult(stage.Key) {
			remaining = append(remaining, stage)
		}
	}
	return remaining
}

// StageView is a stage definition combined with the dossier's progress on it,
// used by the dashboard stage list
type StageView struct {
	WorkflowStage
	Enabled        bool                   `json:"enabled"`
	Result         *StageResult           `json:"result,omitempty"`
	SubstepResults map[string]StageResult `json:"substepResults,omitempty"`
}

// StageViews builds the dashboard stage list: a stage is enabled when every
// earlier stage has a result
func (d *Dossier) StageViews() []StageView {
	views := make([]StageView, 0, len(workflowStages))
	enabled := true
	for _, stage := range WorkflowStages() {
		view := StageView{WorkflowStage: stage, Enabled: enabled}
		if result, ok := d.StageResults[stage.Key]; ok {
			r := result
			view.Result = &r
		} else {
			// Everything after the first incomplete stage is gated off
			enabled = false
		}
		if subs, ok := d.SubstepResults[stage.Key]; ok && len(subs) > 0 {
			view.SubstepResults = subs
		}
		views = append(views, view)
	}
	return views
}
