package models

// StageType classifies what a workflow stage does with the dossier
type StageType string

const (
	StageTypeProcessor StageType = "processor"
	StageTypeGenerator StageType = "generator"
	StageTypeReviewer  StageType = "reviewer"
)

// Stage keys for the fixed review pipeline
const (
	StageInformatiecheck    = "informatiecheck"
	StageComplexiteitscheck = "complexiteitscheck"
	StageConceptrapport     = "conceptrapport"
	StageBTWReview          = "btw_review"
	StageVPBReview          = "vpb_review"
	StageIBReview           = "ib_review"
	StageFeedbackverwerking = "feedbackverwerking"
	StageEindcontrole       = "eindcontrole"
)

// Substep keys for reviewer stages (review -> feedback processing)
const (
	SubstepReview     = "review"
	SubstepVerwerking = "verwerking"
)

// WorkflowStage is the static configuration of one pipeline stage
type WorkflowStage struct {
	Key         string    `json:"key"`
	Label       string    `json:"label"`
	Description string    `json:"description"`
	Type        StageType `json:"type"`
	Substeps    []string  `json:"substeps,omitempty"`
}

// workflowStages is the fixed, ordered pipeline definition. The dashboard
// reads this list from the API instead of shipping its own copy.
var workflowStages = []WorkflowStage{
	{
		Key:         StageInformatiecheck,
		Label:       "Informatiecheck",
		Description: "Controleert of de aangeleverde klantinformatie volledig genoeg is voor een advies.",
		Type:        StageTypeProcessor,
	},
	{
		Key:         StageComplexiteitscheck,
		Label:       "Complexiteitscheck",
		Description: "Beoordeelt de fiscale complexiteit van de casus en benoemt aandachtspunten.",
		Type:        StageTypeProcessor,
	},
	{
		Key:         StageConceptrapport,
		Label:       "Conceptrapport",
		Description: "Stelt het eerste concept van het fiscale adviesrapport op.",
		Type:        StageTypeGenerator,
	},
	{
		Key:         StageBTWReview,
		Label:       "BTW-specialist",
		Description: "Review van het concept door de omzetbelasting-specialist.",
		Type:        StageTypeReviewer,
		Substeps:    []string{SubstepReview, SubstepVerwerking},
	},
	{
		Key:         StageVPBReview,
		Label:       "VPB-specialist",
		Description: "Review van het concept door de vennootschapsbelasting-specialist.",
		Type:        StageTypeReviewer,
		Substeps:    []string{SubstepReview, SubstepVerwerking},
	},
	{
		Key:         StageIBReview,
		Label:       "IB-specialist",
		Description: "Review van het concept door de inkomstenbelasting-specialist.",
		Type:        StageTypeReviewer,
		Substeps:    []string{SubstepReview, SubstepVerwerking},
	},
	{
		Key:         StageFeedbackverwerking,
		Label:       "Feedbackverwerking",
		Description: "Verwerkt alle resterende specialistenfeedback in het concept.",
		Type:        StageTypeProcessor,
	},
	{
		Key:         StageEindcontrole,
		Label:       "Eindcontrole",
		Description: "Laatste controle op consistentie en volledigheid van het rapport.",
		Type:        StageTypeProcessor,
	},
}

// WorkflowStages returns the ordered pipeline definition
func WorkflowStages() []WorkflowStage {
	stages := make([]WorkflowStage, len(workflowStages))
	copy(stages, workflowStages)
	return stages
}

// StageByKey looks up a stage definition by its key
func StageByKey(key string) (WorkflowStage, bool) {
	for _, stage := range workflowStages {
		if stage.Key == key {
			return stage, true
		}
	}
	return WorkflowStage{}, false
}

// StageIndex returns the position of a stage in the pipeline, or -1
func StageIndex(key string) int {
	for i, stage := range workflowStages {
		if stage.Key == key {
			return i
		}
	}
	return -1
}

// HasSubstep reports whether a stage defines the given substep
func (s WorkflowStage) HasSubstep(substep string) bool {
	for _, sub := range s.Substeps {
		if sub == substep {
			return true
		}
	}
	return false
}

// ConceptBearing reports whether completing this stage rewrites the concept
// report. Reviewer stages rewrite it through their verwerking substep instead.
func ConceptBearing(key string) bool {
	return key == StageConceptrapport || key == StageFeedbackverwerking
}
