package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"fiscaal-rapportage/internal/models"
	"fiscaal-rapportage/internal/utils"
	"fiscaal-rapportage/internal/validation"
)

// AdjustmentService implements the report-adjustment dialog: it asks the AI
// for old/new text spans matching a user instruction, renders a diff preview,
// and applies the spans the user accepted.
type AdjustmentService struct {
	workflow   *WorkflowService
	store      DossierStore
	ai         Completer
	schemaPath string
}

// NewAdjustmentService creates a new adjustment service. schemaPath points at
// the JSON schema the AI proposal output is validated against.
func NewAdjustmentService(workflow *WorkflowService, store DossierStore, ai Completer, schemaPath string) *AdjustmentService {
	return &AdjustmentService{
		workflow:   workflow,
		store:      store,
		ai:         ai,
		schemaPath: schemaPath,
	}
}

// proposalPayload is the JSON shape the AI is instructed to return
type proposalPayload struct {
	OldText string `json:"oldText"`
	NewText string `json:"newText"`
	Reason  string `json:"reason"`
}

// Analyze sends the instruction plus the current concept to the AI and
// returns pending proposals with a unified diff preview
func (s *AdjustmentService) Analyze(ctx context.Context, dossierID, instruction string) (*models.AnalyzeAdjustmentsResponse, error) {
	dossier, err := s.workflow.GetDossier(ctx, dossierID)
	if err != nil {
		return nil, err
	}
	concept := dossier.CurrentConcept()
	if concept == "" {
		return nil, ErrNoConcept
	}

	systemPrompt, userPrompt := buildAdjustmentPrompts(dossier, instruction)
	completion, err := s.ai.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("adjustment analysis failed: %w", err)
	}

	jsonBlock, err := extractJSONBlock(completion.Text)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateAgainstFile([]byte(jsonBlock), s.schemaPath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}

	var payloads []proposalPayload
	if err := json.Unmarshal([]byte(jsonBlock), &payloads); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}

	proposals := make([]models.AdjustmentProposal, 0, len(payloads))
	for _, payload := range payloads {
		if !strings.Contains(concept, payload.OldText) {
			// The model quoted text that is not in the concept; drop the span
			log.Printf("WARNING: dropping adjustment span not found in concept (dossier %s)", dossierID)
			continue
		}
		proposals = append(proposals, models.AdjustmentProposal{
			ID:      utils.GenerateUUID(),
			OldText: payload.OldText,
			NewText: payload.NewText,
			Reason:  payload.Reason,
			Status:  models.AdjustmentStatusPending,
		})
	}
	if len(proposals) == 0 {
		return nil, fmt.Errorf("%w: no applicable spans proposed", ErrInvalidOutput)
	}

	diff, err := s.previewDiff(concept, proposals)
	if err != nil {
		return nil, err
	}

	return &models.AnalyzeAdjustmentsResponse{Proposals: proposals, Diff: diff}, nil
}

// Apply applies the reviewed proposals to the concept report. Accepted spans
// use the AI text, modified spans the user's text; rejected and pending spans
// are skipped. Stale spans are reported per-span without failing the rest.
func (s *AdjustmentService) Apply(ctx context.Context, dossierID string, proposals []models.AdjustmentProposal) (*models.ApplyAdjustmentsResponse, error) {
	dossier, err := s.workflow.GetDossier(ctx, dossierID)
	if err != nil {
		return nil, err
	}
	if dossier.Status == models.DossierStatusArchived {
		return nil, ErrDossierArchived
	}
	concept := dossier.CurrentConcept()
	if concept == "" {
		return nil, ErrNoConcept
	}

	response := &models.ApplyAdjustmentsResponse{}
	for _, proposal := range proposals {
		switch proposal.Status {
		case models.AdjustmentStatusAccepted, models.AdjustmentStatusModified:
		default:
			response.Skipped++
			continue
		}

		if proposal.OldText == "" || !strings.Contains(concept, proposal.OldText) {
			response.Failed = append(response.Failed, models.SpanFailure{
				ID:     proposal.ID,
				Reason: "old text not found in current concept",
			})
			continue
		}
		// Replace the first exact occurrence only
		concept = strings.Replace(concept, proposal.OldText, proposal.ReplacementText(), 1)
		response.Applied++
	}

	if response.Applied > 0 {
		version := appendConceptVersion(dossier, models.VersionSourceAdjustment, concept)
		dossier.UpdatedAt = time.Now().UTC()
		if err := s.store.UpdateDossier(ctx, dossier); err != nil {
			return nil, err
		}
		response.Version = version.Number
	}
	response.Concept = concept

	return response, nil
}

// previewDiff renders a unified diff of the concept with every proposal applied
func (s *AdjustmentService) previewDiff(concept string, proposals []models.AdjustmentProposal) (string, error) {
	preview := concept
	for _, proposal := range proposals {
		preview = strings.Replace(preview, proposal.OldText, proposal.NewText, 1)
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(concept),
		B:        difflib.SplitLines(preview),
		FromFile: "concept",
		ToFile:   "aangepast",
		Context:  3,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render diff: %w", err)
	}
	return diff, nil
}
