package services

import (
	"fmt"
	"strings"

	"fiscaal-rapportage/internal/models"
)

// System prompts per stage. The pipeline language is Dutch because the
// reports are Dutch fiscal advisory documents.
const (
	systemPromptBase = `Je bent een ervaren Nederlandse fiscalist bij een advieskantoor. ` +
		`Je schrijft zakelijk, precies en in het Nederlands. Gebruik geen markdown-koppen tenzij daarom gevraagd wordt.`

	systemPromptInformatiecheck = systemPromptBase + ` Je beoordeelt of aangeleverde klantinformatie volledig genoeg is ` +
		`om een fiscaal advies op te stellen. Benoem concreet welke informatie ontbreekt.`

	systemPromptComplexiteitscheck = systemPromptBase + ` Je beoordeelt de fiscale complexiteit van een casus: ` +
		`welke belastingmiddelen spelen, welke risico's en welke specialisten nodig zijn.`

	systemPromptConcept = systemPromptBase + ` Je stelt een volledig concept-adviesrapport op met een duidelijke ` +
		`structuur: situatieschets, fiscale analyse per middel, advies en vervolgstappen.`

	systemPromptReviewer = systemPromptBase + ` Je reviewt als %s het concept-adviesrapport. ` +
		`Geef genummerde, concrete feedbackpunten met een verwijzing naar de passage waar ze over gaan.`

	systemPromptVerwerking = systemPromptBase + ` Je verwerkt specialistenfeedback in een concept-adviesrapport. ` +
		`Geef uitsluitend het volledige herziene rapport terug, zonder toelichting.`

	systemPromptEindcontrole = systemPromptBase + ` Je voert de eindcontrole uit: consistentie, volledigheid, ` +
		`cijfermatige juistheid en toon. Benoem resterende punten of verklaar het rapport gereed.`

	systemPromptAdjustment = systemPromptBase + ` Je stelt tekstaanpassingen voor op een concept-adviesrapport. ` +
		`Antwoord uitsluitend met een JSON-array van objecten met de velden "oldText" (letterlijk citaat uit het rapport), ` +
		`"newText" (vervangende tekst) en "reason" (korte motivering). Geen andere tekst.`
)

// reviewerRoles maps reviewer stage keys to their specialist role description
var reviewerRoles = map[string]string{
	models.StageBTWReview: "BTW-specialist (omzetbelasting)",
	models.StageVPBReview: "VPB-specialist (vennootschapsbelasting)",
	models.StageIBReview:  "IB-specialist (inkomstenbelasting)",
}

// buildStagePrompts returns the system and user prompt for a stage run
func buildStagePrompts(stage models.WorkflowStage, dossier *models.Dossier) (string, string) {
	header := dossierHeader(dossier)

	switch stage.Key {
	case models.StageInformatiecheck:
		user := fmt.Sprintf("%s\nAangeleverde informatie:\n%s\n\nBeoordeel of deze informatie volstaat voor een fiscaal advies en benoem wat ontbreekt.",
			header, dossier.Intake)
		return systemPromptInformatiecheck, user

	case models.StageComplexiteitscheck:
		user := fmt.Sprintf("%s\nAangeleverde informatie:\n%s\n\nUitkomst informatiecheck:\n%s\n\nBeoordeel de complexiteit van deze casus.",
			header, dossier.Intake, stageContent(dossier, models.StageInformatiecheck))
		return systemPromptComplexiteitscheck, user

	case models.StageConceptrapport:
		user := fmt.Sprintf("%s\nAangeleverde informatie:\n%s\n\nUitkomst informatiecheck:\n%s\n\nUitkomst complexiteitscheck:\n%s\n\nStel het concept-adviesrapport op.",
			header, dossier.Intake,
			stageContent(dossier, models.StageInformatiecheck),
			stageContent(dossier, models.StageComplexiteitscheck))
		return systemPromptConcept, user

	case models.StageFeedbackverwerking:
		user := fmt.Sprintf("%s\nHuidig concept-adviesrapport:\n%s\n\nResterende specialistenfeedback:\n%s\n\nVerwerk alle feedback en geef het volledige herziene rapport terug.",
			header, dossier.CurrentConcept(), collectReviewerFeedback(dossier))
		return systemPromptVerwerking, user

	case models.StageEindcontrole:
		user := fmt.Sprintf("%s\nDefinitief concept-adviesrapport:\n%s\n\nVoer de eindcontrole uit.",
			header, dossier.CurrentConcept())
		return systemPromptEindcontrole, user
	}

	// Reviewer stages: the stage-level run performs the review substep
	if role, ok := reviewerRoles[stage.Key]; ok {
		return buildReviewPrompts(role, dossier)
	}

	// Unreachable for known stages; fall back to a generic processor prompt
	user := fmt.Sprintf("%s\nHuidig concept-adviesrapport:\n%s", header, dossier.CurrentConcept())
	return systemPromptBase, user
}

// buildSubstepPrompts returns the prompts for a reviewer substep run
func buildSubstepPrompts(stage models.WorkflowStage, substep string, dossier *models.Dossier) (string, string) {
	role := reviewerRoles[stage.Key]

	if substep == models.SubstepVerwerking {
		review := stageContent(dossier, stage.Key)
		user := fmt.Sprintf("%s\nHuidig concept-adviesrapport:\n%s\n\nFeedback van de %s:\n%s\n\nVerwerk deze feedback en geef het volledige herziene rapport terug.",
			dossierHeader(dossier), dossier.CurrentConcept(), role, review)
		return systemPromptVerwerking, user
	}

	return buildReviewPrompts(role, dossier)
}

func buildReviewPrompts(role string, dossier *models.Dossier) (string, string) {
	system := fmt.Sprintf(systemPromptReviewer, role)
	user := fmt.Sprintf("%s\nConcept-adviesrapport:\n%s\n\nGeef je reviewfeedback.",
		dossierHeader(dossier), dossier.CurrentConcept())
	return system, user
}

// buildAdjustmentPrompts returns the prompts for the adjustment analysis call
func buildAdjustmentPrompts(dossier *models.Dossier, instruction string) (string, string) {
	user := fmt.Sprintf("%s\nHuidig concept-adviesrapport:\n%s\n\nAanpassingsinstructie van de gebruiker:\n%s",
		dossierHeader(dossier), dossier.CurrentConcept(), instruction)
	return systemPromptAdjustment, user
}

func dossierHeader(dossier *models.Dossier) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dossier: %s\nClient: %s\n", dossier.Title, dossier.ClientName)
	if dossier.Advisor != "" {
		fmt.Fprintf(&b, "Adviseur: %s\n", dossier.Advisor)
	}
	return b.String()
}

func stageContent(dossier *models.Dossier, key string) string {
	if result, ok := dossier.StageResults[key]; ok {
		return result.Content
	}
	return "(geen resultaat)"
}

// collectReviewerFeedback concatenates the review substep results of all
// reviewer stages that have not had their feedback processed yet
func collectReviewerFeedback(dossier *models.Dossier) string {
	var b strings.Builder
	for _, stage := range models.WorkflowStages() {
		if stage.Type != models.StageTypeReviewer {
			continue
		}
		review, ok := dossier.SubstepResult(stage.Key, models.SubstepReview)
		if !ok {
			continue
		}
		if _, processed := dossier.SubstepResult(stage.Key, models.SubstepVerwerking); processed {
			continue
		}
		fmt.Fprintf(&b, "--- %s ---\n%s\n\n", stage.Label, review.Content)
	}
	if b.Len() == 0 {
		return "(geen onverwerkte feedback)"
	}
	return b.String()
}
