package models

// CreateDossierRequest represents the request to create a new dossier
type CreateDossierRequest struct {
	Title      string `json:"title" binding:"required"`
	ClientName string `json:"clientName" binding:"required"`
	Advisor    string `json:"advisor"` // Optional
	Intake     string `json:"intake" binding:"required"`
}

// UpdateDossierRequest represents a partial update of dossier fields
type UpdateDossierRequest struct {
	Title      *string        `json:"title,omitempty"`
	ClientName *string        `json:"clientName,omitempty"`
	Advisor    *string        `json:"advisor,omitempty"`
	Intake     *string        `json:"intake,omitempty"`
	Status     *DossierStatus `json:"status,omitempty"`
}

// DossierListResponse is the paginated dashboard listing
type DossierListResponse struct {
	Items    []Dossier `json:"items"`
	Total    int64     `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"pageSize"`
}

// ManualEditRequest replaces a stage result with hand-edited text
type ManualEditRequest struct {
	Content string `json:"content" binding:"required"`
}

// StageRunResponse is returned after a stage or substep run
type StageRunResponse struct {
	StageKey string      `json:"stageKey"`
	Substep  string      `json:"substep,omitempty"`
	Result   StageResult `json:"result"`
	Dossier  *Dossier    `json:"dossier"`
}

// ExpressStartResponse is returned when an express job is accepted
type ExpressStartResponse struct {
	JobID  string    `json:"jobId"`
	Status JobStatus `json:"status"`
}

// AnalyzeAdjustmentsRequest carries the user's free-form edit instruction
type AnalyzeAdjustmentsRequest struct {
	Instruction string `json:"instruction" binding:"required"`
}

// AnalyzeAdjustmentsResponse holds the AI-proposed spans plus a unified diff
// preview of the concept with all spans applied
type AnalyzeAdjustmentsResponse struct {
	Proposals []AdjustmentProposal `json:"proposals"`
	Diff      string               `json:"diff"`
}

// ApplyAdjustmentsRequest carries the reviewed proposals back to the server
type ApplyAdjustmentsRequest struct {
	Proposals []AdjustmentProposal `json:"proposals" binding:"required,min=1"`
}

// ApplyAdjustmentsResponse reports the outcome of applying reviewed spans
type ApplyAdjustmentsResponse struct {
	Concept string        `json:"concept"`
	Version int           `json:"version"`
	Applied int           `json:"applied"`
	Skipped int           `json:"skipped"`
	Failed  []SpanFailure `json:"failed,omitempty"`
}

// SendEmailRequest represents the request to email the final report
type SendEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// DossierExport is the canonical export/import document for a dossier
type DossierExport struct {
	ExportVersion int     `json:"exportVersion"`
	ExportedAt    string  `json:"exportedAt"`
	Dossier       Dossier `json:"dossier"`
}
