package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"fiscaal-rapportage/internal/models"
	"fiscaal-rapportage/internal/services"
	"fiscaal-rapportage/internal/utils"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	store        services.DossierStore
	workflow     *services.WorkflowService
	express      *services.ExpressService
	adjustments  *services.AdjustmentService
	exports      *services.ExportService
	pdfService   *services.PDFService
	emailService *services.EmailService // nil when SendGrid is not configured
}

// NewHandlers creates a new handlers instance
func NewHandlers(
	store services.DossierStore,
	workflow *services.WorkflowService,
	express *services.ExpressService,
	adjustments *services.AdjustmentService,
	exports *services.ExportService,
	pdfService *services.PDFService,
	emailService *services.EmailService,
) *Handlers {
	return &Handlers{
		store:        store,
		workflow:     workflow,
		express:      express,
		adjustments:  adjustments,
		exports:      exports,
		pdfService:   pdfService,
		emailService: emailService,
	}
}

// respondError maps service errors to HTTP status codes
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound),
		errors.Is(err, services.ErrUnknownStage),
		errors.Is(err, services.ErrUnknownSubstep):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrStageNotReady),
		errors.Is(err, services.ErrDossierArchived),
		errors.Is(err, services.ErrJobActive),
		errors.Is(err, services.ErrJobFinished),
		errors.Is(err, services.ErrNothingToRun),
		errors.Is(err, services.ErrNoConcept):
		status = http.StatusConflict
	case errors.Is(err, services.ErrProviderUnavailable),
		errors.Is(err, services.ErrProviderTimeout),
		errors.Is(err, services.ErrRetryExhausted),
		errors.Is(err, services.ErrInvalidOutput):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// ListStagesHandler handles GET /api/workflow/stages
func (h *Handlers) ListStagesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stages": models.WorkflowStages()})
}

// CreateDossierHandler handles POST /api/dossiers
func (h *Handlers) CreateDossierHandler(c *gin.Context) {
	var req models.CreateDossierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now().UTC()
	dossier := &models.Dossier{
		ID:             utils.GenerateUUID(),
		Title:          req.Title,
		ClientName:     req.ClientName,
		Advisor:        req.Advisor,
		Status:         models.DossierStatusDraft,
		Intake:         req.Intake,
		StageResults:   map[string]models.StageResult{},
		SubstepResults: map[string]map[string]models.StageResult{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := h.store.InsertDossier(c.Request.Context(), dossier); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dossier)
}

// ListDossiersHandler handles GET /api/dossiers
func (h *Handlers) ListDossiersHandler(c *gin.Context) {
	opts := models.ListOptions{
		Search:  c.Query("search"),
		Status:  models.DossierStatus(c.Query("status")),
		SortBy:  c.Query("sortBy"),
		SortDir: c.Query("sortDir"),
	}
	opts.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	opts.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	if opts.Status != "" && !models.ValidDossierStatus(opts.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid status filter: %s", opts.Status)})
		return
	}
	opts.Normalize()

	items, total, err := h.store.ListDossiers(c.Request.Context(), opts)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.DossierListResponse{
		Items:    items,
		Total:    total,
		Page:     opts.Page,
		PageSize: opts.PageSize,
	})
}

// GetDossierHandler handles GET /api/dossiers/:id
func (h *Handlers) GetDossierHandler(c *gin.Context) {
	dossier, err := h.workflow.GetDossier(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dossier": dossier, "stages": dossier.StageViews()})
}

// UpdateDossierHandler handles PUT /api/dossiers/:id
func (h *Handlers) UpdateDossierHandler(c *gin.Context) {
	var req models.UpdateDossierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Status != nil && !models.ValidDossierStatus(*req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid status: %s", *req.Status)})
		return
	}

	dossier, err := h.workflow.GetDossier(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if req.Title != nil {
		dossier.Title = *req.Title
	}
	if req.ClientName != nil {
		dossier.ClientName = *req.ClientName
	}
	if req.Advisor != nil {
		dossier.Advisor = *req.Advisor
	}
	if req.Intake != nil {
		dossier.Intake = *req.Intake
	}
	if req.Status != nil {
		dossier.Status = *req.Status
	}
	dossier.UpdatedAt = time.Now().UTC()

	if err := h.store.UpdateDossier(c.Request.Context(), dossier); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dossier)
}

// DeleteDossierHandler handles DELETE /api/dossiers/:id
func (h *Handlers) DeleteDossierHandler(c *gin.Context) {
	deleted, err := h.store.DeleteDossier(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "dossier not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// DuplicateDossierHandler handles POST /api/dossiers/:id/duplicate
func (h *Handlers) DuplicateDossierHandler(c *gin.Context) {
	dossier, err := h.workflow.GetDossier(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	// The copy keeps all results but starts its own lifecycle
	copied := dossier.Clone()
	copied.ID = utils.GenerateUUID()
	copied.Title = dossier.Title + " (kopie)"
	copied.ExpressJobID = ""
	copied.Status = models.DossierStatusDraft
	now := time.Now().UTC()
	copied.CreatedAt = now
	copied.UpdatedAt = now

	if err := h.store.InsertDossier(c.Request.Context(), copied); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, copied)
}

// ArchiveDossierHandler handles POST /api/dossiers/:id/archive
func (h *Handlers) ArchiveDossierHandler(c *gin.Context) {
	dossier, err := h.workflow.GetDossier(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	dossier.Status = models.DossierStatusArchived
	dossier.UpdatedAt = time.Now().UTC()
	if err := h.store.UpdateDossier(c.Request.Context(), dossier); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dossier)
}

// ExportDossierHandler handles GET /api/dossiers/:id/export
func (h *Handlers) ExportDossierHandler(c *gin.Context) {
	export, err := h.exports.Export(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=dossier-%s.json", export.Dossier.ID))
	c.JSON(http.StatusOK, export)
}

// ImportDossierHandler handles POST /api/dossiers/import
func (h *Handlers) ImportDossierHandler(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	dossier, err := h.exports.Import(c.Request.Context(), data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, dossier)
}

// ExportPDFHandler handles GET /api/dossiers/:id/export/pdf
func (h *Handlers) ExportPDFHandler(c *gin.Context) {
	dossier, err := h.workflow.GetDossier(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	pdfData, err := h.pdfService.GenerateDossierPDF(dossier)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=dossier-%s.pdf", dossier.ID))
	c.Data(http.StatusOK, "application/pdf", pdfData)
}

// SendEmailHandler handles POST /api/dossiers/:id/send-email
func (h *Handlers) SendEmailHandler(c *gin.Context) {
	if h.emailService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "email delivery is not configured"})
		return
	}

	var req models.SendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dossier, err := h.workflow.GetDossier(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if dossier.CurrentConcept() == "" {
		respondError(c, services.ErrNoConcept)
		return
	}

	pdfData, err := h.pdfService.GenerateDossierPDF(dossier)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.emailService.SendReportEmail(req.Email, dossier, pdfData); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

// RunStageHandler handles POST /api/dossiers/:id/stages/:key/run
func (h *Handlers) RunStageHandler(c *gin.Context) {
	dossier, result, err := h.workflow.RunStage(c.Request.Context(), c.Param("id"), c.Param("key"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.StageRunResponse{
		StageKey: c.Param("key"),
		Result:   *result,
		Dossier:  dossier,
	})
}

// RunSubstepHandler handles POST /api/dossiers/:id/stages/:key/substeps/:substep/run
func (h *Handlers) RunSubstepHandler(c *gin.Context) {
	dossier, result, err := h.workflow.RunSubstep(c.Request.Context(), c.Param("id"), c.Param("key"), c.Param("substep"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.StageRunResponse{
		StageKey: c.Param("key"),
		Substep:  c.Param("substep"),
		Result:   *result,
		Dossier:  dossier,
	})
}

// EditStageResultHandler handles PUT /api/dossiers/:id/stages/:key/result
func (h *Handlers) EditStageResultHandler(c *gin.Context) {
	var req models.ManualEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dossier, result, err := h.workflow.EditStageResult(c.Request.Context(), c.Param("id"), c.Param("key"), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.StageRunResponse{
		StageKey: c.Param("key"),
		Result:   *result,
		Dossier:  dossier,
	})
}

// ListVersionsHandler handles GET /api/dossiers/:id/versions
func (h *Handlers) ListVersionsHandler(c *gin.Context) {
	versions, err := h.workflow.Versions(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": versions})
}

// RestoreVersionHandler handles POST /api/dossiers/:id/versions/:number/restore
func (h *Handlers) RestoreVersionHandler(c *gin.Context) {
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid version number"})
		return
	}

	dossier, err := h.workflow.RestoreVersion(c.Request.Context(), c.Param("id"), number)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dossier)
}

// StartExpressHandler handles POST /api/dossiers/:id/express
func (h *Handlers) StartExpressHandler(c *gin.Context) {
	job, err := h.express.Start(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, models.ExpressStartResponse{
		JobID:  job.ID,
		Status: job.Status,
	})
}

// ExpressStatusHandler handles GET /api/express/:jobId/status
func (h *Handlers) ExpressStatusHandler(c *gin.Context) {
	job, err := h.express.Get(c.Param("jobId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// StreamExpressHandler handles GET /api/express/:jobId/stream (SSE)
func (h *Handlers) StreamExpressHandler(c *gin.Context) {
	jobID := c.Param("jobId")
	if _, err := h.express.Get(jobID); err != nil {
		respondError(c, err)
		return
	}

	ch, unsubscribe := h.express.Subscribe(jobID)
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	// Re-read after subscribing so a job that finished in between still gets
	// its terminal snapshot delivered
	job, err := h.express.Get(jobID)
	if err != nil {
		respondError(c, err)
		return
	}
	_ = sse.Encode(c.Writer, sse.Event{Event: "snapshot", Data: job})
	c.Writer.Flush()
	if job.Status.Finished() {
		h.sendTerminalEvent(c, jobID)
		return
	}

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			return
		case event, ok := <-ch:
			if !ok {
				// The runner closed the channel; make sure the client still
				// gets the terminal event even if it was dropped earlier
				h.sendTerminalEvent(c, jobID)
				return
			}
			_ = sse.Encode(c.Writer, sse.Event{Event: "progress", Data: event})
			c.Writer.Flush()
			if event.JobStatus.Finished() {
				h.sendTerminalEvent(c, jobID)
				return
			}
		}
	}
}

// sendTerminalEvent emits the closing done/error event with the final job
// snapshot
func (h *Handlers) sendTerminalEvent(c *gin.Context, jobID string) {
	final, err := h.express.Get(jobID)
	if err != nil || !final.Status.Finished() {
		return
	}
	name := "done"
	if final.Status == models.JobStatusFailed {
		name = "error"
	}
	_ = sse.Encode(c.Writer, sse.Event{Event: name, Data: final})
	c.Writer.Flush()
}

// CancelExpressHandler handles POST /api/express/:jobId/cancel
func (h *Handlers) CancelExpressHandler(c *gin.Context) {
	if err := h.express.Cancel(c.Param("jobId")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelling"})
}

// AnalyzeAdjustmentsHandler handles POST /api/dossiers/:id/adjustments/analyze
func (h *Handlers) AnalyzeAdjustmentsHandler(c *gin.Context) {
	var req models.AnalyzeAdjustmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	response, err := h.adjustments.Analyze(c.Request.Context(), c.Param("id"), req.Instruction)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

// ApplyAdjustmentsHandler handles POST /api/dossiers/:id/adjustments/apply
func (h *Handlers) ApplyAdjustmentsHandler(c *gin.Context) {
	var req models.ApplyAdjustmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	response, err := h.adjustments.Apply(c.Request.Context(), c.Param("id"), req.Proposals)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}
