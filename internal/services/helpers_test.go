package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fiscaal-rapportage/internal/models"
)

// fakeCompleter is the test double for the AI provider. respond inspects the
// prompts and returns the completion text.
type fakeCompleter struct {
	mu      sync.Mutex
	calls   []fakeCall
	respond func(systemPrompt, userPrompt string) (string, error)
}

type fakeCall struct {
	SystemPrompt string
	UserPrompt   string
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (*CompletionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{SystemPrompt: systemPrompt, UserPrompt: userPrompt})
	f.mu.Unlock()

	text := "resultaat"
	if f.respond != nil {
		var err error
		text, err = f.respond(systemPrompt, userPrompt)
		if err != nil {
			return nil, err
		}
	}
	return &CompletionResult{
		Text:             text,
		Model:            "test-model",
		PromptTokens:     10,
		CompletionTokens: 20,
		DurationMs:       1,
	}, nil
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// blockingCompleter blocks every call until its context is cancelled. Used by
// the express cancellation tests.
type blockingCompleter struct {
	started chan struct{}
	once    sync.Once
}

func newBlockingCompleter() *blockingCompleter {
	return &blockingCompleter{started: make(chan struct{})}
}

func (b *blockingCompleter) Complete(ctx context.Context, _, _ string) (*CompletionResult, error) {
	b.once.Do(func() { close(b.started) })
	<-ctx.Done()
	return nil, ctx.Err()
}

// ctxCheckedStore rejects writes once the context is cancelled, the way the
// MongoDB driver does
type ctxCheckedStore struct {
	*MemStore
}

func (s *ctxCheckedStore) InsertDossier(ctx context.Context, dossier *models.Dossier) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemStore.InsertDossier(ctx, dossier)
}

func (s *ctxCheckedStore) UpdateDossier(ctx context.Context, dossier *models.Dossier) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemStore.UpdateDossier(ctx, dossier)
}

// newTestDossier inserts a draft dossier and returns it
func newTestDossier(t *testing.T, store DossierStore) *models.Dossier {
	t.Helper()
	now := time.Now().UTC()
	dossier := &models.Dossier{
		ID:             "d-test",
		Title:          "Herstructurering holding",
		ClientName:     "Jansen BV",
		Advisor:        "A. de Boer",
		Status:         models.DossierStatusDraft,
		Intake:         "Holding met twee werkmaatschappijen, voornemen tot verkoop.",
		StageResults:   map[string]models.StageResult{},
		SubstepResults: map[string]map[string]models.StageResult{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, store.InsertDossier(context.Background(), dossier))
	return dossier
}

// completeStagesThrough runs the pipeline through the given stage key using
// the workflow service
func completeStagesThrough(t *testing.T, workflow *WorkflowService, dossierID, throughKey string) {
	t.Helper()
	for _, stage := range models.WorkflowStages() {
		_, _, err := workflow.RunStage(context.Background(), dossierID, stage.Key)
		require.NoError(t, err, stage.Key)
		if stage.Key == throughKey {
			return
		}
	}
}
