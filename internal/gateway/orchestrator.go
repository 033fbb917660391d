package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bayardlab/bayard-gateway/internal/llm"
	"github.com/bayardlab/bayard-gateway/internal/metrics"
	"github.com/bayardlab/bayard-gateway/internal/search/corpus"
	"github.com/bayardlab/bayard-gateway/internal/storage/models"
)

// Classifier maps free text to an intent. Implementations degrade to
// search on failure rather than returning an error.
type Classifier interface {
	Classify(ctx context.Context, text string) llm.Intent
}

// SearchIndex retrieves ranked, deduplicated corpus documents.
type SearchIndex interface {
	Search(ctx context.Context, text string) ([]corpus.Document, error)
}

// Generator produces reflections, grounded answers, and conversational
// responses.
type Generator interface {
	Reflect(ctx context.Context, docs []corpus.Document, text string) (llm.Reflection, error)
	Synthesize(ctx context.Context, text string, docs []corpus.Document, history []models.Turn) (string, error)
	Converse(ctx context.Context, text string, history []models.Turn) (string, error)
}

// HistoryStore reads and appends conversation turns.
type HistoryStore interface {
	Turns(ctx context.Context, conversationID string) ([]models.Turn, error)
	AppendTurn(ctx context.Context, turn *models.Turn) error
}

// RunRecorder persists runs and feedback best-effort; the booleans exist
// to be discarded after logging.
type RunRecorder interface {
	RecordRun(ctx context.Context, run *models.Run) bool
	RecordFeedback(ctx context.Context, fb *models.FeedbackRecord) bool
}

// Request is one caller query, immutable once received.
type Request struct {
	InputText      string
	FeedbackRating *float64
	ConversationID string
}

// SearchOutcome is the full payload of a completed search-branch request.
type SearchOutcome struct {
	RunID          string
	Timestamp      string
	InputText      string
	Reflection     string
	Score          *int
	Documents      []corpus.Document
	ModelOutput    string
	FeedbackID     string
	ConversationID string
}

// ConversationOutcome carries only the conversational answer.
type ConversationOutcome struct {
	ModelOutput string
}

// Outcome is the tagged result of one pipeline dispatch: exactly one of
// Search or Conversation is set. The branches share no state.
type Outcome struct {
	Search       *SearchOutcome
	Conversation *ConversationOutcome
}

const timestampLayout = "2006-01-02 15:04:05"

// Orchestrator sequences one request through classification, the selected
// branch, and persistence, and assembles the outcome.
type Orchestrator struct {
	classifier Classifier
	index      SearchIndex
	generator  Generator
	history    HistoryStore
	recorder   RunRecorder
	logger     *zap.Logger
	now        func() time.Time
}

func NewOrchestrator(classifier Classifier, index SearchIndex, generator Generator, history HistoryStore, recorder RunRecorder, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		classifier: classifier,
		index:      index,
		generator:  generator,
		history:    history,
		recorder:   recorder,
		logger:     logger,
		now:        time.Now,
	}
}

// Process runs the pipeline for one request. A non-nil error means no
// answer could be produced; every other fault is degraded or swallowed
// per stage.
func (o *Orchestrator) Process(ctx context.Context, req Request) (*Outcome, error) {
	if req.InputText == "" {
		return nil, ErrEmptyInput
	}

	start := o.now()

	classifyStart := o.now()
	intent := o.classifier.Classify(ctx, req.InputText)
	metrics.StageDuration.WithLabelValues("classify").Observe(o.now().Sub(classifyStart).Seconds())

	o.logger.Info("Query classified",
		zap.String("intent", string(intent)),
		zap.String("conversation_id", req.ConversationID),
	)

	var outcome *Outcome
	var err error
	if intent == llm.IntentConversation {
		outcome, err = o.runConversationBranch(ctx, req)
	} else {
		outcome, err = o.runSearchBranch(ctx, req)
	}

	branch := string(intent)
	if err != nil {
		metrics.QueryTotal.WithLabelValues(branch, "error").Inc()
		return nil, err
	}

	metrics.QueryTotal.WithLabelValues(branch, "ok").Inc()
	metrics.QueryDuration.WithLabelValues(branch).Observe(o.now().Sub(start).Seconds())
	return outcome, nil
}

func (o *Orchestrator) runSearchBranch(ctx context.Context, req Request) (*Outcome, error) {
	history := o.loadHistory(ctx, req.ConversationID)

	searchStart := o.now()
	docs, err := o.index.Search(ctx, req.InputText)
	if err != nil {
		// Retrieval faults degrade to an empty result set; the
		// synthesizer answers from an empty context.
		o.logger.Warn("Corpus retrieval failed, continuing with no documents", zap.Error(err))
		docs = nil
	}
	metrics.StageDuration.WithLabelValues("search").Observe(o.now().Sub(searchStart).Seconds())
	metrics.RetrievalDocuments.Observe(float64(len(docs)))

	runID := uuid.New().String()
	timestamp := o.now().Format(timestampLayout)

	// Reflection and synthesis both consume the retrieval result and
	// neither depends on the other, so they run concurrently.
	var wg sync.WaitGroup
	var reflection llm.Reflection

	wg.Add(1)
	go func() {
		defer wg.Done()
		reflectStart := o.now()
		r, rerr := o.generator.Reflect(ctx, docs, req.InputText)
		if rerr != nil {
			o.logger.Warn("Search quality reflection failed", zap.Error(rerr))
			return
		}
		reflection = r
		metrics.StageDuration.WithLabelValues("reflect").Observe(o.now().Sub(reflectStart).Seconds())
	}()

	synthStart := o.now()
	modelOutput, err := o.generator.Synthesize(ctx, req.InputText, docs, history)
	synthElapsed := o.now().Sub(synthStart)
	wg.Wait()
	if err != nil {
		o.logger.Error("Answer synthesis failed", zap.Error(err), zap.String("run_id", runID))
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}
	metrics.StageDuration.WithLabelValues("synthesize").Observe(synthElapsed.Seconds())

	feedbackID := uuid.New().String()

	// Recording is driven by the presence of feedback: without a rating
	// nothing is durably persisted for this request.
	if req.FeedbackRating != nil {
		o.recorder.RecordFeedback(ctx, &models.FeedbackRecord{
			FeedbackID: feedbackID,
			RunID:      runID,
			Rating:     *req.FeedbackRating,
			Timestamp:  timestamp,
		})
		o.recorder.RecordRun(ctx, &models.Run{
			RunID:       runID,
			Timestamp:   timestamp,
			InputText:   req.InputText,
			ModelOutput: modelOutput,
		})
	}

	o.appendTurn(ctx, req.ConversationID, req.InputText, modelOutput)

	return &Outcome{Search: &SearchOutcome{
		RunID:          runID,
		Timestamp:      timestamp,
		InputText:      req.InputText,
		Reflection:     reflection.Text,
		Score:          reflection.Score,
		Documents:      docs,
		ModelOutput:    modelOutput,
		FeedbackID:     feedbackID,
		ConversationID: req.ConversationID,
	}}, nil
}

func (o *Orchestrator) runConversationBranch(ctx context.Context, req Request) (*Outcome, error) {
	history := o.loadHistory(ctx, req.ConversationID)

	modelOutput, err := o.generator.Converse(ctx, req.InputText, history)
	if err != nil {
		o.logger.Error("Conversation response failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}

	o.appendTurn(ctx, req.ConversationID, req.InputText, modelOutput)

	return &Outcome{Conversation: &ConversationOutcome{ModelOutput: modelOutput}}, nil
}

func (o *Orchestrator) loadHistory(ctx context.Context, conversationID string) []models.Turn {
	if conversationID == "" {
		return nil
	}
	turns, err := o.history.Turns(ctx, conversationID)
	if err != nil {
		o.logger.Warn("Failed to load conversation history",
			zap.Error(err),
			zap.String("conversation_id", conversationID),
		)
		return nil
	}
	return turns
}

func (o *Orchestrator) appendTurn(ctx context.Context, conversationID, userInput, modelOutput string) {
	if conversationID == "" {
		return
	}
	err := o.history.AppendTurn(ctx, &models.Turn{
		ConversationID: conversationID,
		UserInput:      userInput,
		ModelOutput:    modelOutput,
	})
	if err != nil {
		o.logger.Warn("Failed to append conversation turn",
			zap.Error(err),
			zap.String("conversation_id", conversationID),
		)
	}
}
