package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sapdesk/sapdesk/internal/classifier"
	"github.com/sapdesk/sapdesk/internal/config"
	"github.com/sapdesk/sapdesk/internal/domain"
	"github.com/sapdesk/sapdesk/internal/events"
	"github.com/sapdesk/sapdesk/internal/mail"
	"github.com/sapdesk/sapdesk/internal/observability"
	"github.com/sapdesk/sapdesk/internal/repository"
	"github.com/sapdesk/sapdesk/internal/service"
	apperrors "github.com/sapdesk/sapdesk/pkg/util"
)

// RunOptions bounds a single pipeline pass. Zero values fall back to the
// configured defaults.
type RunOptions struct {
	// AccessToken carries the triggering user's Graph token on manual runs.
	AccessToken string
	DaysBack    int
	MaxCount    int
	Folder      string
}

// RunResult summarizes one pipeline pass.
type RunResult struct {
	RunID          string    `json:"run_id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Fetched        int       `json:"fetched"`
	Skipped        int       `json:"skipped"`
	Classified     int       `json:"classified"`
	TicketsCreated int       `json:"tickets_created"`
	Errors         int       `json:"errors"`
	// Failure is set when the run aborted before processing, e.g. the
	// mailbox fetch itself failed. Per-item errors only bump Errors.
	Failure string `json:"failure,omitempty"`
}

// Processor drives the email-to-ticket pipeline: fetch, dedupe, classify,
// decide, create.
type Processor struct {
	fetcher    mail.Fetcher
	classifier classifier.Classifier
	emails     repository.EmailSourceRepository
	tickets    *service.TicketService
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	cfg        config.PipelineConfig

	systemUserID int64

	mu      sync.Mutex
	running bool

	now func() time.Time
}

// NewProcessor constructs the pipeline.
func NewProcessor(
	fetcher mail.Fetcher,
	clf classifier.Classifier,
	emails repository.EmailSourceRepository,
	tickets *service.TicketService,
	dispatcher events.Dispatcher,
	metrics *observability.Metrics,
	cfg config.PipelineConfig,
	systemUserID int64,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		fetcher:      fetcher,
		classifier:   clf,
		emails:       emails,
		tickets:      tickets,
		dispatcher:   dispatcher,
		metrics:      metrics,
		cfg:          cfg,
		systemUserID: systemUserID,
		logger:       logger,
		now:          time.Now,
	}
}

// Run executes one pipeline pass. Only one run may be active at a time;
// a second concurrent trigger is rejected. A failed mailbox fetch aborts the
// run with Failure set; everything after that point is isolated per email, so
// one bad message never stops the batch.
func (p *Processor) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil, apperrors.NewConflict("email pipeline run already in progress", nil)
	}
	p.running = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	result := &RunResult{
		RunID:     uuid.New().String(),
		StartedAt: p.now().UTC(),
	}
	runLogger := p.logger.With(zap.String("run_id", result.RunID))
	runLogger.Info("email pipeline run started")

	messages, err := p.fetcher.Fetch(ctx, p.fetchOptions(opts))
	if err != nil {
		result.Failure = err.Error()
		result.FinishedAt = p.now().UTC()
		runLogger.Error("mailbox fetch failed", zap.Error(err))
		return result, nil
	}
	result.Fetched = len(messages)

	for _, msg := range messages {
		stored, created, err := p.ingest(ctx, msg)
		if err != nil {
			result.Errors++
			runLogger.Warn("failed to store email",
				zap.String("message_id", msg.MessageID), zap.Error(err))
			continue
		}
		if !created {
			result.Skipped++
			continue
		}
		p.processOne(ctx, stored, result, runLogger)
	}

	// Pick up anything stored earlier but never processed, e.g. from a run
	// that crashed mid-batch or an admin reprocess request.
	leftovers, err := p.emails.ListUnprocessed(ctx, p.cfg.MaxEmailsCap)
	if err != nil {
		result.Errors++
		runLogger.Warn("failed to list unprocessed emails", zap.Error(err))
	} else {
		for i := range leftovers {
			p.processOne(ctx, &leftovers[i], result, runLogger)
		}
	}

	result.FinishedAt = p.now().UTC()
	p.metrics.RecordPipelineRun()
	_ = p.dispatcher.Publish(ctx, events.Event{
		Type:      events.EventPipelineRunFinished,
		Timestamp: result.FinishedAt,
		Payload: events.PipelineRunFinishedPayload{
			Fetched:        result.Fetched,
			TicketsCreated: result.TicketsCreated,
			Errors:         result.Errors,
		},
	})

	runLogger.Info("email pipeline run finished",
		zap.Int("fetched", result.Fetched),
		zap.Int("skipped", result.Skipped),
		zap.Int("classified", result.Classified),
		zap.Int("tickets_created", result.TicketsCreated),
		zap.Int("errors", result.Errors))
	return result, nil
}

// ReprocessEmail clears a stored email's outcome and runs it through
// classification again.
func (p *Processor) ReprocessEmail(ctx context.Context, emailID int64) (*domain.EmailSource, error) {
	if err := p.emails.ClearOutcome(ctx, emailID); err != nil {
		return nil, apperrors.MapError(err)
	}
	email, err := p.emails.GetByID(ctx, emailID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	result := &RunResult{RunID: uuid.New().String()}
	p.processOne(ctx, email, result, p.logger.With(zap.String("run_id", result.RunID)))

	refreshed, err := p.emails.GetByID(ctx, emailID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return refreshed, nil
}

func (p *Processor) fetchOptions(opts RunOptions) mail.FetchOptions {
	daysBack := opts.DaysBack
	if daysBack <= 0 {
		daysBack = p.cfg.DefaultDaysBack
	}
	maxCount := opts.MaxCount
	if maxCount <= 0 {
		maxCount = p.cfg.DefaultMaxEmails
	}
	if p.cfg.MaxEmailsCap > 0 && maxCount > p.cfg.MaxEmailsCap {
		maxCount = p.cfg.MaxEmailsCap
	}
	folder := opts.Folder
	if folder == "" {
		folder = p.cfg.DefaultFolder
	}
	return mail.FetchOptions{
		AccessToken: opts.AccessToken,
		DaysBack:    daysBack,
		MaxCount:    maxCount,
		Folder:      folder,
	}
}

// ingest stores a fetched message. created is false when the message ID was
// already on record; losing the unique-index race to a concurrent run counts
// the same as finding it stored.
func (p *Processor) ingest(ctx context.Context, msg mail.Message) (*domain.EmailSource, bool, error) {
	email := &domain.EmailSource{
		MessageID:   msg.MessageID,
		FromAddress: msg.From,
		ToAddress:   msg.To,
		Subject:     msg.Subject,
		ReceivedAt:  msg.ReceivedAt,
		RawHeaders:  msg.Headers,
	}
	if msg.BodyText != "" {
		email.BodyText = &msg.BodyText
	}
	if msg.BodyHTML != "" {
		email.BodyHTML = &msg.BodyHTML
	}

	if err := p.emails.Create(ctx, email); err != nil {
		if apperrors.IsUniqueViolation(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return email, true, nil
}

// processOne classifies a stored email and records the outcome exactly once.
func (p *Processor) processOne(ctx context.Context, email *domain.EmailSource, result *RunResult, runLogger *zap.Logger) {
	body := ""
	if email.BodyText != nil {
		body = *email.BodyText
	}

	verdict, err := p.classifier.Classify(ctx, classifier.Input{
		Subject:  email.Subject,
		From:     email.FromAddress,
		BodyText: body,
	})
	if err != nil {
		result.Errors++
		errMsg := err.Error()
		if markErr := p.emails.MarkProcessed(ctx, email.ID, repository.EmailOutcome{
			ProcessedAt:     p.now().UTC(),
			TicketCreatedID: email.TicketCreatedID,
			ErrorMessage:    &errMsg,
		}); markErr != nil {
			runLogger.Warn("failed to record classification error",
				zap.Int64("email_id", email.ID), zap.Error(markErr))
		}
		runLogger.Warn("classification failed",
			zap.Int64("email_id", email.ID), zap.Error(err))
		return
	}
	result.Classified++

	outcome := repository.EmailOutcome{
		ProcessedAt:      p.now().UTC(),
		IsSAPRelated:     &verdict.IsSAPRelated,
		DetectedCategory: &verdict.Category,
		LLMAnalysis:      analysisPayload(verdict),
		// An email maps to at most one ticket; a record that already produced
		// one keeps the reference across reprocessing.
		TicketCreatedID:  email.TicketCreatedID,
	}

	if email.TicketCreatedID == nil && p.shouldCreateTicket(verdict) {
		ticket, err := p.tickets.CreateFromEmail(ctx, p.systemUserID, email, verdict)
		if err != nil {
			result.Errors++
			errMsg := err.Error()
			outcome.ErrorMessage = &errMsg
			runLogger.Warn("ticket creation failed",
				zap.Int64("email_id", email.ID), zap.Error(err))
		} else {
			result.TicketsCreated++
			outcome.TicketCreatedID = &ticket.ID
		}
	}

	if err := p.emails.MarkProcessed(ctx, email.ID, outcome); err != nil {
		result.Errors++
		runLogger.Warn("failed to record email outcome",
			zap.Int64("email_id", email.ID), zap.Error(err))
	}
}

// shouldCreateTicket applies the decision policy: the email must be judged
// SAP-related with confidence at or above the threshold, and auto-creation
// must be enabled.
func (p *Processor) shouldCreateTicket(verdict *classifier.Result) bool {
	if !p.cfg.AutoCreateTickets {
		return false
	}
	return verdict.IsSAPRelated && verdict.Confidence >= p.cfg.ConfidenceThreshold
}

func analysisPayload(verdict *classifier.Result) map[string]any {
	return map[string]any{
		"is_sap_related":     verdict.IsSAPRelated,
		"confidence":         verdict.Confidence,
		"category":           verdict.Category,
		"suggested_title":    verdict.SuggestedTitle,
		"suggested_priority": verdict.SuggestedPriority,
		"key_points":         verdict.KeyPoints,
		"raw":                verdict.Raw,
	}
}
