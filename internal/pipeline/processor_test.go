package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sapdesk/sapdesk/internal/classifier"
	"github.com/sapdesk/sapdesk/internal/config"
	"github.com/sapdesk/sapdesk/internal/domain"
	"github.com/sapdesk/sapdesk/internal/events"
	"github.com/sapdesk/sapdesk/internal/mail"
	"github.com/sapdesk/sapdesk/internal/observability"
	"github.com/sapdesk/sapdesk/internal/repository"
	"github.com/sapdesk/sapdesk/internal/service"
)

type fakeFetcher struct {
	messages []mail.Message
	err      error
}

func (f *fakeFetcher) Fetch(context.Context, mail.FetchOptions) ([]mail.Message, error) {
	return f.messages, f.err
}

type fakeClassifier struct {
	verdicts map[string]*classifier.Result
	errFor   map[string]error
}

func (f *fakeClassifier) Classify(_ context.Context, in classifier.Input) (*classifier.Result, error) {
	if err, ok := f.errFor[in.Subject]; ok {
		return nil, err
	}
	if verdict, ok := f.verdicts[in.Subject]; ok {
		return verdict, nil
	}
	return &classifier.Result{IsSAPRelated: false, Confidence: 0.1, Category: "OTHER"}, nil
}

// fakeEmailRepo enforces message-id uniqueness the way the database does,
// surfacing duplicates as SQLSTATE 23505.
type fakeEmailRepo struct {
	mu     sync.Mutex
	seq    int64
	emails map[int64]*domain.EmailSource
}

func newFakeEmailRepo() *fakeEmailRepo {
	return &fakeEmailRepo{emails: make(map[int64]*domain.EmailSource)}
}

func (r *fakeEmailRepo) Create(_ context.Context, email *domain.EmailSource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.emails {
		if existing.MessageID == email.MessageID {
			return &pgconn.PgError{Code: "23505", ConstraintName: "email_sources_message_id_key"}
		}
	}
	r.seq++
	email.ID = r.seq
	email.CreatedAt = time.Now().UTC()
	copied := *email
	r.emails[email.ID] = &copied
	return nil
}

func (r *fakeEmailRepo) GetByID(_ context.Context, id int64) (*domain.EmailSource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email, ok := r.emails[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *email
	return &copied, nil
}

func (r *fakeEmailRepo) GetByMessageID(_ context.Context, messageID string) (*domain.EmailSource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, email := range r.emails {
		if email.MessageID == messageID {
			copied := *email
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeEmailRepo) MarkProcessed(_ context.Context, id int64, outcome repository.EmailOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	email, ok := r.emails[id]
	if !ok {
		return pgx.ErrNoRows
	}
	processedAt := outcome.ProcessedAt
	email.ProcessedAt = &processedAt
	email.IsSAPRelated = outcome.IsSAPRelated
	email.DetectedCategory = outcome.DetectedCategory
	email.LLMAnalysis = outcome.LLMAnalysis
	email.TicketCreatedID = outcome.TicketCreatedID
	email.ErrorMessage = outcome.ErrorMessage
	return nil
}

func (r *fakeEmailRepo) ClearOutcome(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	email, ok := r.emails[id]
	if !ok {
		return pgx.ErrNoRows
	}
	email.ProcessedAt = nil
	email.IsSAPRelated = nil
	email.DetectedCategory = nil
	email.LLMAnalysis = nil
	email.ErrorMessage = nil
	return nil
}

func (r *fakeEmailRepo) Stats(context.Context) (repository.EmailStats, error) {
	return repository.EmailStats{}, nil
}

func (r *fakeEmailRepo) ListRecent(_ context.Context, limit int) ([]domain.EmailSource, error) {
	return r.list(func(*domain.EmailSource) bool { return true }, limit), nil
}

func (r *fakeEmailRepo) ListUnprocessed(_ context.Context, limit int) ([]domain.EmailSource, error) {
	return r.list(func(e *domain.EmailSource) bool { return e.ProcessedAt == nil }, limit), nil
}

func (r *fakeEmailRepo) ListByCategory(_ context.Context, category string, limit, _ int) ([]domain.EmailSource, error) {
	return r.list(func(e *domain.EmailSource) bool {
		return e.DetectedCategory != nil && *e.DetectedCategory == category
	}, limit), nil
}

func (r *fakeEmailRepo) list(match func(*domain.EmailSource) bool, limit int) []domain.EmailSource {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.EmailSource
	for _, email := range r.emails {
		if match(email) {
			result = append(result, *email)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

type fakeTicketRepo struct {
	mu      sync.Mutex
	seq     int64
	tickets map[int64]*domain.Ticket
	failOn  string
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: make(map[int64]*domain.Ticket)}
}

func (r *fakeTicketRepo) CreateWithLogs(_ context.Context, ticket *domain.Ticket, _ []domain.TicketLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn != "" && ticket.Title == r.failOn {
		return errors.New("insert failed")
	}
	r.seq++
	ticket.ID = r.seq
	ticket.Number = fmt.Sprintf("T-%03d", r.seq)
	ticket.CreatedAt = time.Now().UTC()
	ticket.UpdatedAt = ticket.CreatedAt
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	return nil
}

func (r *fakeTicketRepo) Update(context.Context, *domain.Ticket) error { return nil }
func (r *fakeTicketRepo) Delete(context.Context, int64) error          { return nil }

func (r *fakeTicketRepo) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (r *fakeTicketRepo) GetByNumber(context.Context, string) (*domain.Ticket, error) {
	return nil, pgx.ErrNoRows
}

func (r *fakeTicketRepo) ListWithFilter(context.Context, repository.TicketFilter) ([]domain.Ticket, int, error) {
	return nil, 0, nil
}
func (r *fakeTicketRepo) Recent(context.Context, int) ([]domain.Ticket, error) { return nil, nil }
func (r *fakeTicketRepo) StatusCounts(context.Context) (map[string]int, error) {
	return map[string]int{}, nil
}
func (r *fakeTicketRepo) PriorityCounts(context.Context) (map[string]int, error) {
	return map[string]int{}, nil
}
func (r *fakeTicketRepo) CategoryCounts(context.Context) (map[string]int, error) {
	return map[string]int{}, nil
}
func (r *fakeTicketRepo) DailyCounts(context.Context, int) ([]repository.DailyCount, error) {
	return nil, nil
}
func (r *fakeTicketRepo) AverageResolutionMinutes(context.Context) (float64, error) { return 0, nil }
func (r *fakeTicketRepo) ResolvedSince(context.Context, time.Time) (int, error)     { return 0, nil }
func (r *fakeTicketRepo) ResolvedSLAStats(context.Context) (repository.SLAStats, error) {
	return repository.SLAStats{}, nil
}

type fakeLogRepo struct{}

func (fakeLogRepo) Create(_ context.Context, log *domain.TicketLog) error { return nil }
func (fakeLogRepo) ListByTicket(context.Context, int64) ([]domain.TicketLog, error) {
	return nil, nil
}

type fakeCommentRepo struct{}

func (fakeCommentRepo) Create(context.Context, *domain.TicketComment) error { return nil }
func (fakeCommentRepo) GetByID(context.Context, int64) (*domain.TicketComment, error) {
	return nil, pgx.ErrNoRows
}
func (fakeCommentRepo) UpdateContent(context.Context, int64, string, time.Time) (*domain.TicketComment, error) {
	return nil, pgx.ErrNoRows
}
func (fakeCommentRepo) Delete(context.Context, int64) error { return nil }
func (fakeCommentRepo) ListByTicket(context.Context, int64, bool) ([]domain.TicketComment, error) {
	return nil, nil
}

type fakeAttachmentRepo struct{}

func (fakeAttachmentRepo) Create(context.Context, *domain.Attachment) error { return nil }
func (fakeAttachmentRepo) GetByID(context.Context, int64) (*domain.Attachment, error) {
	return nil, pgx.ErrNoRows
}
func (fakeAttachmentRepo) Delete(context.Context, int64) error { return nil }
func (fakeAttachmentRepo) ListByTicket(context.Context, int64) ([]domain.Attachment, error) {
	return nil, nil
}

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		AutoCreateTickets:   true,
		ConfidenceThreshold: 0.75,
		DefaultDaysBack:     1,
		DefaultMaxEmails:    100,
		MaxEmailsCap:        500,
		DefaultFolder:       "inbox",
	}
}

type pipelineFixture struct {
	processor  *Processor
	emails     *fakeEmailRepo
	tickets    *fakeTicketRepo
	fetcher    *fakeFetcher
	classifier *fakeClassifier
}

func newFixture(cfg config.PipelineConfig) *pipelineFixture {
	emails := newFakeEmailRepo()
	tickets := newFakeTicketRepo()
	fetcher := &fakeFetcher{}
	clf := &fakeClassifier{
		verdicts: make(map[string]*classifier.Result),
		errFor:   make(map[string]error),
	}
	dispatcher := events.NewInMemoryDispatcher()
	ticketService := service.NewTicketService(tickets, fakeLogRepo{}, fakeCommentRepo{}, fakeAttachmentRepo{}, dispatcher, zap.NewNop())

	processor := NewProcessor(fetcher, clf, emails, ticketService, dispatcher,
		observability.NewMetrics(), cfg, 99, zap.NewNop())
	return &pipelineFixture{
		processor:  processor,
		emails:     emails,
		tickets:    tickets,
		fetcher:    fetcher,
		classifier: clf,
	}
}

func msg(id, subject string) mail.Message {
	return mail.Message{
		MessageID:  id,
		From:       "user@example.com",
		To:         "support@sapdesk.local",
		Subject:    subject,
		BodyText:   "body of " + subject,
		ReceivedAt: time.Now().UTC(),
	}
}

func sapVerdict(confidence float64) *classifier.Result {
	return &classifier.Result{
		IsSAPRelated:      true,
		Confidence:        confidence,
		Category:          "FICO",
		SuggestedTitle:    "Posting error",
		SuggestedPriority: "High",
	}
}

func TestRunCreatesTicketAboveThreshold(t *testing.T) {
	fx := newFixture(testPipelineConfig())
	fx.fetcher.messages = []mail.Message{msg("<a@x>", "sap issue")}
	fx.classifier.verdicts["sap issue"] = sapVerdict(0.9)

	result, err := fx.processor.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Fetched)
	assert.Equal(t, 1, result.Classified)
	assert.Equal(t, 1, result.TicketsCreated)
	assert.Equal(t, 0, result.Errors)
	assert.Empty(t, result.Failure)

	stored, err := fx.emails.GetByMessageID(context.Background(), "<a@x>")
	require.NoError(t, err)
	require.NotNil(t, stored.ProcessedAt)
	require.NotNil(t, stored.TicketCreatedID)
	require.NotNil(t, stored.IsSAPRelated)
	assert.True(t, *stored.IsSAPRelated)

	ticket, err := fx.tickets.GetByID(context.Background(), *stored.TicketCreatedID)
	require.NoError(t, err)
	assert.Equal(t, int64(99), ticket.CreatedBy)
	require.NotNil(t, ticket.SourceEmailID)
	assert.Equal(t, "<a@x>", *ticket.SourceEmailID)
}

func TestThresholdBoundary(t *testing.T) {
	cases := []struct {
		name       string
		confidence float64
		wantTicket bool
	}{
		{"exactly at threshold", 0.75, true},
		{"just below threshold", 0.749, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newFixture(testPipelineConfig())
			fx.fetcher.messages = []mail.Message{msg("<b@x>", "boundary case")}
			fx.classifier.verdicts["boundary case"] = sapVerdict(tc.confidence)

			result, err := fx.processor.Run(context.Background(), RunOptions{})
			require.NoError(t, err)

			if tc.wantTicket {
				assert.Equal(t, 1, result.TicketsCreated)
			} else {
				assert.Equal(t, 0, result.TicketsCreated)
				stored, err := fx.emails.GetByMessageID(context.Background(), "<b@x>")
				require.NoError(t, err)
				require.NotNil(t, stored.ProcessedAt)
				assert.Nil(t, stored.TicketCreatedID)
			}
		})
	}
}

func TestUnrelatedEmailGetsNoTicket(t *testing.T) {
	fx := newFixture(testPipelineConfig())
	fx.fetcher.messages = []mail.Message{msg("<c@x>", "newsletter")}
	fx.classifier.verdicts["newsletter"] = &classifier.Result{
		IsSAPRelated: false, Confidence: 0.95, Category: "OTHER",
	}

	result, err := fx.processor.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.TicketsCreated)

	stored, err := fx.emails.GetByMessageID(context.Background(), "<c@x>")
	require.NoError(t, err)
	require.NotNil(t, stored.ProcessedAt)
	require.NotNil(t, stored.IsSAPRelated)
	assert.False(t, *stored.IsSAPRelated)
}

func TestDuplicateMessagesAreSkipped(t *testing.T) {
	fx := newFixture(testPipelineConfig())
	fx.fetcher.messages = []mail.Message{msg("<d@x>", "sap issue")}
	fx.classifier.verdicts["sap issue"] = sapVerdict(0.9)

	first, err := fx.processor.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, first.TicketsCreated)

	second, err := fx.processor.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Fetched)
	assert.Equal(t, 1, second.Skipped)
	assert.Equal(t, 0, second.TicketsCreated)
	assert.Equal(t, 0, second.Errors)
}

func TestPerItemIsolation(t *testing.T) {
	fx := newFixture(testPipelineConfig())
	fx.fetcher.messages = []mail.Message{
		msg("<e1@x>", "good one"),
		msg("<e2@x>", "broken one"),
		msg("<e3@x>", "another good one"),
	}
	fx.classifier.verdicts["good one"] = sapVerdict(0.9)
	fx.classifier.errFor["broken one"] = errors.New("llm unavailable")
	fx.classifier.verdicts["another good one"] = sapVerdict(0.8)

	result, err := fx.processor.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Fetched)
	assert.Equal(t, 2, result.Classified)
	assert.Equal(t, 2, result.TicketsCreated)
	assert.Equal(t, 1, result.Errors)

	broken, err := fx.emails.GetByMessageID(context.Background(), "<e2@x>")
	require.NoError(t, err)
	require.NotNil(t, broken.ProcessedAt)
	require.NotNil(t, broken.ErrorMessage)
	assert.Contains(t, *broken.ErrorMessage, "llm unavailable")
}

func TestFatalFetchFailure(t *testing.T) {
	fx := newFixture(testPipelineConfig())
	fx.fetcher.err = errors.New("graph unreachable")

	result, err := fx.processor.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Failure)
	assert.Equal(t, 0, result.Fetched)
	assert.Equal(t, 0, result.TicketsCreated)
}

func TestRunSummaryCounts(t *testing.T) {
	fx := newFixture(testPipelineConfig())

	// Two messages already on record from an earlier pass.
	for _, known := range []string{"<k1@x>", "<k2@x>"} {
		require.NoError(t, fx.emails.Create(context.Background(), &domain.EmailSource{
			MessageID:   known,
			FromAddress: "user@example.com",
			Subject:     "seen before",
			ReceivedAt:  time.Now().UTC(),
		}))
		require.NoError(t, fx.emails.MarkProcessed(context.Background(), fx.emails.seq, repository.EmailOutcome{
			ProcessedAt: time.Now().UTC(),
		}))
	}

	fx.fetcher.messages = []mail.Message{
		msg("<k1@x>", "seen before"),
		msg("<k2@x>", "seen before"),
		msg("<n1@x>", "new sap one"),
		msg("<n2@x>", "new sap two"),
		msg("<n3@x>", "new broken"),
	}
	fx.classifier.verdicts["new sap one"] = sapVerdict(0.9)
	fx.classifier.verdicts["new sap two"] = sapVerdict(0.8)
	fx.classifier.errFor["new broken"] = errors.New("timeout")

	result, err := fx.processor.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 5, result.Fetched)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 2, result.Classified)
	assert.Equal(t, 2, result.TicketsCreated)
	assert.Equal(t, 1, result.Errors)
}

func TestAutoCreateDisabled(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.AutoCreateTickets = false
	fx := newFixture(cfg)
	fx.fetcher.messages = []mail.Message{msg("<f@x>", "sap issue")}
	fx.classifier.verdicts["sap issue"] = sapVerdict(0.99)

	result, err := fx.processor.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Classified)
	assert.Equal(t, 0, result.TicketsCreated)
}

func TestTicketCreationFailureIsRecorded(t *testing.T) {
	fx := newFixture(testPipelineConfig())
	fx.tickets.failOn = "Posting error"
	fx.fetcher.messages = []mail.Message{msg("<g@x>", "sap issue")}
	fx.classifier.verdicts["sap issue"] = sapVerdict(0.9)

	result, err := fx.processor.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, 0, result.TicketsCreated)

	stored, err := fx.emails.GetByMessageID(context.Background(), "<g@x>")
	require.NoError(t, err)
	require.NotNil(t, stored.ProcessedAt)
	require.NotNil(t, stored.ErrorMessage)
	assert.Nil(t, stored.TicketCreatedID)
}

func TestResumeUnprocessedEmails(t *testing.T) {
	fx := newFixture(testPipelineConfig())

	// A record left behind without an outcome, as if a prior run crashed.
	require.NoError(t, fx.emails.Create(context.Background(), &domain.EmailSource{
		MessageID:   "<old@x>",
		FromAddress: "user@example.com",
		Subject:     "stranded sap issue",
		ReceivedAt:  time.Now().UTC().Add(-48 * time.Hour),
	}))
	fx.classifier.verdicts["stranded sap issue"] = sapVerdict(0.9)

	result, err := fx.processor.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Fetched)
	assert.Equal(t, 1, result.Classified)
	assert.Equal(t, 1, result.TicketsCreated)

	stored, err := fx.emails.GetByMessageID(context.Background(), "<old@x>")
	require.NoError(t, err)
	require.NotNil(t, stored.ProcessedAt)
	require.NotNil(t, stored.TicketCreatedID)
}

func TestConcurrentRunRejected(t *testing.T) {
	fx := newFixture(testPipelineConfig())

	release := make(chan struct{})
	started := make(chan struct{})
	fx.classifier.verdicts["slow"] = sapVerdict(0.9)
	fx.fetcher.messages = []mail.Message{msg("<h@x>", "slow")}

	blockingFetcher := &blockingFetcherImpl{inner: fx.fetcher, started: started, release: release}
	fx.processor.fetcher = blockingFetcher

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := fx.processor.Run(context.Background(), RunOptions{})
		assert.NoError(t, err)
	}()

	<-started
	_, err := fx.processor.Run(context.Background(), RunOptions{})
	require.Error(t, err)

	close(release)
	wg.Wait()
}

type blockingFetcherImpl struct {
	inner   mail.Fetcher
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingFetcherImpl) Fetch(ctx context.Context, opts mail.FetchOptions) ([]mail.Message, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return b.inner.Fetch(ctx, opts)
}

func TestReprocessEmail(t *testing.T) {
	fx := newFixture(testPipelineConfig())
	fx.fetcher.messages = []mail.Message{msg("<r@x>", "first unrelated")}
	fx.classifier.verdicts["first unrelated"] = &classifier.Result{
		IsSAPRelated: false, Confidence: 0.2, Category: "OTHER",
	}

	_, err := fx.processor.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	stored, err := fx.emails.GetByMessageID(context.Background(), "<r@x>")
	require.NoError(t, err)
	assert.Nil(t, stored.TicketCreatedID)

	// Classifier now recognizes it.
	fx.classifier.verdicts["first unrelated"] = sapVerdict(0.9)

	refreshed, err := fx.processor.ReprocessEmail(context.Background(), stored.ID)
	require.NoError(t, err)
	require.NotNil(t, refreshed.ProcessedAt)
	require.NotNil(t, refreshed.TicketCreatedID)
}

func TestReprocessNeverCreatesSecondTicket(t *testing.T) {
	fx := newFixture(testPipelineConfig())
	fx.fetcher.messages = []mail.Message{msg("<s@x>", "sap issue")}
	fx.classifier.verdicts["sap issue"] = sapVerdict(0.9)

	_, err := fx.processor.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	stored, err := fx.emails.GetByMessageID(context.Background(), "<s@x>")
	require.NoError(t, err)
	require.NotNil(t, stored.TicketCreatedID)
	firstTicketID := *stored.TicketCreatedID

	refreshed, err := fx.processor.ReprocessEmail(context.Background(), stored.ID)
	require.NoError(t, err)
	require.NotNil(t, refreshed.TicketCreatedID)
	assert.Equal(t, firstTicketID, *refreshed.TicketCreatedID)
	assert.Len(t, fx.tickets.tickets, 1)
}

func TestFetchOptionsClampedToCap(t *testing.T) {
	cfg := testPipelineConfig()
	cfg.MaxEmailsCap = 50
	fx := newFixture(cfg)

	opts := fx.processor.fetchOptions(RunOptions{MaxCount: 10000})
	assert.Equal(t, 50, opts.MaxCount)

	opts = fx.processor.fetchOptions(RunOptions{})
	assert.Equal(t, 50, opts.MaxCount)

	opts = fx.processor.fetchOptions(RunOptions{DaysBack: 7, Folder: "archive"})
	assert.Equal(t, 7, opts.DaysBack)
	assert.Equal(t, "archive", opts.Folder)
}
