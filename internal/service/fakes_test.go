package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sapdesk/sapdesk/internal/domain"
	"github.com/sapdesk/sapdesk/internal/repository"
)

type memTicketRepo struct {
	seq     int64
	tickets map[int64]*domain.Ticket
	logs    []domain.TicketLog
}

func newMemTicketRepo() *memTicketRepo {
	return &memTicketRepo{tickets: make(map[int64]*domain.Ticket)}
}

func (r *memTicketRepo) CreateWithLogs(_ context.Context, ticket *domain.Ticket, logs []domain.TicketLog) error {
	r.seq++
	ticket.ID = r.seq
	ticket.Number = fmt.Sprintf("T-%03d", r.seq)
	ticket.CreatedAt = time.Now().UTC()
	ticket.UpdatedAt = ticket.CreatedAt
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	for i := range logs {
		logs[i].TicketID = ticket.ID
		r.logs = append(r.logs, logs[i])
	}
	return nil
}

func (r *memTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = time.Now().UTC()
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	return nil
}

func (r *memTicketRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.tickets, id)
	return nil
}

func (r *memTicketRepo) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (r *memTicketRepo) GetByNumber(_ context.Context, number string) (*domain.Ticket, error) {
	for _, ticket := range r.tickets {
		if ticket.Number == number {
			copied := *ticket
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, int, error) {
	var matched []domain.Ticket
	for _, ticket := range r.tickets {
		if filter.Status != nil && ticket.Status != *filter.Status {
			continue
		}
		if filter.CreatedBy != nil && ticket.CreatedBy != *filter.CreatedBy {
			continue
		}
		if filter.AssignedTo != nil && (ticket.AssignedTo == nil || *ticket.AssignedTo != *filter.AssignedTo) {
			continue
		}
		matched = append(matched, *ticket)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	total := len(matched)
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (r *memTicketRepo) Recent(_ context.Context, limit int) ([]domain.Ticket, error) {
	tickets, _, err := r.ListWithFilter(context.Background(), repository.TicketFilter{Limit: limit})
	return tickets, err
}

func (r *memTicketRepo) StatusCounts(context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	for _, ticket := range r.tickets {
		counts[string(ticket.Status)]++
	}
	return counts, nil
}

func (r *memTicketRepo) PriorityCounts(context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	for _, ticket := range r.tickets {
		counts[string(ticket.Priority)]++
	}
	return counts, nil
}

func (r *memTicketRepo) CategoryCounts(context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	for _, ticket := range r.tickets {
		counts[string(ticket.Category)]++
	}
	return counts, nil
}

func (r *memTicketRepo) DailyCounts(context.Context, int) ([]repository.DailyCount, error) {
	return nil, nil
}

func (r *memTicketRepo) AverageResolutionMinutes(context.Context) (float64, error) {
	total, n := 0, 0
	for _, ticket := range r.tickets {
		if ticket.ResolutionMinutes != nil {
			total += *ticket.ResolutionMinutes
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return float64(total) / float64(n), nil
}

func (r *memTicketRepo) ResolvedSince(_ context.Context, since time.Time) (int, error) {
	count := 0
	for _, ticket := range r.tickets {
		if ticket.ResolvedAt != nil && !ticket.ResolvedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *memTicketRepo) ResolvedSLAStats(context.Context) (repository.SLAStats, error) {
	var stats repository.SLAStats
	for _, ticket := range r.tickets {
		if ticket.ResolvedAt == nil {
			continue
		}
		stats.ResolvedTotal++
		due := ticket.CreatedAt.Add(24 * time.Hour)
		if ticket.SLADueDate != nil {
			due = *ticket.SLADueDate
		}
		if !ticket.ResolvedAt.After(due) {
			stats.WithinSLA++
		}
	}
	return stats, nil
}

type memLogRepo struct {
	logs []domain.TicketLog
}

func (r *memLogRepo) Create(_ context.Context, log *domain.TicketLog) error {
	log.ID = int64(len(r.logs) + 1)
	log.CreatedAt = time.Now().UTC()
	r.logs = append(r.logs, *log)
	return nil
}

func (r *memLogRepo) ListByTicket(_ context.Context, ticketID int64) ([]domain.TicketLog, error) {
	var result []domain.TicketLog
	for _, log := range r.logs {
		if log.TicketID == ticketID {
			result = append(result, log)
		}
	}
	return result, nil
}

type memCommentRepo struct {
	seq      int64
	comments map[int64]*domain.TicketComment
}

func newMemCommentRepo() *memCommentRepo {
	return &memCommentRepo{comments: make(map[int64]*domain.TicketComment)}
}

func (r *memCommentRepo) Create(_ context.Context, comment *domain.TicketComment) error {
	r.seq++
	comment.ID = r.seq
	comment.CreatedAt = time.Now().UTC()
	copied := *comment
	r.comments[comment.ID] = &copied
	return nil
}

func (r *memCommentRepo) GetByID(_ context.Context, id int64) (*domain.TicketComment, error) {
	comment, ok := r.comments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *comment
	return &copied, nil
}

func (r *memCommentRepo) UpdateContent(_ context.Context, id int64, content string, editedAt time.Time) (*domain.TicketComment, error) {
	comment, ok := r.comments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	comment.Content = content
	comment.IsEdited = true
	comment.EditedAt = &editedAt
	copied := *comment
	return &copied, nil
}

func (r *memCommentRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.comments[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.comments, id)
	return nil
}

func (r *memCommentRepo) ListByTicket(_ context.Context, ticketID int64, includeInternal bool) ([]domain.TicketComment, error) {
	var result []domain.TicketComment
	for _, comment := range r.comments {
		if comment.TicketID != ticketID {
			continue
		}
		if comment.IsInternal && !includeInternal {
			continue
		}
		result = append(result, *comment)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

type memAttachmentRepo struct {
	seq         int64
	attachments map[int64]*domain.Attachment
}

func newMemAttachmentRepo() *memAttachmentRepo {
	return &memAttachmentRepo{attachments: make(map[int64]*domain.Attachment)}
}

func (r *memAttachmentRepo) Create(_ context.Context, attachment *domain.Attachment) error {
	r.seq++
	attachment.ID = r.seq
	attachment.CreatedAt = time.Now().UTC()
	copied := *attachment
	r.attachments[attachment.ID] = &copied
	return nil
}

func (r *memAttachmentRepo) GetByID(_ context.Context, id int64) (*domain.Attachment, error) {
	attachment, ok := r.attachments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *attachment
	return &copied, nil
}

func (r *memAttachmentRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.attachments[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.attachments, id)
	return nil
}

func (r *memAttachmentRepo) ListByTicket(_ context.Context, ticketID int64) ([]domain.Attachment, error) {
	var result []domain.Attachment
	for _, attachment := range r.attachments {
		if attachment.TicketID == ticketID {
			result = append(result, *attachment)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

type memUserRepo struct {
	seq   int64
	users map[int64]*domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[int64]*domain.User)}
}

func (r *memUserRepo) addUser(name string, isAdmin, isActive bool) *domain.User {
	r.seq++
	user := &domain.User{
		ID:       r.seq,
		AzureID:  fmt.Sprintf("azure-%d", r.seq),
		Email:    strings.ToLower(name) + "@example.com",
		Name:     name,
		IsAdmin:  isAdmin,
		IsActive: isActive,
	}
	r.users[user.ID] = user
	return user
}

func (r *memUserRepo) UpsertFromAzure(_ context.Context, profile repository.AzureProfile) (*domain.User, error) {
	for _, user := range r.users {
		if user.AzureID == profile.AzureID {
			user.Email = profile.Email
			user.Name = profile.Name
			copied := *user
			return &copied, nil
		}
	}
	humans := 0
	for _, existing := range r.users {
		if existing.AzureID != "system" {
			humans++
		}
	}
	r.seq++
	user := &domain.User{
		ID:       r.seq,
		AzureID:  profile.AzureID,
		Email:    profile.Email,
		Name:     profile.Name,
		IsAdmin:  humans == 0,
		IsActive: true,
	}
	r.users[user.ID] = user
	copied := *user
	return &copied, nil
}

func (r *memUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (r *memUserRepo) GetByAzureID(_ context.Context, azureID string) (*domain.User, error) {
	for _, user := range r.users {
		if user.AzureID == azureID {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memUserRepo) ListActive(_ context.Context, _, _ int) ([]domain.User, error) {
	var result []domain.User
	for _, user := range r.users {
		if user.IsActive {
			result = append(result, *user)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *memUserRepo) Search(_ context.Context, query string, _, _ int) ([]domain.User, error) {
	var result []domain.User
	needle := strings.ToLower(query)
	for _, user := range r.users {
		if user.IsActive && (strings.Contains(strings.ToLower(user.Name), needle) || strings.Contains(user.Email, needle)) {
			result = append(result, *user)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *memUserRepo) ListAdmins(context.Context) ([]domain.User, error) {
	var result []domain.User
	for _, user := range r.users {
		if user.IsAdmin {
			result = append(result, *user)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *memUserRepo) Count(context.Context) (int, error) {
	count := 0
	for _, user := range r.users {
		if user.IsActive {
			count++
		}
	}
	return count, nil
}

func (r *memUserRepo) AdminCount(context.Context) (int, error) {
	count := 0
	for _, user := range r.users {
		if user.IsAdmin && user.IsActive {
			count++
		}
	}
	return count, nil
}

func (r *memUserRepo) SetAdminStatus(_ context.Context, id int64, isAdmin bool) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	user.IsAdmin = isAdmin
	copied := *user
	return &copied, nil
}

func (r *memUserRepo) SetActiveStatus(_ context.Context, id int64, isActive bool) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	user.IsActive = isActive
	copied := *user
	return &copied, nil
}

func (r *memUserRepo) UpdateProfile(_ context.Context, id int64, name, department, avatarURL *string) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if name != nil {
		user.Name = *name
	}
	if department != nil {
		user.Department = department
	}
	if avatarURL != nil {
		user.AvatarURL = avatarURL
	}
	copied := *user
	return &copied, nil
}

func (r *memUserRepo) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	user, ok := r.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.LastLogin = &at
	return nil
}

func (r *memUserRepo) EnsureSystemUser(ctx context.Context) (*domain.User, error) {
	if user, err := r.GetByAzureID(ctx, "system"); err == nil {
		return user, nil
	}
	r.seq++
	user := &domain.User{
		ID:       r.seq,
		AzureID:  "system",
		Email:    "system@sapdesk.internal",
		Name:     "Email Pipeline",
		IsActive: true,
	}
	r.users[user.ID] = user
	copied := *user
	return &copied, nil
}

type memAuditRepo struct {
	logs []domain.AdminAuditLog
}

func (r *memAuditRepo) Create(_ context.Context, log *domain.AdminAuditLog) error {
	log.ID = int64(len(r.logs) + 1)
	log.CreatedAt = time.Now().UTC()
	r.logs = append(r.logs, *log)
	return nil
}

func (r *memAuditRepo) List(_ context.Context, _, _ int) ([]domain.AdminAuditLog, error) {
	result := make([]domain.AdminAuditLog, len(r.logs))
	copy(result, r.logs)
	return result, nil
}

type memEmailRepo struct {
	seq    int64
	emails map[int64]*domain.EmailSource
}

func newMemEmailRepo() *memEmailRepo {
	return &memEmailRepo{emails: make(map[int64]*domain.EmailSource)}
}

func (r *memEmailRepo) Create(_ context.Context, email *domain.EmailSource) error {
	r.seq++
	email.ID = r.seq
	email.CreatedAt = time.Now().UTC()
	copied := *email
	r.emails[email.ID] = &copied
	return nil
}

func (r *memEmailRepo) GetByID(_ context.Context, id int64) (*domain.EmailSource, error) {
	email, ok := r.emails[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *email
	return &copied, nil
}

func (r *memEmailRepo) GetByMessageID(_ context.Context, messageID string) (*domain.EmailSource, error) {
	for _, email := range r.emails {
		if email.MessageID == messageID {
			copied := *email
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memEmailRepo) MarkProcessed(_ context.Context, id int64, outcome repository.EmailOutcome) error {
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

func (r *memEmailRepo) ClearOutcome(_ context.Context, id int64) error {
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

func (r *memEmailRepo) Stats(context.Context) (repository.EmailStats, error) {
	var stats repository.EmailStats
	for _, email := range r.emails {
		stats.Total++
		if email.ProcessedAt != nil {
			stats.Processed++
		}
		if email.IsSAPRelated != nil && *email.IsSAPRelated {
			stats.SAPRelated++
		}
		if email.TicketCreatedID != nil {
			stats.TicketsCreated++
		}
		if email.ErrorMessage != nil {
			stats.Errored++
		}
	}
	return stats, nil
}

func (r *memEmailRepo) ListRecent(_ context.Context, limit int) ([]domain.EmailSource, error) {
	return r.list(func(*domain.EmailSource) bool { return true }, limit), nil
}

func (r *memEmailRepo) ListUnprocessed(_ context.Context, limit int) ([]domain.EmailSource, error) {
	return r.list(func(e *domain.EmailSource) bool { return e.ProcessedAt == nil }, limit), nil
}

func (r *memEmailRepo) ListByCategory(_ context.Context, category string, limit, _ int) ([]domain.EmailSource, error) {
	return r.list(func(e *domain.EmailSource) bool {
		return e.DetectedCategory != nil && *e.DetectedCategory == category
	}, limit), nil
}

func (r *memEmailRepo) list(match func(*domain.EmailSource) bool, limit int) []domain.EmailSource {
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
