package mail

import (
	"context"
	"fmt"
	"time"
)

// MockFetcher returns a deterministic batch of sample messages. Used in
// development when no Graph credentials are configured.
type MockFetcher struct {
	now func() time.Time
}

// NewMockFetcher builds a mock fetcher.
func NewMockFetcher() *MockFetcher {
	return &MockFetcher{now: time.Now}
}

var mockSamples = []struct {
	from    string
	subject string
	body    string
}{
	{"jane.doe@example.com", "SAP MM purchase order stuck in approval", "PO 4500012345 has been sitting in the release strategy for two days. Transaction ME28 shows no pending approver."},
	{"ops@example.com", "FICO posting period closed error", "Users get error F5 201 when posting in FB01. Period 08/2026 appears closed in OB52."},
	{"newsletter@vendors.example.com", "Weekly industry digest", "Top stories this week in enterprise software."},
	{"basis.team@example.com", "Short dump DBSQL_SQL_ERROR in production", "ST22 shows repeated DBSQL_SQL_ERROR dumps since this morning's transport import."},
	{"hr@example.com", "Payroll run PC00_M99 aborted", "The HCM payroll run aborted mid-cycle with message 3G102. Please advise."},
}

// Fetch returns up to opts.MaxCount sample messages with stable message IDs.
func (m *MockFetcher) Fetch(_ context.Context, opts FetchOptions) ([]Message, error) {
	maxCount := opts.MaxCount
	if maxCount <= 0 || maxCount > len(mockSamples) {
		maxCount = len(mockSamples)
	}

	base := m.now().UTC().Truncate(time.Hour)
	out := make([]Message, 0, maxCount)
	for i := 0; i < maxCount; i++ {
		s := mockSamples[i]
		out = append(out, Message{
			MessageID:  fmt.Sprintf("<mock-%s-%d@sapdesk.local>", base.Format("20060102"), i),
			From:       s.from,
			To:         "support@sapdesk.local",
			Subject:    s.subject,
			BodyText:   s.body,
			ReceivedAt: base.Add(-time.Duration(i) * time.Hour),
			Headers:    map[string]any{"mock": true},
		})
	}
	return out, nil
}
