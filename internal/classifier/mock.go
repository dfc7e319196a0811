package classifier

import (
	"context"
	"strings"

	"github.com/sapdesk/sapdesk/internal/domain"
)

// MockClassifier decides by keyword matching. Deterministic, used in
// development and tests when no API key is configured.
type MockClassifier struct{}

// NewMockClassifier builds the keyword-based classifier.
func NewMockClassifier() *MockClassifier {
	return &MockClassifier{}
}

var categoryKeywords = []struct {
	category domain.TicketCategory
	words    []string
}{
	{domain.CategoryMM, []string{"purchase order", "material", "me21", "me28", "goods receipt", "migo"}},
	{domain.CategorySD, []string{"sales order", "delivery", "billing", "va01", "vf01", "customer order"}},
	{domain.CategoryFICO, []string{"posting", "invoice", "fb01", "general ledger", "fico", "payment run", "period"}},
	{domain.CategoryPP, []string{"production order", "mrp", "bom", "routing", "co01"}},
	{domain.CategoryHCM, []string{"payroll", "personnel", "pa30", "time evaluation", "hcm"}},
	{domain.CategoryPM, []string{"maintenance order", "equipment", "iw31", "notification"}},
	{domain.CategoryQM, []string{"inspection lot", "quality notification", "qa32"}},
	{domain.CategoryWM, []string{"warehouse", "transfer order", "lt01", "storage bin"}},
	{domain.CategoryPS, []string{"wbs", "project system", "cj20n", "network activity"}},
	{domain.CategoryBW, []string{"bw query", "infocube", "data load", "process chain", "bex"}},
	{domain.CategoryABAP, []string{"short dump", "abap", "st22", "syntax error", "dbsql"}},
	{domain.CategoryBASIS, []string{"transport", "basis", "sm37", "background job", "rfc", "system down"}},
}

var unrelatedKeywords = []string{"newsletter", "unsubscribe", "digest", "out of office", "webinar", "promotion"}

var criticalKeywords = []string{"production down", "system down", "payroll", "aborted", "all users", "urgent"}

// Classify assigns the first matching category and a fixed confidence band.
func (m *MockClassifier) Classify(_ context.Context, in Input) (*Result, error) {
	text := strings.ToLower(in.Subject + " " + in.BodyText)

	for _, word := range unrelatedKeywords {
		if strings.Contains(text, word) {
			return &Result{
				IsSAPRelated: false,
				Confidence:   0.1,
				Category:     string(domain.CategoryOther),
				Raw:          map[string]any{"mock": true, "matched": word},
			}, nil
		}
	}

	for _, entry := range categoryKeywords {
		for _, word := range entry.words {
			if strings.Contains(text, word) {
				priority := string(domain.TicketPriorityMedium)
				for _, crit := range criticalKeywords {
					if strings.Contains(text, crit) {
						priority = string(domain.TicketPriorityHigh)
						break
					}
				}
				return &Result{
					IsSAPRelated:      true,
					Confidence:        0.9,
					Category:          string(entry.category),
					SuggestedTitle:    in.Subject,
					SuggestedPriority: priority,
					KeyPoints:         []string{"matched keyword: " + word},
					Raw:               map[string]any{"mock": true, "matched": word},
				}, nil
			}
		}
	}

	if strings.Contains(text, "sap") {
		return &Result{
			IsSAPRelated:      true,
			Confidence:        0.6,
			Category:          string(domain.CategoryOther),
			SuggestedTitle:    in.Subject,
			SuggestedPriority: string(domain.TicketPriorityMedium),
			Raw:               map[string]any{"mock": true, "matched": "sap"},
		}, nil
	}

	return &Result{
		IsSAPRelated: false,
		Confidence:   0.2,
		Category:     string(domain.CategoryOther),
		Raw:          map[string]any{"mock": true},
	}, nil
}
