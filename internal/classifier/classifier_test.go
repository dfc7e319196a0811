package classifier

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMockClassifierCategories(t *testing.T) {
	cases := []struct {
		subject      string
		body         string
		wantRelated  bool
		wantCategory string
		wantPriority string
	}{
		{"Purchase order stuck", "ME21 errors out", true, "MM", "Medium"},
		{"Cannot post invoice", "FB01 fails with F5 201", true, "FICO", "Medium"},
		{"Payroll run aborted", "time evaluation failed", true, "HCM", "High"},
		{"Short dump in production", "ST22 shows DBSQL errors", true, "ABAP", "Medium"},
		{"Weekly newsletter", "click to unsubscribe", false, "OTHER", ""},
		{"Question about SAP licensing", "general question", true, "OTHER", "Medium"},
		{"Lunch on friday?", "see you there", false, "OTHER", ""},
	}

	clf := NewMockClassifier()
	for _, tc := range cases {
		t.Run(tc.subject, func(t *testing.T) {
			result, err := clf.Classify(context.Background(), Input{Subject: tc.subject, BodyText: tc.body})
			require.NoError(t, err)
			assert.Equal(t, tc.wantRelated, result.IsSAPRelated)
			assert.Equal(t, tc.wantCategory, result.Category)
			if tc.wantPriority != "" {
				assert.Equal(t, tc.wantPriority, result.SuggestedPriority)
			}
		})
	}
}

func TestMockClassifierIsDeterministic(t *testing.T) {
	clf := NewMockClassifier()
	in := Input{Subject: "System down", BodyText: "transport queue stuck, all users affected"}

	first, err := clf.Classify(context.Background(), in)
	require.NoError(t, err)
	second, err := clf.Classify(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first.Category, second.Category)
	assert.Equal(t, first.Confidence, second.Confidence)
	assert.Equal(t, first.SuggestedPriority, second.SuggestedPriority)
}

func TestMockClassifierConfidenceBands(t *testing.T) {
	clf := NewMockClassifier()

	matched, err := clf.Classify(context.Background(), Input{Subject: "warehouse transfer order stuck"})
	require.NoError(t, err)
	assert.InDelta(t, 0.9, matched.Confidence, 1e-9)

	vague, err := clf.Classify(context.Background(), Input{Subject: "question about our SAP setup"})
	require.NoError(t, err)
	assert.InDelta(t, 0.6, vague.Confidence, 1e-9)

	unrelated, err := clf.Classify(context.Background(), Input{Subject: "webinar invitation"})
	require.NoError(t, err)
	assert.InDelta(t, 0.1, unrelated.Confidence, 1e-9)
	assert.False(t, unrelated.IsSAPRelated)
}

func TestParseVerdict(t *testing.T) {
	clf := &OpenAIClassifier{logger: zap.NewNop()}

	t.Run("well-formed verdict", func(t *testing.T) {
		result := clf.parseVerdict(`{"is_sap_related": true, "confidence": 0.85, "category": "fico",
			"suggested_title": "  Posting error  ", "suggested_priority": "HIGH", "key_points": ["F5 201"]}`)
		assert.True(t, result.IsSAPRelated)
		assert.InDelta(t, 0.85, result.Confidence, 1e-9)
		assert.Equal(t, "FICO", result.Category)
		assert.Equal(t, "Posting error", result.SuggestedTitle)
		assert.Equal(t, "High", result.SuggestedPriority)
	})

	t.Run("fenced output", func(t *testing.T) {
		result := clf.parseVerdict("```json\n{\"is_sap_related\": true, \"confidence\": 0.8, \"category\": \"MM\"}\n```")
		assert.True(t, result.IsSAPRelated)
		assert.Equal(t, "MM", result.Category)
	})

	t.Run("garbage degrades to unrelated", func(t *testing.T) {
		result := clf.parseVerdict("I think this email is about SAP, probably.")
		assert.False(t, result.IsSAPRelated)
		assert.Zero(t, result.Confidence)
		assert.Equal(t, "OTHER", result.Category)
		assert.Contains(t, result.Raw, "model_output")
	})

	t.Run("confidence clamped", func(t *testing.T) {
		high := clf.parseVerdict(`{"is_sap_related": true, "confidence": 1.7, "category": "SD"}`)
		assert.InDelta(t, 1.0, high.Confidence, 1e-9)

		low := clf.parseVerdict(`{"is_sap_related": false, "confidence": -0.3, "category": "SD"}`)
		assert.Zero(t, low.Confidence)
	})

	t.Run("unknown category becomes OTHER", func(t *testing.T) {
		result := clf.parseVerdict(`{"is_sap_related": true, "confidence": 0.9, "category": "CRM"}`)
		assert.Equal(t, "OTHER", result.Category)
	})
}

func TestNormalizePriority(t *testing.T) {
	assert.Equal(t, "Low", normalizePriority("low"))
	assert.Equal(t, "High", normalizePriority(" HIGH "))
	assert.Equal(t, "Critical", normalizePriority("Critical"))
	assert.Equal(t, "Medium", normalizePriority("medium"))
	assert.Equal(t, "Medium", normalizePriority("whatever"))
	assert.Equal(t, "Medium", normalizePriority(""))
}

func TestTruncateBodyKeepsRunesIntact(t *testing.T) {
	assert.Equal(t, "short", truncateBody("short", 100))

	long := strings.Repeat("a", 10) + "日本語"
	cut := truncateBody(long, 12) // byte 12 lands inside the second rune
	assert.True(t, utf8.ValidString(cut))
	assert.Equal(t, strings.Repeat("a", 10), cut)

	exact := truncateBody(long, 13)
	assert.True(t, utf8.ValidString(exact))
	assert.Equal(t, strings.Repeat("a", 10)+"日", exact)
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, extractJSON("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, extractJSON(`  {"a":1}  `))
}
