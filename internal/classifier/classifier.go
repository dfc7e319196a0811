package classifier

import (
	"context"
)

// Input is the email content handed to the classifier.
type Input struct {
	Subject  string
	From     string
	BodyText string
}

// Result is the classifier's verdict on a single email.
type Result struct {
	IsSAPRelated      bool
	Confidence        float64
	Category          string
	SuggestedTitle    string
	SuggestedPriority string
	KeyPoints         []string
	// Raw preserves the backend's full response for provenance.
	Raw map[string]any
}

// Classifier decides whether an email describes a SAP support issue.
type Classifier interface {
	Classify(ctx context.Context, in Input) (*Result, error)
}
