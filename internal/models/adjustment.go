package models

// AdjustmentStatus is the review status of a single AI-proposed text span
type AdjustmentStatus string

const (
	AdjustmentStatusPending  AdjustmentStatus = "pending"
	AdjustmentStatusAccepted AdjustmentStatus = "accepted"
	AdjustmentStatusModified AdjustmentStatus = "modified"
	AdjustmentStatusRejected AdjustmentStatus = "rejected"
)

// AdjustmentProposal is one old/new text span proposed by the AI in response
// to an adjustment instruction. The user reviews each span before it is
// applied to the concept report.
type AdjustmentProposal struct {
	ID           string           `json:"id"`
	OldText      string           `json:"oldText"`
	NewText      string           `json:"newText"`
	Reason       string           `json:"reason,omitempty"`
	Status       AdjustmentStatus `json:"status"`
	ModifiedText string           `json:"modifiedText,omitempty"`
}

// ReplacementText returns the text a proposal applies, honouring a user edit
func (p AdjustmentProposal) ReplacementText() string {
	if p.Status == AdjustmentStatusModified {
		return p.ModifiedText
	}
	return p.NewText
}

// SpanFailure reports why a single proposal could not be applied
type SpanFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}
