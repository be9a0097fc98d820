package pricing

import (
	"time"

	"github.com/boddenberg/orcamento-engine-go/internal/domain"
)

// TransitionResult describes what Transition changed on a quote.
type TransitionResult struct {
	From          domain.QuoteStatus
	To            domain.QuoteStatus
	FromTerminal  bool
	SentAtSet     bool
	ApprovedAtSet bool
	NotesChanged  bool
}

// IsTerminal reports whether no further transition is expected from s.
func IsTerminal(s domain.QuoteStatus) bool {
	switch s {
	case domain.QuoteStatusApproved, domain.QuoteStatusRejected, domain.QuoteStatusCancelled:
		return true
	}
	return false
}

// IsEditable reports whether line items may still change in status s.
func IsEditable(s domain.QuoteStatus) bool {
	return s == domain.QuoteStatusDraft
}

// Transition moves q to status to. No move is refused: leaving a terminal
// state is only flagged in the result. SentAt and ApprovedAt are stamped the
// first time their status is entered and never overwritten. notes, when
// non-nil, replaces the quote notes.
func Transition(q *domain.Quote, to domain.QuoteStatus, notes *string, now time.Time) TransitionResult {
	res := TransitionResult{
		From:         q.Status,
		To:           to,
		FromTerminal: IsTerminal(q.Status),
	}

	switch to {
	case domain.QuoteStatusSent:
		if q.SentAt == nil {
			ts := now
			q.SentAt = &ts
			res.SentAtSet = true
		}
	case domain.QuoteStatusApproved:
		if q.ApprovedAt == nil {
			ts := now
			q.ApprovedAt = &ts
			res.ApprovedAtSet = true
		}
	}

	if notes != nil {
		res.NotesChanged = *notes != q.Notes
		q.Notes = *notes
	}

	q.Status = to
	updated := now
	q.UpdatedAt = &updated
	return res
}
