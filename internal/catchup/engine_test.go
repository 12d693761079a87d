package catchup

import (
	"testing"

	"github.com/opik/osem/internal/ports"
)

func TestSubjectFiltersSplitsOnNonAlnumRuns(t *testing.T) {
	event := &ports.Event{
		RelatedSubjects: map[string]struct{}{
			"QUOTE FOR PO-123": {},
		},
	}
	filters := subjectFilters(event)
	if len(filters) != 4 {
		t.Fatalf("expected 4 tokens (QUOTE, FOR, PO, 123), got %d: %+v", len(filters), filters)
	}
}

func TestSubjectFiltersWildcardsLastTokenOfShortSubject(t *testing.T) {
	event := &ports.Event{
		RelatedSubjects: map[string]struct{}{
			"Quote PO": {},
		},
	}
	filters := subjectFilters(event)
	if !filters[len(filters)-1].Wildcard {
		t.Error("last token of a <=3-token subject should be wildcarded")
	}
}

func TestSubjectFiltersNoWildcardPastThreeTokens(t *testing.T) {
	event := &ports.Event{
		RelatedSubjects: map[string]struct{}{
			"renewal terms for annual contract": {},
		},
	}
	filters := subjectFilters(event)
	for _, f := range filters {
		if f.Wildcard {
			t.Error("subjects with more than 3 tokens must not wildcard the last token")
		}
	}
}
