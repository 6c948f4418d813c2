package natsadapter

import (
	"strings"
	"testing"

	"github.com/campusaid/aidmap/internal/core/domain"
)

func TestRequestSubject(t *testing.T) {
	got := RequestSubject(domain.EventCreated, "abc-123")
	if got != "aid.requests.created.abc-123" {
		t.Errorf("unexpected subject %s", got)
	}
}

func TestRequestSubject_MatchesStreamFilter(t *testing.T) {
	kinds := []domain.RequestEventKind{domain.EventCreated, domain.EventUpdated, domain.EventCancelled, domain.EventExpired}
	for _, k := range kinds {
		subj := RequestSubject(k, "id")
		if !subjectMatches(SubjectRequests, subj) {
			t.Errorf("subject %s not covered by %s", subj, SubjectRequests)
		}
	}
	if subjectMatches(SubjectRequests, SubjectBroadcast) {
		t.Errorf("broadcast subject must stay outside the request stream")
	}
}

// subjectMatches applies NATS wildcard rules.
func subjectMatches(filter, subject string) bool {
	ft := strings.Split(filter, ".")
	st := strings.Split(subject, ".")
	for i, tok := range ft {
		if tok == ">" {
			return len(st) > i
		}
		if i >= len(st) {
			return false
		}
		if tok != "*" && tok != st[i] {
			return false
		}
	}
	return len(ft) == len(st)
}
