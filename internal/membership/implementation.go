// internal/membership/implementation.go
package membership

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sort"
	"strings"

	"lendingdesk/internal/clock"
	"lendingdesk/internal/errs"
	"lendingdesk/internal/journal"
)

type record struct {
	member Member
	active map[string]struct{}
}

// service implements the Service interface over in-memory state.
type service struct {
	members map[string]*record
	clock   clock.Clock
	journal *journal.Journal
}

// NewService creates an empty member registry.
func NewService(c clock.Clock, j *journal.Journal) Service {
	if c == nil {
		c = clock.System{}
	}
	if j == nil {
		j = journal.New(c.Now)
	}
	return &service{
		members: make(map[string]*record),
		clock:   c,
		journal: j,
	}
}

// RegisterMember creates a new member with no loans.
func (s *service) RegisterMember(ctx context.Context, id, name, contact string) (Member, error) {
	const op = "register_member"

	if strings.TrimSpace(id) == "" {
		return Member{}, errs.Validation(op, "member id must not be empty")
	}
	if _, exists := s.members[id]; exists {
		return Member{}, errs.Duplicate(op, "member", id)
	}
	if strings.TrimSpace(name) == "" {
		return Member{}, errs.Validation(op, "name must not be empty")
	}
	if !ValidContact(contact) {
		return Member{}, errs.Validation(op, "contact %q must be an address containing '@' and '.'", contact)
	}

	event, err := journal.NewEvent(EventMemberRegistered, MemberRegisteredEvent{
		ID:      id,
		Name:    name,
		Contact: contact,
	})
	if err != nil {
		return Member{}, err
	}
	if err := s.journal.AppendEvents(ctx, id, aggregateType, 0, []journal.Event{event}); err != nil {
		return Member{}, fmt.Errorf("failed to append event: %w", err)
	}

	rec := &record{
		member: Member{
			ID:           id,
			Name:         name,
			Contact:      contact,
			RegisteredAt: s.clock.Now(),
			Version:      1,
		},
		active: make(map[string]struct{}),
	}
	s.members[id] = rec

	return rec.snapshot(), nil
}

// ValidContact applies the registry's contact rule: a non-empty local part
// before '@' and a '.' somewhere after it.
func ValidContact(contact string) bool {
	at := strings.Index(contact, "@")
	if at <= 0 {
		return false
	}
	return strings.Contains(contact[at+1:], ".")
}

// GetMember returns a snapshot of the member.
func (s *service) GetMember(id string) (Member, error) {
	rec, ok := s.members[id]
	if !ok {
		return Member{}, errs.NotFound("get_member", "member", id)
	}
	return rec.snapshot(), nil
}

// Members yields every member ordered by id.
func (s *service) Members() iter.Seq[Member] {
	return func(yield func(Member) bool) {
		ids := make([]string, 0, len(s.members))
		for id := range s.members {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			if !yield(s.members[id].snapshot()) {
				return
			}
		}
	}
}

func (s *service) AttachLoan(memberID, loanID string) error {
	rec, ok := s.members[memberID]
	if !ok {
		return errs.NotFound("attach_loan", "member", memberID)
	}
	rec.active[loanID] = struct{}{}
	rec.member.History = append(rec.member.History, loanID)
	return nil
}

func (s *service) DetachLoan(memberID, loanID string) error {
	rec, ok := s.members[memberID]
	if !ok {
		return errs.NotFound("detach_loan", "member", memberID)
	}
	delete(rec.active, loanID)
	return nil
}

func (r *record) snapshot() Member {
	m := r.member
	m.ActiveLoans = make([]string, 0, len(r.active))
	for id := range r.active {
		m.ActiveLoans = append(m.ActiveLoans, id)
	}
	sort.Strings(m.ActiveLoans)
	m.History = slices.Clone(r.member.History)
	if m.History == nil {
		m.History = []string{}
	}
	return m
}
