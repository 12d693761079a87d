// Package store implements the Event Store: the sole owner of the
// persistent event collection, guarded by a single exclusive mutex and
// persisted as one JSON document. Adapted from the teacher's
// mutex-guarded-map idiom (internal/services.SyncService.folders) and its
// event-bus-based change notification (internal/services/eventbus.go),
// generalised from syncing IMAP folders to owning classified mail events.
package store

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/opik/osem/internal/ports"
	"github.com/opik/osem/internal/textutil"
)

// Persister writes the full event collection to durable storage. The
// default implementation (persist.go) backs it with a single
// pretty-printed JSON document guarded by a cross-process file lock.
type Persister interface {
	Persist(events []*ports.Event) error
}

// Store is the in-memory event collection. Every mutation happens inside
// one critical section: the in-memory maps are updated and, still
// holding the lock, Persister.Persist is called before the method
// returns — matching the spec's "mutate, then await an asynchronous
// disk-persist call inside the critical section" contract.
type Store struct {
	mu     sync.Mutex
	events map[string]*ports.Event

	bus    ports.EventBus
	clock  ports.Clock
	persist Persister
	logger ports.Logger
}

// New constructs an empty Store. Load an existing document with
// LoadFrom before serving requests if one exists on disk.
func New(bus ports.EventBus, clock ports.Clock, persist Persister, logger ports.Logger) *Store {
	return &Store{
		events:  make(map[string]*ports.Event),
		bus:     bus,
		clock:   clock,
		persist: persist,
		logger:  logger,
	}
}

// Seed replaces the in-memory collection without persisting or emitting
// notifications — used once at startup to load a prior document.
func (s *Store) Seed(events []*ports.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[string]*ports.Event, len(events))
	for _, e := range events {
		s.events[e.EventID] = e
	}
}

// ListAll returns deep-cloned copies of every event; callers never hold a
// live reference into the store.
func (s *Store) ListAll() []*ports.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*ports.Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Clone())
	}
	return out
}

// GetByID returns a deep-cloned copy of the event, or nil if absent.
func (s *Store) GetByID(id string) *ports.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil
	}
	return e.Clone()
}

// CreateFromMail allocates a fresh event seeded from one mail snapshot.
func (s *Store) CreateFromMail(mail ports.MailSnapshot, templateID string, knownParticipants []string) (*ports.Event, error) {
	if mail.ConversationID == "" {
		return nil, ports.ErrInvalidSnapshot
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	event := &ports.Event{
		EventID:             newEventID(now),
		Title:               mail.Subject,
		TemplateID:          templateID,
		Status:              ports.EventStatusOpen,
		CreatedAt:           now,
		UpdatedAt:           now,
		ConversationIDs:     []string{mail.ConversationID},
		RelatedSubjects:     make(map[string]struct{}),
		Participants:        make(map[string]struct{}),
		NotFoundMessageIDs:  make(map[string]struct{}),
		ProcessedMessageIDs: make(map[string]struct{}),
	}

	addSubject(event.RelatedSubjects, mail.Subject)
	for _, hs := range mail.HistoricalSubjects {
		addSubject(event.RelatedSubjects, hs)
	}

	for p := range textutil.NormalizeParticipants(mail.Participants) {
		event.Participants[p] = struct{}{}
	}
	for p := range textutil.NormalizeParticipants(knownParticipants) {
		event.Participants[p] = struct{}{}
	}

	email := snapshotToEmail(mail, now)
	event.Emails = append(event.Emails, email)
	event.Attachments = append(event.Attachments, mail.Attachments...)

	s.events[event.EventID] = event
	if err := s.doPersist(); err != nil {
		return nil, err
	}
	s.emit(event, ports.EventTypeCreated)
	return event.Clone(), nil
}

// Update replaces the stored record by id.
func (s *Store) Update(event *ports.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[event.EventID]; !ok {
		return ports.ErrNotFound
	}
	event.UpdatedAt = s.clock.Now()
	s.events[event.EventID] = event
	if err := s.doPersist(); err != nil {
		return err
	}
	s.emit(event, ports.EventTypeUpdated)
	return nil
}

// Import upserts event (used by backup restore).
func (s *Store) Import(event *ports.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[event.EventID] = event
	if err := s.doPersist(); err != nil {
		return err
	}
	s.emit(event, ports.EventTypeImported)
	return nil
}

// Archive sets status to Archived for every currently Open id in ids.
func (s *Store) Archive(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var changed []*ports.Event
	for _, id := range ids {
		e, ok := s.events[id]
		if !ok || e.Status != ports.EventStatusOpen {
			continue
		}
		e.Status = ports.EventStatusArchived
		e.UpdatedAt = now
		changed = append(changed, e)
	}
	if len(changed) == 0 {
		return nil
	}
	if err := s.doPersist(); err != nil {
		return err
	}
	for _, e := range changed {
		s.emit(e, ports.EventTypeArchived)
	}
	return nil
}

// Reopen sets status to Open for id.
func (s *Store) Reopen(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return ports.ErrNotFound
	}
	e.Status = ports.EventStatusOpen
	e.UpdatedAt = s.clock.Now()
	if err := s.doPersist(); err != nil {
		return err
	}
	s.emit(e, ports.EventTypeReopened)
	return nil
}

// Delete irreversibly removes every id present in the store.
func (s *Store) Delete(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []*ports.Event
	for _, id := range ids {
		if e, ok := s.events[id]; ok {
			removed = append(removed, e)
			delete(s.events, id)
		}
	}
	if len(removed) == 0 {
		return nil
	}
	if err := s.doPersist(); err != nil {
		return err
	}
	for _, e := range removed {
		s.emit(e, ports.EventTypeDeleted)
	}
	return nil
}

// MarkMessageIDsNotFound adds ids to event's not_found_message_ids set.
func (s *Store) MarkMessageIDsNotFound(eventID string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[eventID]
	if !ok {
		return ports.ErrNotFound
	}
	if e.NotFoundMessageIDs == nil {
		e.NotFoundMessageIDs = make(map[string]struct{})
	}
	changed := false
	for _, id := range ids {
		key := strings.ToUpper(textutil.NormalizeMessageID(id))
		if key == "" {
			continue
		}
		if _, exists := e.NotFoundMessageIDs[key]; !exists {
			e.NotFoundMessageIDs[key] = struct{}{}
			changed = true
		}
	}
	if !changed {
		return nil
	}
	e.UpdatedAt = s.clock.Now()
	if err := s.doPersist(); err != nil {
		return err
	}
	s.emit(e, ports.EventTypeUpdated)
	return nil
}

// TryAddMail upserts mail into event via the hot-path contract:
// allow_restore is always false.
func (s *Store) TryAddMail(eventID string, mail ports.MailSnapshot) (*ports.Event, error) {
	return s.upsertMail(eventID, mail, false)
}

// AddMailToEvent upserts mail into event, bypassing matching, allowed to
// restore a soft-deleted email.
func (s *Store) AddMailToEvent(eventID string, mail ports.MailSnapshot) (*ports.Event, error) {
	return s.upsertMail(eventID, mail, true)
}

func (s *Store) upsertMail(eventID string, mail ports.MailSnapshot, allowRestore bool) (*ports.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[eventID]
	if !ok {
		return nil, ports.ErrNotFound
	}

	now := s.clock.Now()
	idx, existing := findSameMail(event.Emails, mail)

	var reason ports.EventType
	switch {
	case existing == nil:
		email := snapshotToEmail(mail, now)
		event.Emails = append(event.Emails, email)
		event.Attachments = append(event.Attachments, retagAttachments(mail.Attachments, email.EntryID)...)
		addSubject(event.RelatedSubjects, mail.Subject)
		for _, hs := range mail.HistoricalSubjects {
			addSubject(event.RelatedSubjects, hs)
		}
		reason = ports.EventTypeMailAppended

	case existing.IsRemoved && !allowRestore:
		s.logger.Debugf("refusing upsert into soft-deleted mail entry_id=%s allow_restore=false", existing.EntryID)
		return event.Clone(), nil

	case existing.IsRemoved && allowRestore:
		existing.IsRemoved = false
		mergeMailFields(existing, mail, now, event.ProcessedMessageIDs)
		_, processed := event.ProcessedMessageIDs[strings.ToUpper(existing.InternetMessageID)]
		existing.IsNewOrUpdated = !processed
		event.Attachments = dropAttachmentsFor(event.Attachments, existing.EntryID)
		event.Attachments = append(event.Attachments, retagAttachments(mail.Attachments, existing.EntryID)...)
		event.Emails[idx] = *existing
		addSubject(event.RelatedSubjects, mail.Subject)
		reason = ports.EventTypeMailUpdated

	default:
		priorEntryID := existing.EntryID
		contentChanged := mergeMailFields(existing, mail, now, event.ProcessedMessageIDs)
		if existing.EntryID != priorEntryID {
			event.Attachments = dropAttachmentsFor(event.Attachments, priorEntryID)
			event.Attachments = append(event.Attachments, retagAttachments(mail.Attachments, existing.EntryID)...)
		}
		event.Emails[idx] = *existing
		if contentChanged {
			addSubject(event.RelatedSubjects, mail.Subject)
			reason = ports.EventTypeMailUpdated
		}
	}

	for _, hs := range mail.HistoricalSubjects {
		addSubject(event.RelatedSubjects, hs)
	}
	for p := range textutil.NormalizeParticipants(mail.Participants) {
		event.Participants[p] = struct{}{}
	}

	if reason == "" {
		// Nothing changed: still return current state without a write.
		return event.Clone(), nil
	}

	event.UpdatedAt = now
	if err := s.doPersist(); err != nil {
		return nil, err
	}
	s.emit(event, reason)
	return event.Clone(), nil
}

// RemoveMail soft-deletes the member identified by entryID or messageID,
// strips its attachments, and removes its subject from related_subjects
// iff no other active member uses it.
func (s *Store) RemoveMail(eventID, entryID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[eventID]
	if !ok {
		return ports.ErrNotFound
	}

	idx := -1
	for i, m := range event.Emails {
		if entryID != "" && strings.EqualFold(m.EntryID, entryID) {
			idx = i
			break
		}
		if messageID != "" && strings.EqualFold(textutil.NormalizeMessageID(m.InternetMessageID), textutil.NormalizeMessageID(messageID)) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	removedSubject := event.Emails[idx].Subject
	event.Emails[idx].IsRemoved = true
	event.Attachments = dropAttachmentsFor(event.Attachments, event.Emails[idx].EntryID)

	if !subjectStillActive(event, removedSubject) {
		removeSubject(event.RelatedSubjects, removedSubject)
	}

	event.UpdatedAt = s.clock.Now()
	if err := s.doPersist(); err != nil {
		return err
	}
	s.emit(event, ports.EventTypeMailRemoved)
	return nil
}

func (s *Store) doPersist() error {
	if s.persist == nil {
		return nil
	}
	snapshot := make([]*ports.Event, 0, len(s.events))
	for _, e := range s.events {
		snapshot = append(snapshot, e)
	}
	return s.persist.Persist(snapshot)
}

func (s *Store) emit(event *ports.Event, reason ports.EventType) {
	if s.bus == nil {
		return
	}
	now := s.clock.Now()
	s.bus.Publish(ports.EventChanged{
		BaseEvent: ports.NewBaseEvent(reason, now),
		Snapshot:  event.Clone(),
		Reason:    reason,
	})
}

func addSubject(set map[string]struct{}, subject string) {
	n := textutil.NormalizeSubject(subject)
	if n == "" {
		return
	}
	set[strings.ToUpper(n)] = struct{}{}
}

func removeSubject(set map[string]struct{}, subject string) {
	delete(set, strings.ToUpper(textutil.NormalizeSubject(subject)))
}

func subjectStillActive(event *ports.Event, subject string) bool {
	key := strings.ToUpper(textutil.NormalizeSubject(subject))
	for _, m := range event.Emails {
		if m.IsRemoved {
			continue
		}
		if strings.ToUpper(textutil.NormalizeSubject(m.Subject)) == key {
			return true
		}
	}
	return false
}

func snapshotToEmail(mail ports.MailSnapshot, now time.Time) ports.Email {
	return ports.Email{
		EntryID:             mail.EntryID,
		StoreID:             mail.StoreID,
		ConversationID:      mail.ConversationID,
		InternetMessageID:   textutil.NormalizeMessageID(mail.InternetMessageID),
		Sender:              mail.Sender,
		To:                  mail.To,
		Subject:             mail.Subject,
		Participants:        textutil.NormalizeParticipants(mail.Participants),
		BodyFingerprint:     mail.BodyFingerprint,
		ThreadIndex:         mail.ThreadIndex,
		ThreadIndexPrefix:   textutil.ThreadIndexPrefix(mail.ThreadIndex),
		ReferenceMessageIDs: normalizeMessageIDSet(mail.ReferenceMessageIDs),
		ReceivedOn:          mail.ReceivedOn,
		IsNewOrUpdated:      true,
		IsRemoved:           false,
	}
}

func normalizeMessageIDSet(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if n := textutil.NormalizeMessageID(id); n != "" {
			out[strings.ToUpper(n)] = struct{}{}
		}
	}
	return out
}

func retagAttachments(attachments []ports.Attachment, entryID string) []ports.Attachment {
	out := make([]ports.Attachment, len(attachments))
	for i, a := range attachments {
		a.SourceMailEntryID = entryID
		a.ID = fmt.Sprintf("%s:%d:%s", entryID, i, a.Filename)
		out[i] = a
	}
	return out
}

func dropAttachmentsFor(attachments []ports.Attachment, entryID string) []ports.Attachment {
	out := attachments[:0:0]
	for _, a := range attachments {
		if a.SourceMailEntryID != entryID {
			out = append(out, a)
		}
	}
	return out
}
