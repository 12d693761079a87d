// Package catchup recovers messages the live ingestion path missed: late
// delivery, indexing lag, mail landing in an unmonitored folder, or a
// historical backfill the first time a conversation is associated with
// an event. The ticker/worker shape is adapted directly from the
// teacher's internal/services/scheduled_send.go ScheduledSendService
// background worker (mu, running, stopChan, checkInterval, Start/Stop/
// IsRunning, a worker() goroutine selecting on a ticker and a stop
// channel), retargeted from "send due drafts" to "drain queued catch-up
// requests". The sync-suspension counter and deferred retry ladder have
// no direct teacher analogue; they are new logic built in the same
// mutex-guarded-struct idiom.
package catchup

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/opik/osem/internal/ports"
	"github.com/opik/osem/internal/textutil"
)

// Store is the narrow slice of internal/store.Store the catch-up engine
// needs: cached per-event metadata plus the directed upsert path.
type Store interface {
	GetByID(id string) *ports.Event
	TryAddMail(eventID string, mail ports.MailSnapshot) (*ports.Event, error)
	MarkMessageIDsNotFound(eventID string, ids []string) error
}

// Config tunes the catch-up engine's timings. Defaults match spec.
type Config struct {
	TickInterval        time.Duration
	InitialDelay        time.Duration
	MaxDrainPerTick      int
	NormalLookback       time.Duration
	FullHistoryLookback  time.Duration
	EarliestExtension    time.Duration
	QueueCapacity        int
	SearchDebounce       time.Duration
	SearchMaxRetries     int
	SearchRetryBackoff   time.Duration
	ForceDrainInterval   time.Duration
	DeferredRetryLadder  []time.Duration
}

// DefaultConfig matches the production defaults named in the spec.
func DefaultConfig() Config {
	return Config{
		TickInterval:        15 * time.Minute,
		InitialDelay:        10 * time.Second,
		MaxDrainPerTick:      20,
		NormalLookback:       14 * 24 * time.Hour,
		FullHistoryLookback:  3650 * 24 * time.Hour,
		EarliestExtension:    12 * time.Hour,
		QueueCapacity:        0,
		SearchDebounce:       2 * time.Second,
		SearchMaxRetries:     10,
		SearchRetryBackoff:   5 * time.Second,
		ForceDrainInterval:   30 * time.Second,
		DeferredRetryLadder:  []time.Duration{20 * time.Second, time.Minute, 3 * time.Minute, 5 * time.Minute},
	}
}

// Engine drains the catch-up queue on a tick, re-scanning each requested
// conversation against the mail source and feeding recovered mail back
// through Store.
type Engine struct {
	cfg    Config
	store  Store
	source ports.MailSource
	clock  ports.Clock
	logger ports.Logger

	mu           sync.Mutex
	running      bool
	stopChan     chan struct{}
	syncCounter  int
	pausedBySync bool

	q            *queue
	pendingSearch *pendingSearchQueue
}

// New constructs an Engine. If events is non-nil, the engine subscribes
// to OnSyncStart/OnSyncEnd to suspend processing during active
// synchronisation.
func New(cfg Config, store Store, source ports.MailSource, events ports.MailSourceEvents, clock ports.Clock, logger ports.Logger) *Engine {
	e := &Engine{
		cfg:    cfg,
		store:  store,
		source: source,
		clock:  clock,
		logger: logger,
		q:      newQueue(cfg.QueueCapacity),
	}
	e.pendingSearch = newPendingSearchQueue(cfg, e)

	if events != nil {
		events.OnSyncStart(e.onSyncStart)
		events.OnSyncEnd(e.onSyncEnd)
	}
	return e
}

// Start launches the background worker.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stopChan = make(chan struct{})
	e.mu.Unlock()

	go e.worker()
}

// Stop halts the background worker.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopChan)
	e.mu.Unlock()
}

// IsRunning reports whether the background worker is active.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Enqueue requests a catch-up scan for conversationID inside eventID. If
// preferFront is set (used by trigger_catchup) the request is pushed to
// the head of the queue instead of the tail.
func (e *Engine) Enqueue(eventID, conversationID string, fullHistory, preferFront bool) bool {
	r := request{eventID: eventID, conversationID: conversationID, fullHistory: fullHistory}
	if preferFront {
		return e.q.pushFront(r)
	}
	return e.q.push(r)
}

// DrainNow synchronously processes up to n queued requests, honoring
// ctx's deadline — used by trigger_catchup(immediate=true, timeout=T).
// Remaining items stay queued for the regular tick.
func (e *Engine) DrainNow(ctx context.Context, n int) int {
	processed := 0
	for processed < n {
		select {
		case <-ctx.Done():
			return processed
		default:
		}
		items := e.q.drain(1)
		if len(items) == 0 {
			break
		}
		e.processOne(ctx, items[0])
		processed++
	}
	return processed
}

func (e *Engine) worker() {
	e.logger.Infof("background worker started")

	if e.cfg.InitialDelay > 0 {
		select {
		case <-e.stopChan:
			e.logger.Infof("background worker stopped before initial delay elapsed")
			return
		case <-time.After(e.cfg.InitialDelay):
		}
	}

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	forceDrain := time.NewTicker(e.cfg.ForceDrainInterval)
	defer forceDrain.Stop()

	for {
		select {
		case <-e.stopChan:
			e.logger.Infof("background worker stopped")
			return
		case <-ticker.C:
			e.tick()
		case <-forceDrain.C:
			if !e.isSuspended() {
				e.pendingSearch.forceDrain()
			}
		}
	}
}

func (e *Engine) tick() {
	if e.isSuspended() {
		e.logger.Debugf("catch-up tick skipped: paused by active synchronisation")
		return
	}
	items := e.q.drain(e.cfg.MaxDrainPerTick)
	for _, r := range items {
		e.processOne(context.Background(), r)
	}
}

func (e *Engine) onSyncStart() {
	e.mu.Lock()
	e.syncCounter++
	e.pausedBySync = e.syncCounter > 0
	e.mu.Unlock()
}

func (e *Engine) onSyncEnd() {
	e.mu.Lock()
	if e.syncCounter > 0 {
		e.syncCounter--
	}
	resumed := e.syncCounter == 0
	e.pausedBySync = e.syncCounter > 0
	e.mu.Unlock()

	if resumed {
		e.pendingSearch.resume()
	}
}

func (e *Engine) isSuspended() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pausedBySync
}

// processOne implements the per-request processing steps.
func (e *Engine) processOne(ctx context.Context, r request) {
	event := e.store.GetByID(r.eventID)
	if event == nil {
		e.logger.Debugf("catch-up request for unknown event %s dropped", r.eventID)
		return
	}

	lookback := e.cfg.NormalLookback
	if r.fullHistory {
		lookback = e.cfg.FullHistoryLookback
	}
	since := e.clock.Now().Add(-lookback)
	if earliest := earliestReceivedOn(event); !earliest.IsZero() {
		extended := earliest.Add(-e.cfg.EarliestExtension)
		if extended.Before(since) {
			since = extended
		}
	}

	knownEntryIDs := trackedEntryIDs(event)

	var candidates []ports.MailHandle
	complete := false

	if size, handles, err := e.source.EnumerateConversation(ctx, firstEntryID(event), r.conversationID, since); err != nil {
		e.logger.Debugf("conversation enumeration failed for %s: %v", r.conversationID, err)
	} else {
		candidates = append(candidates, handles...)
		if size.Total > 0 && size.Total <= len(knownEntryIDs) {
			complete = true
		}
	}

	if !complete {
		for _, folder := range []ports.FolderKind{ports.FolderInbox, ports.FolderSent, ports.FolderDeleted} {
			filter := ports.Filter{ReceivedSince: since, ConversationID: r.conversationID}
			handles, err := e.source.RestrictFolder(ctx, folder, filter)
			if err != nil {
				e.logger.Debugf("folder restriction failed for %s/%s: %v", folder, r.conversationID, err)
				continue
			}
			candidates = append(candidates, handles...)
		}

		for _, filter := range subjectFilters(event) {
			handles, err := e.source.RestrictFolder(ctx, ports.FolderInbox, filter)
			if err != nil {
				e.logger.Debugf("subject filter search failed: %v", err)
				continue
			}
			candidates = append(candidates, handles...)
		}
	}

	resolved := make(map[string]struct{}, len(candidates))
	unresolvedMessageIDs := make([]string, 0)

	for _, h := range candidates {
		if _, ok := knownEntryIDs[h.EntryID]; ok {
			resolved[h.EntryID] = struct{}{}
			continue
		}
		snapshot := handleToSnapshot(h)
		if _, err := e.store.TryAddMail(r.eventID, snapshot); err != nil {
			e.logger.Debugf("try_add_mail failed for entry %s: %v", h.EntryID, err)
			e.scheduleDeferredRetry(r.eventID, r.conversationID, snapshot, 0)
			continue
		}
		resolved[h.EntryID] = struct{}{}
		if h.MessageID == "" {
			unresolvedMessageIDs = append(unresolvedMessageIDs, h.EntryID)
		}
	}

	if complete {
		e.logger.Infof("conversation %s complete for event %s", r.conversationID, r.eventID)
	} else {
		e.logger.Debugf("conversation %s for event %s: %d candidates resolved", r.conversationID, r.eventID, len(resolved))
	}

	if len(unresolvedMessageIDs) > 0 {
		if err := e.store.MarkMessageIDsNotFound(r.eventID, unresolvedMessageIDs); err != nil {
			e.logger.Debugf("mark_message_ids_not_found failed: %v", err)
		}
	}
}

// scheduleDeferredRetry re-attempts a mail that failed to resolve live,
// following the back-off ladder [20s, 1m, 3m, 5m] before falling through
// to the advanced-search pending queue.
func (e *Engine) scheduleDeferredRetry(eventID, conversationID string, snapshot ports.MailSnapshot, step int) {
	if step >= len(e.cfg.DeferredRetryLadder) {
		e.pendingSearch.enqueue(eventID, conversationID, snapshot.EntryID)
		return
	}
	delay := e.cfg.DeferredRetryLadder[step]
	time.AfterFunc(delay, func() {
		if _, err := e.store.TryAddMail(eventID, snapshot); err != nil {
			e.logger.Debugf("deferred retry %d failed for entry %s: %v", step+1, snapshot.EntryID, err)
			e.scheduleDeferredRetry(eventID, conversationID, snapshot, step+1)
		}
	})
}

func earliestReceivedOn(event *ports.Event) time.Time {
	var earliest time.Time
	for _, m := range event.Emails {
		if earliest.IsZero() || m.ReceivedOn.Before(earliest) {
			earliest = m.ReceivedOn
		}
	}
	return earliest
}

func trackedEntryIDs(event *ports.Event) map[string]struct{} {
	out := make(map[string]struct{}, len(event.Emails))
	for _, m := range event.Emails {
		if m.EntryID != "" {
			out[m.EntryID] = struct{}{}
		}
	}
	return out
}

func firstEntryID(event *ports.Event) string {
	if len(event.Emails) == 0 {
		return ""
	}
	return event.Emails[0].EntryID
}

var nonAlnumRun = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// subjectFilters builds the §4.4 step-3c subject-token filters: for each
// related subject, split on non-letter/digit runs, take up to 5 tokens,
// phrase-match each; with ≤3 tokens allow a trailing wildcard on the
// last one to tolerate stored truncation.
func subjectFilters(event *ports.Event) []ports.Filter {
	var filters []ports.Filter
	for subject := range event.RelatedSubjects {
		tokens := nonAlnumRun.Split(strings.TrimSpace(subject), -1)
		var nonEmpty []string
		for _, t := range tokens {
			if t != "" {
				nonEmpty = append(nonEmpty, t)
			}
		}
		if len(nonEmpty) > 5 {
			nonEmpty = nonEmpty[:5]
		}
		for i, tok := range nonEmpty {
			wildcard := len(nonEmpty) <= 3 && i == len(nonEmpty)-1
			filters = append(filters, ports.Filter{
				SubjectPhrase: tok,
				Wildcard:      wildcard,
			})
		}
	}
	return filters
}

func handleToSnapshot(h ports.MailHandle) ports.MailSnapshot {
	return ports.MailSnapshot{
		EntryID:             h.EntryID,
		StoreID:             h.StoreID,
		ConversationID:      h.ConversationID,
		InternetMessageID:   h.MessageID,
		Subject:             h.Subject,
		Participants:        h.Participants,
		Body:                h.BodyText,
		BodyFingerprint:     textutil.BodyFingerprint(h.BodyText),
		ThreadIndex:         h.ThreadIndex,
		ReferenceMessageIDs: h.ReferenceMessageIDs,
		ReceivedOn:          h.ReceivedOn,
		HistoricalSubjects:  textutil.ExtractHistoricalSubjects(h.BodyText),
		Attachments:         h.Attachments,
	}
}

