package catchup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opik/osem/internal/ports"
)

type pendingItem struct {
	eventID        string
	conversationID string
	entryID        string
	retries        int
}

// pendingSearchQueue holds entry-ids the primary catch-up path failed to
// resolve. A debounce timer fires an advanced, source-wide search; a
// search that resolves nothing for an item re-enqueues it up to
// SearchMaxRetries, gated by SearchRetryBackoff, before the item is
// dropped. While synchronisation is active the queue holds its items
// instead of firing.
type pendingSearchQueue struct {
	cfg    Config
	engine *Engine

	mu      sync.Mutex
	items   []pendingItem
	timer   *time.Timer
	tagSeq  int
}

func newPendingSearchQueue(cfg Config, engine *Engine) *pendingSearchQueue {
	return &pendingSearchQueue{cfg: cfg, engine: engine}
}

func (p *pendingSearchQueue) enqueue(eventID, conversationID, entryID string) {
	p.mu.Lock()
	p.items = append(p.items, pendingItem{eventID: eventID, conversationID: conversationID, entryID: entryID})
	p.resetTimerLocked()
	p.mu.Unlock()
}

func (p *pendingSearchQueue) resetTimerLocked() {
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.cfg.SearchDebounce, p.fire)
}

// resume is called when the sync-suspension counter returns to zero;
// it fires immediately rather than waiting for the debounce window.
func (p *pendingSearchQueue) resume() {
	p.fire()
}

// forceDrain is the independent 30s polling timer that drains the
// pending queue once the sync counter is at zero, even with no new
// arrivals to reset the debounce timer.
func (p *pendingSearchQueue) forceDrain() {
	p.mu.Lock()
	empty := len(p.items) == 0
	p.mu.Unlock()
	if !empty {
		p.fire()
	}
}

func (p *pendingSearchQueue) fire() {
	if p.engine.isSuspended() {
		return
	}

	p.mu.Lock()
	items := p.items
	p.items = nil
	p.tagSeq++
	tag := fmt.Sprintf("pending-search-%d", p.tagSeq)
	p.mu.Unlock()

	if len(items) == 0 {
		return
	}

	byConversation := make(map[string][]pendingItem, len(items))
	for _, it := range items {
		byConversation[it.conversationID] = append(byConversation[it.conversationID], it)
	}

	ctx := context.Background()
	since := p.engine.clock.Now().Add(-60 * time.Minute)

	resolved := make(map[string]struct{})
	for conversationID := range byConversation {
		filter := ports.Filter{ReceivedSince: since, ConversationID: conversationID}
		results, err := p.engine.source.Search(ctx, filter, tag)
		if err != nil {
			p.engine.logger.Debugf("advanced search failed for conversation %s: %v", conversationID, err)
			continue
		}
		for h := range results {
			for _, it := range byConversation[conversationID] {
				if it.entryID == h.EntryID {
					if _, err := p.engine.store.TryAddMail(it.eventID, handleToSnapshot(h)); err != nil {
						p.engine.logger.Debugf("pending search resolve failed for entry %s: %v", h.EntryID, err)
						continue
					}
					resolved[it.entryID] = struct{}{}
				}
			}
		}
	}

	var retry []pendingItem
	for _, it := range items {
		if _, ok := resolved[it.entryID]; ok {
			continue
		}
		it.retries++
		if it.retries > p.cfg.SearchMaxRetries {
			p.engine.logger.Debugf("pending search gave up on entry %s after %d retries", it.entryID, it.retries-1)
			continue
		}
		retry = append(retry, it)
	}

	if len(retry) == 0 {
		return
	}
	time.AfterFunc(p.cfg.SearchRetryBackoff, func() {
		p.mu.Lock()
		p.items = append(p.items, retry...)
		p.mu.Unlock()
		p.fire()
	})
}
