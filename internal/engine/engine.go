// Package engine wires the Event Store, Matching Engine, Catch-up
// Engine, Template Resolver, and a mail-source adapter into one running
// instance, the way the teacher's internal/app.Application wires its
// adapters and services together behind a single Start/Stop lifecycle
// for whatever UI layer embeds it. Here the "UI layer" is whatever host
// process links this package in — a CLI, a daemon, a plugin host.
package engine

import (
	"context"
	"fmt"
	"time"

	imapadapter "github.com/opik/osem/internal/adapter/imap"
	"github.com/opik/osem/internal/catchup"
	"github.com/opik/osem/internal/clock"
	"github.com/opik/osem/internal/config"
	"github.com/opik/osem/internal/eventbus"
	"github.com/opik/osem/internal/ingest"
	"github.com/opik/osem/internal/logging"
	"github.com/opik/osem/internal/match"
	"github.com/opik/osem/internal/ports"
	"github.com/opik/osem/internal/store"
	"github.com/opik/osem/internal/template"
	"github.com/opik/osem/internal/textutil"
)

// Engine is the running instance: a store seeded from disk, a matcher,
// a catch-up worker polling the mail source, and the façade a caller
// drives.
type Engine struct {
	cfg      *config.Config
	Store    *store.Store
	Ingest   *ingest.Facade
	Catchup  *catchup.Engine
	Template *template.Resolver
	logger   ports.Logger
	adapter  *imapadapter.Adapter
}

// New loads cfg's event store and template preferences from disk,
// connects the reference IMAP adapter, and wires the catch-up engine
// and ingestion façade around them. The returned Engine is not yet
// polling; call Start.
func New(cfg *config.Config) (*Engine, error) {
	logger := logging.New("engine")
	bus := eventbus.New()
	clk := clock.Real{}

	persister := store.NewJSONFile(cfg.Store.EventStorePath())
	st := store.New(bus, clk, persister, logger)
	if err := store.LoadFrom(cfg.Store.EventStorePath(), st); err != nil {
		return nil, fmt.Errorf("engine: load event store: %w", err)
	}

	tmpl := template.New(cfg.Store.TemplatePreferencesPath())
	if err := tmpl.Load(); err != nil {
		return nil, fmt.Errorf("engine: load template preferences: %w", err)
	}

	adapter, err := imapadapter.Connect(cfg.MailSource)
	if err != nil {
		return nil, fmt.Errorf("engine: connect mail source: %w", err)
	}

	matcher := match.New(match.Config{EnableSecondarySignals: cfg.Match.EnableSecondarySignals})

	def := catchup.DefaultConfig()
	catchupCfg := catchup.Config{
		TickInterval:        cfg.Catchup.TickIntervalDuration(),
		InitialDelay:        cfg.Catchup.InitialDelayDuration(),
		MaxDrainPerTick:     cfg.Catchup.MaxDrainPerTick,
		NormalLookback:      daysToDuration(cfg.Catchup.NormalLookbackDays),
		FullHistoryLookback: daysToDuration(cfg.Catchup.FullHistoryDays),
		EarliestExtension:   def.EarliestExtension,
		QueueCapacity:       0,
		SearchDebounce:      cfg.Catchup.SearchDebounceDuration(),
		SearchMaxRetries:    cfg.Catchup.SearchMaxRetries,
		SearchRetryBackoff:  cfg.Catchup.SearchRetryBackoffDuration(),
		ForceDrainInterval:  cfg.Catchup.ForceDrainIntervalDuration(),
		DeferredRetryLadder: def.DeferredRetryLadder,
	}
	catchupEngine := catchup.New(catchupCfg, st, adapter, adapter, clk, logger)

	facade := ingest.New(st, matcher, catchupEngine, logger)

	e := &Engine{
		cfg:      cfg,
		Store:    st,
		Ingest:   facade,
		Catchup:  catchupEngine,
		Template: tmpl,
		logger:   logger,
		adapter:  adapter,
	}

	adapter.OnNewMail(func(entryIDs []string) {
		for _, id := range entryIDs {
			handle, err := adapter.ResolveByID(context.Background(), id, "INBOX")
			if err != nil {
				logger.Errorf("resolve %s failed: %v", id, err)
				continue
			}
			preferredID, _ := tmpl.GetPreferred(handle.Participants)
			snapshot := handleToSnapshot(*handle)
			if facade.TryAddMail(snapshot, "") == nil {
				logger.Debugf("new mail %s matched no open event (preferred template %q)", id, preferredID)
			}
		}
	})

	return e, nil
}

// Start begins the catch-up engine's background polling.
func (e *Engine) Start() {
	e.Catchup.Start()
}

// Stop halts background polling and closes the mail-source connection.
func (e *Engine) Stop() error {
	e.Catchup.Stop()
	return e.adapter.Close()
}

func daysToDuration(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
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
		ReferenceMessageIDs: h.ReferenceMessageIDs,
		ReceivedOn:          h.ReceivedOn,
		HistoricalSubjects:  textutil.ExtractHistoricalSubjects(h.BodyText),
		Attachments:         h.Attachments,
	}
}
