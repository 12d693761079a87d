package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"

	"github.com/opik/osem/internal/ports"
)

// JSONFile persists the event collection as one pretty-printed JSON
// document, guarded by a cross-process exclusive file lock so a second
// OS process cannot race the write — the same github.com/gofrs/flock
// idiom used to serialise exclusive access to on-disk daemon state in
// the rest of the example corpus, applied here to the store's document
// instead of a PID file.
type JSONFile struct {
	path string
	lock *flock.Flock
}

// NewJSONFile returns a Persister backed by the JSON document at path.
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

type wireEvent struct {
	EventID             string             `json:"event_id"`
	Title               string             `json:"title"`
	TemplateID          string             `json:"template_id,omitempty"`
	Status              ports.EventStatus  `json:"status"`
	Priority            int                `json:"priority"`
	CreatedAt           string             `json:"created_at"`
	UpdatedAt           string             `json:"updated_at"`
	ConversationIDs     []string           `json:"conversation_ids"`
	RelatedSubjects     []string           `json:"related_subjects"`
	Participants        []string           `json:"participants"`
	NotFoundMessageIDs  []string           `json:"not_found_message_ids"`
	ProcessedMessageIDs []string           `json:"processed_message_ids"`
	Emails              []wireEmail        `json:"emails"`
	Attachments         []ports.Attachment `json:"attachments"`
	DashboardItems      []ports.KeyValue   `json:"dashboard_items,omitempty"`
	DisplayColumnSource string             `json:"display_column_source,omitempty"`
	DisplayColumnCustom string             `json:"display_column_custom,omitempty"`
	AdditionalFiles     []string           `json:"additional_files,omitempty"`
}

type wireEmail struct {
	EntryID             string   `json:"entry_id"`
	StoreID             string   `json:"store_id"`
	ConversationID      string   `json:"conversation_id"`
	InternetMessageID   string   `json:"internet_message_id"`
	Sender              string   `json:"sender"`
	To                  string   `json:"to"`
	Subject             string   `json:"subject"`
	Participants        []string `json:"participants"`
	BodyFingerprint     string   `json:"body_fingerprint"`
	ThreadIndex         string   `json:"thread_index"`
	ThreadIndexPrefix   string   `json:"thread_index_prefix"`
	ReferenceMessageIDs []string `json:"reference_message_ids"`
	ReceivedOn          string   `json:"received_on"`
	IsNewOrUpdated      bool     `json:"is_new_or_updated"`
	IsRemoved           bool     `json:"is_removed"`
}

const isoLayout = "2006-01-02T15:04:05.000Z0700"

// Persist writes events to the JSON document atomically: marshal, write
// to a temp file in the same directory, then rename over the target.
func (f *JSONFile) Persist(events []*ports.Event) error {
	locked, err := f.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring store lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("event store document is locked by another process")
	}
	defer func() { _ = f.lock.Unlock() }()

	wire := make([]wireEvent, 0, len(events))
	for _, e := range events {
		wire = append(wire, toWireEvent(e))
	}
	sort.Slice(wire, func(i, j int) bool { return wire[i].EventID < wire[j].EventID })

	data, err := json.MarshalIndent(wire, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal event store: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "event-store-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp store file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp store file: %w", err)
	}
	return nil
}

// Load reads the JSON document, returning (nil, nil) if it does not yet
// exist, or ports.ErrCorrupt wrapping the parse error if it cannot be
// read.
func (f *JSONFile) Load() ([]*ports.Event, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrCorrupt, err)
	}

	var wire []wireEvent
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrCorrupt, err)
	}

	out := make([]*ports.Event, 0, len(wire))
	for _, w := range wire {
		out = append(out, fromWireEvent(w))
	}
	return out, nil
}

// LoadFrom reads path's JSON document and seeds store with its contents.
// Intended to run once at startup before the store serves any requests.
func LoadFrom(path string, into *Store) error {
	events, err := NewJSONFile(path).Load()
	if err != nil {
		return err
	}
	into.Seed(events)
	return nil
}

func toWireEvent(e *ports.Event) wireEvent {
	emails := make([]wireEmail, len(e.Emails))
	for i, m := range e.Emails {
		emails[i] = wireEmail{
			EntryID:             m.EntryID,
			StoreID:             m.StoreID,
			ConversationID:      m.ConversationID,
			InternetMessageID:   m.InternetMessageID,
			Sender:              m.Sender,
			To:                  m.To,
			Subject:             m.Subject,
			Participants:        setToSlice(m.Participants),
			BodyFingerprint:     m.BodyFingerprint,
			ThreadIndex:         m.ThreadIndex,
			ThreadIndexPrefix:   m.ThreadIndexPrefix,
			ReferenceMessageIDs: setToSlice(m.ReferenceMessageIDs),
			ReceivedOn:          m.ReceivedOn.UTC().Format(isoLayout),
			IsNewOrUpdated:      m.IsNewOrUpdated,
			IsRemoved:           m.IsRemoved,
		}
	}

	return wireEvent{
		EventID:             e.EventID,
		Title:               e.Title,
		TemplateID:          e.TemplateID,
		Status:              e.Status,
		Priority:            e.Priority,
		CreatedAt:           e.CreatedAt.UTC().Format(isoLayout),
		UpdatedAt:           e.UpdatedAt.UTC().Format(isoLayout),
		ConversationIDs:     e.ConversationIDs,
		RelatedSubjects:     setToSlice(e.RelatedSubjects),
		Participants:        setToSlice(e.Participants),
		NotFoundMessageIDs:  setToSlice(e.NotFoundMessageIDs),
		ProcessedMessageIDs: setToSlice(e.ProcessedMessageIDs),
		Emails:              emails,
		Attachments:         e.Attachments,
		DashboardItems:      e.DashboardItems,
		DisplayColumnSource: e.DisplayColumnSource,
		DisplayColumnCustom: e.DisplayColumnCustom,
		AdditionalFiles:     e.AdditionalFiles,
	}
}

func fromWireEvent(w wireEvent) *ports.Event {
	emails := make([]ports.Email, len(w.Emails))
	for i, m := range w.Emails {
		emails[i] = ports.Email{
			EntryID:             m.EntryID,
			StoreID:             m.StoreID,
			ConversationID:      m.ConversationID,
			InternetMessageID:   m.InternetMessageID,
			Sender:              m.Sender,
			To:                  m.To,
			Subject:             m.Subject,
			Participants:        sliceToSet(m.Participants),
			BodyFingerprint:     m.BodyFingerprint,
			ThreadIndex:         m.ThreadIndex,
			ThreadIndexPrefix:   m.ThreadIndexPrefix,
			ReferenceMessageIDs: sliceToSet(m.ReferenceMessageIDs),
			ReceivedOn:          parseISO(m.ReceivedOn),
			IsNewOrUpdated:      m.IsNewOrUpdated,
			IsRemoved:           m.IsRemoved,
		}
	}

	return &ports.Event{
		EventID:             w.EventID,
		Title:               w.Title,
		TemplateID:          w.TemplateID,
		Status:              w.Status,
		Priority:            w.Priority,
		CreatedAt:           parseISO(w.CreatedAt),
		UpdatedAt:           parseISO(w.UpdatedAt),
		ConversationIDs:     w.ConversationIDs,
		RelatedSubjects:     sliceToSet(w.RelatedSubjects),
		Participants:        sliceToSet(w.Participants),
		NotFoundMessageIDs:  sliceToSet(w.NotFoundMessageIDs),
		ProcessedMessageIDs: sliceToSet(w.ProcessedMessageIDs),
		Emails:              emails,
		Attachments:         w.Attachments,
		DashboardItems:      w.DashboardItems,
		DisplayColumnSource: w.DisplayColumnSource,
		DisplayColumnCustom: w.DisplayColumnCustom,
		AdditionalFiles:     w.AdditionalFiles,
	}
}

func setToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sliceToSet(slice []string) map[string]struct{} {
	out := make(map[string]struct{}, len(slice))
	for _, s := range slice {
		out[s] = struct{}{}
	}
	return out
}

func parseISO(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(isoLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}
		}
	}
	return t.UTC()
}
