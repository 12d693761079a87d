package catchup

import "testing"

func TestQueueDeduplicatesByEventAndConversation(t *testing.T) {
	q := newQueue(0)

	if !q.push(request{eventID: "EVT-1", conversationID: "conv-1"}) {
		t.Fatal("expected first push to succeed")
	}
	if q.push(request{eventID: "EVT-1", conversationID: "conv-1"}) {
		t.Error("duplicate (event_id, conversation_id) must be rejected")
	}
	if q.len() != 1 {
		t.Errorf("expected 1 queued item, got %d", q.len())
	}
}

func TestQueueDrainReleasesDedupeKeys(t *testing.T) {
	q := newQueue(0)
	q.push(request{eventID: "EVT-1", conversationID: "conv-1"})

	drained := q.drain(10)
	if len(drained) != 1 {
		t.Fatalf("expected 1 drained item, got %d", len(drained))
	}

	if !q.push(request{eventID: "EVT-1", conversationID: "conv-1"}) {
		t.Error("re-pushing after drain should succeed, key must be released")
	}
}

func TestQueuePushFrontPrioritizes(t *testing.T) {
	q := newQueue(0)
	q.push(request{eventID: "EVT-1", conversationID: "conv-1"})
	q.pushFront(request{eventID: "EVT-2", conversationID: "conv-2"})

	drained := q.drain(1)
	if drained[0].eventID != "EVT-2" {
		t.Errorf("expected pushFront item to drain first, got %s", drained[0].eventID)
	}
}

func TestQueueRespectsCapacity(t *testing.T) {
	q := newQueue(1)
	q.push(request{eventID: "EVT-1", conversationID: "conv-1"})
	if q.push(request{eventID: "EVT-2", conversationID: "conv-2"}) {
		t.Error("push beyond capacity must be rejected")
	}
}
