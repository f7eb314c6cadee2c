package engine

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatforge/chatforge/internal/adapters"
	"github.com/chatforge/chatforge/internal/executor"
	"github.com/chatforge/chatforge/internal/registry"
	"github.com/chatforge/chatforge/pkg/schema"
)

type mapSource map[string]*schema.FlowDocument

func (m mapSource) Flow(ctx context.Context, flowID string) (*schema.FlowDocument, error) {
	doc, ok := m[flowID]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "flow %s not found", flowID)
	}
	return doc, nil
}

type memJournal struct {
	mu     sync.Mutex
	events []*schema.RunEvent
}

func (j *memJournal) Record(ctx context.Context, event *schema.RunEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, event)
	return nil
}

func (j *memJournal) types() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.events))
	for i, e := range j.events {
		out[i] = e.Type
	}
	return out
}

type countingMessenger struct {
	adapters.Messenger
	mu    sync.Mutex
	texts []string
}

func (m *countingMessenger) SendText(ctx context.Context, conversationID, text string) adapters.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	return adapters.OK(map[string]any{"message_id": "m1"})
}

func (m *countingMessenger) SendButtons(ctx context.Context, conversationID string, cfg schema.ButtonsConfig) adapters.Result {
	return adapters.OK(nil)
}

func msgNode(id, text string) schema.Node {
	return schema.Node{
		ID: id, Type: schema.NodeTypeMessage,
		Config: json.RawMessage(`{"text":"` + text + `"}`),
	}
}

func newTestEngine(docs mapSource) (*Engine, *countingMessenger, *registry.MemoryRegistry, *memJournal) {
	m := &countingMessenger{}
	reg := registry.NewMemoryRegistry()
	journal := &memJournal{}
	exec := executor.New(&adapters.Registry{Messenger: m}, nil)
	eng := New(docs, exec, reg, nil, WithJournal(journal))
	return eng, m, reg, journal
}

func TestStartWalksLinearFlow(t *testing.T) {
	doc := &schema.FlowDocument{
		ID: "f1",
		Nodes: []schema.Node{
			{ID: "start", Type: schema.NodeTypeTrigger},
			msgNode("hello", "one"),
			msgNode("bye", "two"),
		},
		Edges: []schema.Edge{
			{Source: "start", Target: "hello"},
			{Source: "hello", Target: "bye"},
		},
	}
	eng, m, _, journal := newTestEngine(mapSource{"f1": doc})

	require.NoError(t, eng.Start(context.Background(), "f1", "c1", nil))
	assert.Equal(t, []string{"one", "two"}, m.texts)
	assert.Contains(t, journal.types(), schema.EventRunStarted)
	assert.Contains(t, journal.types(), schema.EventRunCompleted)
}

func TestStartSeedsTriggerVariables(t *testing.T) {
	doc := &schema.FlowDocument{
		ID: "f1",
		Nodes: []schema.Node{
			{ID: "start", Type: schema.NodeTypeTrigger},
			msgNode("hello", "Hi {{contact.name}}"),
		},
		Edges: []schema.Edge{{Source: "start", Target: "hello"}},
	}
	eng, m, _, _ := newTestEngine(mapSource{"f1": doc})

	require.NoError(t, eng.Start(context.Background(), "f1", "c1",
		map[string]any{"contact.name": "Ada"}))
	require.Len(t, m.texts, 1)
	assert.Equal(t, "Hi Ada", m.texts[0])
}

func TestCycleStopsAtStepCap(t *testing.T) {
	doc := &schema.FlowDocument{
		ID: "loop",
		Nodes: []schema.Node{
			msgNode("a", "ping"),
			msgNode("b", "pong"),
		},
		Edges: []schema.Edge{
			{Source: "a", Target: "b"},
			{Source: "b", Target: "a"},
		},
	}
	eng, m, _, journal := newTestEngine(mapSource{"loop": doc})

	require.NoError(t, eng.Start(context.Background(), "loop", "c1", nil))
	assert.Len(t, m.texts, MaxSteps)
	assert.Contains(t, journal.types(), schema.EventCapReached)
}

func TestMissingNodeEndsPathWithoutError(t *testing.T) {
	doc := &schema.FlowDocument{
		ID: "f1",
		Nodes: []schema.Node{
			msgNode("a", "one"),
		},
		Edges: []schema.Edge{{Source: "a", Target: "ghost"}},
	}
	eng, m, _, journal := newTestEngine(mapSource{"f1": doc})

	require.NoError(t, eng.Start(context.Background(), "f1", "c1", nil))
	assert.Equal(t, []string{"one"}, m.texts)
	assert.Contains(t, journal.types(), schema.EventNodeMissing)
}

func buttonFlow() *schema.FlowDocument {
	return &schema.FlowDocument{
		ID: "f1",
		Nodes: []schema.Node{
			{ID: "start", Type: schema.NodeTypeTrigger},
			{ID: "ask", Type: schema.NodeTypeButtons,
				Config: json.RawMessage(`{"text":"Pick","buttons":[{"id":"yes","title":"Yes"}]}`)},
			msgNode("done", "You picked {{ask.buttonTitle}}"),
		},
		Edges: []schema.Edge{
			{Source: "start", Target: "ask"},
			{Source: "ask", Target: "done"},
		},
	}
}

type failingButtonsMessenger struct {
	countingMessenger
}

func (m *failingButtonsMessenger) SendButtons(ctx context.Context, conversationID string, cfg schema.ButtonsConfig) adapters.Result {
	return adapters.Fail(schema.NewError(schema.ErrCodeAdapter, "provider down"))
}

func TestFailedInteractiveSendEndsPathSilently(t *testing.T) {
	m := &failingButtonsMessenger{}
	reg := registry.NewMemoryRegistry()
	journal := &memJournal{}
	exec := executor.New(&adapters.Registry{Messenger: m}, nil)
	eng := New(mapSource{"f1": buttonFlow()}, exec, reg, nil, WithJournal(journal))

	require.NoError(t, eng.Start(context.Background(), "f1", "c1", nil))

	assert.Empty(t, m.texts, "the node past the undelivered prompt must not run")

	entry, err := reg.Lookup(context.Background(), "c1")
	require.NoError(t, err)
	assert.Nil(t, entry, "an undelivered prompt leaves nothing to wait on")
	assert.Contains(t, journal.types(), schema.EventPathEnded)
	assert.NotContains(t, journal.types(), schema.EventRunSuspended)
}

func TestInteractiveNodeSuspendsRun(t *testing.T) {
	eng, m, reg, journal := newTestEngine(mapSource{"f1": buttonFlow()})

	require.NoError(t, eng.Start(context.Background(), "f1", "c1", nil))
	assert.Empty(t, m.texts, "nothing past the buttons node runs before the reply")
	assert.Contains(t, journal.types(), schema.EventRunSuspended)

	entry, err := reg.Lookup(context.Background(), "c1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "ask", entry.NodeID)
	assert.Equal(t, schema.WaitButton, entry.Waiting)
}

func TestResumeContinuesPastPausedNode(t *testing.T) {
	eng, m, reg, journal := newTestEngine(mapSource{"f1": buttonFlow()})
	ctx := context.Background()

	require.NoError(t, eng.Start(ctx, "f1", "c1", nil))

	resumed, err := eng.Resume(ctx, "c1", func(entry *registry.PausedExecution) map[string]any {
		return map[string]any{
			entry.NodeID + ".buttonId":    "yes",
			entry.NodeID + ".buttonTitle": "Yes",
		}
	})
	require.NoError(t, err)
	assert.True(t, resumed)

	require.Len(t, m.texts, 1)
	assert.Equal(t, "You picked Yes", m.texts[0])
	assert.Contains(t, journal.types(), schema.EventRunResumed)

	entry, err := reg.Lookup(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, entry, "the wait is consumed")
}

func TestResumeWithoutPausedEntryIsFalse(t *testing.T) {
	eng, _, _, _ := newTestEngine(mapSource{"f1": buttonFlow()})

	resumed, err := eng.Resume(context.Background(), "stranger", nil)
	require.NoError(t, err)
	assert.False(t, resumed)
}

func TestResumePreservesSuspendedVariables(t *testing.T) {
	doc := buttonFlow()
	doc.Nodes[2] = msgNode("done", "Order {{order.id}} picked {{ask.buttonId}}")
	eng, m, _, _ := newTestEngine(mapSource{"f1": doc})
	ctx := context.Background()

	require.NoError(t, eng.Start(ctx, "f1", "c1", map[string]any{"order.id": "o-9"}))

	resumed, err := eng.Resume(ctx, "c1", func(entry *registry.PausedExecution) map[string]any {
		return map[string]any{"ask.buttonId": "yes"}
	})
	require.NoError(t, err)
	require.True(t, resumed)
	require.Len(t, m.texts, 1)
	assert.Equal(t, "Order o-9 picked yes", m.texts[0])
}

func TestResumeFromDeletedNodeEndsPath(t *testing.T) {
	eng, _, reg, _ := newTestEngine(mapSource{"f1": buttonFlow()})
	ctx := context.Background()

	require.NoError(t, reg.Pause(ctx, &registry.PausedExecution{
		FlowID:         "f1",
		NodeID:         "vanished",
		ConversationID: "c1",
		Waiting:        schema.WaitButton,
	}))

	resumed, err := eng.Resume(ctx, "c1", nil)
	require.NoError(t, err)
	assert.True(t, resumed, "the reply is consumed even when the node is gone")
}

func TestConditionBranchRouting(t *testing.T) {
	doc := &schema.FlowDocument{
		ID: "f1",
		Nodes: []schema.Node{
			{ID: "route", Type: schema.NodeTypeCondition,
				Config: json.RawMessage(`{"conditions":[{"variable":"vip","operator":"==","value":true,"next":"gold"}],"default_next":"std"}`)},
			msgNode("gold", "welcome back"),
			msgNode("std", "hello"),
		},
	}
	eng, m, _, _ := newTestEngine(mapSource{"f1": doc})

	require.NoError(t, eng.Start(context.Background(), "f1", "c1", map[string]any{"vip": true}))
	require.Len(t, m.texts, 1)
	assert.Equal(t, "welcome back", m.texts[0])

	m.texts = nil
	require.NoError(t, eng.Start(context.Background(), "f1", "c2", nil))
	require.Len(t, m.texts, 1)
	assert.Equal(t, "hello", m.texts[0])
}

func TestStartAtNodeOverridesStart(t *testing.T) {
	doc := &schema.FlowDocument{
		ID: "f1",
		Nodes: []schema.Node{
			{ID: "start", Type: schema.NodeTypeTrigger},
			{ID: "hook", Type: schema.NodeTypeWebhookTrigger},
			msgNode("greet", "hi"),
			msgNode("hooked", "caught"),
		},
		Edges: []schema.Edge{
			{Source: "start", Target: "greet"},
			{Source: "hook", Target: "hooked"},
		},
	}
	eng, m, _, _ := newTestEngine(mapSource{"f1": doc})

	require.NoError(t, eng.StartAtNode(context.Background(), "f1", "hook", "c1", nil))
	assert.Equal(t, []string{"caught"}, m.texts)
}

func TestStartUnknownFlowFails(t *testing.T) {
	eng, _, _, _ := newTestEngine(mapSource{})
	err := eng.Start(context.Background(), "nope", "c1", nil)
	require.Error(t, err)
}
