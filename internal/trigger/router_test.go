package trigger

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatforge/chatforge/internal/adapters"
	"github.com/chatforge/chatforge/internal/engine"
	"github.com/chatforge/chatforge/internal/executor"
	"github.com/chatforge/chatforge/internal/registry"
	"github.com/chatforge/chatforge/pkg/schema"
)

type listerSource struct {
	docs []*schema.FlowDocument
}

func (l *listerSource) ActiveFlows(ctx context.Context) ([]*schema.FlowDocument, error) {
	return l.docs, nil
}

func (l *listerSource) Flow(ctx context.Context, flowID string) (*schema.FlowDocument, error) {
	for _, d := range l.docs {
		if d.ID == flowID {
			return d, nil
		}
	}
	return nil, schema.NewErrorf(schema.ErrCodeNotFound, "flow %s not found", flowID)
}

type recordingMessenger struct {
	adapters.Messenger
	mu    sync.Mutex
	texts []string
}

func (m *recordingMessenger) SendText(ctx context.Context, conversationID, text string) adapters.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	return adapters.OK(nil)
}

func (m *recordingMessenger) SendButtons(ctx context.Context, conversationID string, cfg schema.ButtonsConfig) adapters.Result {
	return adapters.OK(nil)
}

func greetingFlow() *schema.FlowDocument {
	return &schema.FlowDocument{
		ID: "greeting",
		Nodes: []schema.Node{
			{ID: "t", Type: schema.NodeTypeTrigger,
				Config: json.RawMessage(`{"keywords":["hello","hi"],"match":"exact"}`)},
			{ID: "reply", Type: schema.NodeTypeMessage,
				Config: json.RawMessage(`{"text":"Welcome, you said {{message.text}}"}`)},
		},
		Edges: []schema.Edge{{Source: "t", Target: "reply"}},
	}
}

func newRouter(docs ...*schema.FlowDocument) (*Router, *recordingMessenger, *registry.MemoryRegistry) {
	src := &listerSource{docs: docs}
	m := &recordingMessenger{}
	reg := registry.NewMemoryRegistry()
	exec := executor.New(&adapters.Registry{Messenger: m}, nil)
	eng := engine.New(src, exec, reg, nil)
	return NewRouter(eng, src, nil), m, reg
}

func TestKeywordTriggerStartsFlow(t *testing.T) {
	router, m, _ := newRouter(greetingFlow())

	err := router.Handle(context.Background(), &InboundEvent{
		ConversationID: "c1", Kind: "text", Text: "Hello",
	})
	require.NoError(t, err)
	require.Len(t, m.texts, 1)
	assert.Equal(t, "Welcome, you said Hello", m.texts[0])
}

func TestUnmatchedTextIsDropped(t *testing.T) {
	router, m, _ := newRouter(greetingFlow())

	err := router.Handle(context.Background(), &InboundEvent{
		ConversationID: "c1", Kind: "text", Text: "goodbye",
	})
	require.NoError(t, err)
	assert.Empty(t, m.texts)
}

func TestResumeWinsOverTrigger(t *testing.T) {
	doc := greetingFlow()
	doc.Nodes = append(doc.Nodes, schema.Node{
		ID: "ask", Type: schema.NodeTypeButtons,
		Config: json.RawMessage(`{"text":"Pick","buttons":[{"id":"b1","title":"One"}]}`),
	})
	doc.Edges = append(doc.Edges, schema.Edge{Source: "ask", Target: "reply"})

	router, m, reg := newRouter(doc)
	ctx := context.Background()

	require.NoError(t, reg.Pause(ctx, &registry.PausedExecution{
		FlowID: "greeting", NodeID: "ask", ConversationID: "c1",
		Waiting:   schema.WaitButton,
		Variables: map[string]any{},
	}))

	// "hello" matches the keyword trigger, but the waiting conversation
	// consumes it as a button answer instead.
	err := router.Handle(ctx, &InboundEvent{ConversationID: "c1", Kind: "text", Text: "hello"})
	require.NoError(t, err)
	require.Len(t, m.texts, 1)
	assert.Contains(t, m.texts[0], "Welcome")

	entry, err := reg.Lookup(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestStaleButtonTapWithoutWaitIsDropped(t *testing.T) {
	router, m, _ := newRouter(greetingFlow())

	err := router.Handle(context.Background(), &InboundEvent{
		ConversationID: "c1", Kind: "button", ButtonID: "b1", ButtonTitle: "hello",
	})
	require.NoError(t, err)
	assert.Empty(t, m.texts)
}

func TestHandleRequiresConversationID(t *testing.T) {
	router, _, _ := newRouter(greetingFlow())

	assert.Error(t, router.Handle(context.Background(), &InboundEvent{Text: "hello"}))
	assert.Error(t, router.Handle(context.Background(), nil))
}

func TestMatchModes(t *testing.T) {
	cases := []struct {
		mode string
		text string
		want bool
	}{
		{"exact", "hi", true},
		{"exact", "hi there", false},
		{"contains", "well hi there", true},
		{"starts-with", "hi there", true},
		{"starts-with", "oh hi", false},
		{"any", "", true},
	}
	for _, tc := range cases {
		cfg := &schema.TriggerConfig{Keywords: []string{"hi"}, Match: tc.mode}
		assert.Equal(t, tc.want, Matches(cfg, tc.text), "%s %q", tc.mode, tc.text)
	}
}

func TestMatchIsCaseInsensitiveAndTrimmed(t *testing.T) {
	cfg := &schema.TriggerConfig{Keywords: []string{"Hello"}, Match: "exact"}
	assert.True(t, Matches(cfg, "  HELLO  "))
}

func TestResumePayloadShapes(t *testing.T) {
	entry := func(w schema.WaitKind) *registry.PausedExecution {
		return &registry.PausedExecution{NodeID: "ask", Waiting: w}
	}

	p := ResumePayload(entry(schema.WaitButton), &InboundEvent{ButtonID: "b1", ButtonTitle: "Yes"})
	assert.Equal(t, "b1", p["ask.buttonId"])
	assert.Equal(t, "Yes", p["ask.buttonTitle"])
	assert.Equal(t, "Yes", p["ask.reply"])

	p = ResumePayload(entry(schema.WaitButton), &InboundEvent{Text: "yes please"})
	assert.Equal(t, "yes please", p["ask.buttonTitle"], "typed answers resume button waits")

	p = ResumePayload(entry(schema.WaitList), &InboundEvent{ListRowID: "r1", ListRowTitle: "Large"})
	assert.Equal(t, "r1", p["ask.selectionId"])
	assert.Equal(t, "Large", p["ask.reply"])

	p = ResumePayload(entry(schema.WaitFlow), &InboundEvent{FormData: map[string]any{"email": "a@b.c"}})
	assert.Equal(t, "a@b.c", p["ask.email"])
	assert.Equal(t, "a@b.c", p["flow_response.email"])

	p = ResumePayload(entry(schema.WaitLocation), &InboundEvent{Latitude: 1.5, Longitude: -2.25})
	assert.Equal(t, 1.5, p["ask.latitude"])
	assert.Equal(t, -2.25, p["ask.longitude"])

	p = ResumePayload(entry(schema.WaitMessage), &InboundEvent{Text: "blue"})
	assert.Equal(t, "blue", p["ask.reply"])
	assert.Equal(t, "blue", p["ask.answer"])
}
