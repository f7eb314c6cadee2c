package executor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatforge/chatforge/internal/adapters"
	"github.com/chatforge/chatforge/internal/variables"
	"github.com/chatforge/chatforge/pkg/schema"
)

// fakeMessenger records sends and can be told to fail.
type fakeMessenger struct {
	adapters.Messenger
	sent []string
	fail bool
}

func (f *fakeMessenger) result(kind string) adapters.Result {
	if f.fail {
		return adapters.Fail(errors.New("provider down"))
	}
	f.sent = append(f.sent, kind)
	return adapters.OK(map[string]any{"message_id": "m1"})
}

func (f *fakeMessenger) SendText(ctx context.Context, conversationID, text string) adapters.Result {
	return f.result("text:" + text)
}

func (f *fakeMessenger) SendButtons(ctx context.Context, conversationID string, cfg schema.ButtonsConfig) adapters.Result {
	return f.result("buttons:" + cfg.Text)
}

func (f *fakeMessenger) SendList(ctx context.Context, conversationID string, cfg schema.ListConfig) adapters.Result {
	return f.result("list")
}

func (f *fakeMessenger) SendFlowForm(ctx context.Context, conversationID string, cfg schema.FlowFormConfig) adapters.Result {
	return f.result("flow-form")
}

func (f *fakeMessenger) RequestLocation(ctx context.Context, conversationID, text string) adapters.Result {
	return f.result("location-request")
}

func newTestExecutor(m adapters.Messenger) *Executor {
	return New(&adapters.Registry{Messenger: m}, nil)
}

func node(id string, typ schema.NodeType, config string) *schema.Node {
	n := &schema.Node{ID: id, Type: typ}
	if config != "" {
		n.Config = json.RawMessage(config)
	}
	return n
}

func TestMessageNodeInterpolatesAndAdvances(t *testing.T) {
	m := &fakeMessenger{}
	ex := newTestExecutor(m)
	vars := variables.NewSeeded(map[string]any{"customer.name": "Ada"})

	res := ex.Execute(context.Background(), node("greet", schema.NodeTypeMessage, `{"text":"Hi {{customer.name}}"}`), vars, "c1")

	assert.Equal(t, StepResult{}, res)
	require.Len(t, m.sent, 1)
	assert.Equal(t, "text:Hi Ada", m.sent[0])

	got, ok := vars.Lookup("greet.success")
	require.True(t, ok)
	assert.Equal(t, true, got)
}

func TestMessageSendFailureIsSoft(t *testing.T) {
	m := &fakeMessenger{fail: true}
	ex := newTestExecutor(m)
	vars := variables.New()

	res := ex.Execute(context.Background(), node("greet", schema.NodeTypeMessage, `{"text":"hi"}`), vars, "c1")

	assert.False(t, res.Pause)
	assert.False(t, res.End)
	assert.NoError(t, res.Err)

	got, _ := vars.Lookup("greet.success")
	assert.Equal(t, false, got)
	errText, ok := vars.Lookup("greet.error")
	require.True(t, ok)
	assert.Contains(t, errText, "provider down")
}

func TestButtonsSuspendOnlyOnSuccessfulSend(t *testing.T) {
	cfg := `{"text":"Pick one","buttons":[{"id":"a","title":"A"}]}`

	ok := newTestExecutor(&fakeMessenger{})
	res := ok.Execute(context.Background(), node("ask", schema.NodeTypeButtons, cfg), variables.New(), "c1")
	assert.True(t, res.Pause)
	assert.Equal(t, schema.WaitButton, res.Waiting)

	failing := newTestExecutor(&fakeMessenger{fail: true})
	vars := variables.New()
	res = failing.Execute(context.Background(), node("ask", schema.NodeTypeButtons, cfg), vars, "c1")
	assert.False(t, res.Pause, "a conversation that never saw the prompt must not wait on it")
	assert.True(t, res.End, "an undelivered prompt ends the path instead of running the answer's nodes")

	got, _ := vars.Lookup("ask.success")
	assert.Equal(t, false, got)
}

func TestFailedInteractiveSendsEndThePath(t *testing.T) {
	cases := []struct {
		id   string
		typ  schema.NodeType
		conf string
	}{
		{"ask", schema.NodeTypeButtons, `{"text":"Pick","buttons":[{"id":"a","title":"A"}]}`},
		{"menu", schema.NodeTypeList, `{"text":"Menu","sections":[{"rows":[{"id":"r1","title":"Row"}]}]}`},
		{"form", schema.NodeTypeFlowForm, `{"text":"Fill","flow_id":"fl1"}`},
		{"q", schema.NodeTypeQuestion, `{"text":"Name?"}`},
		{"loc", schema.NodeTypeLocationRequest, `{"text":"Where?"}`},
	}
	ex := newTestExecutor(&fakeMessenger{fail: true})
	for _, tc := range cases {
		res := ex.Execute(context.Background(), node(tc.id, tc.typ, tc.conf), variables.New(), "c1")
		assert.True(t, res.End, tc.id)
		assert.False(t, res.Pause, tc.id)
		assert.NoError(t, res.Err, tc.id)
	}
}

func TestListSuspendsWithListWait(t *testing.T) {
	ex := newTestExecutor(&fakeMessenger{})
	cfg := `{"text":"Menu","button_text":"Open","sections":[{"rows":[{"id":"r1","title":"Row"}]}]}`

	res := ex.Execute(context.Background(), node("menu", schema.NodeTypeList, cfg), variables.New(), "c1")
	assert.True(t, res.Pause)
	assert.Equal(t, schema.WaitList, res.Waiting)
}

func TestTriggerNodesPassThrough(t *testing.T) {
	ex := newTestExecutor(&fakeMessenger{})

	res := ex.Execute(context.Background(), node("t", schema.NodeTypeTrigger, `{"keywords":["hi"]}`), variables.New(), "c1")
	assert.Equal(t, StepResult{}, res)

	res = ex.Execute(context.Background(), node("w", schema.NodeTypeWebhookTrigger, ""), variables.New(), "c1")
	assert.Equal(t, StepResult{}, res)
}

func TestUnknownNodeTypeSkipped(t *testing.T) {
	ex := newTestExecutor(&fakeMessenger{})

	res := ex.Execute(context.Background(), node("x", schema.NodeType("hologram"), ""), variables.New(), "c1")
	assert.Equal(t, StepResult{}, res)
}

func TestUnwiredMessengerFailsSoft(t *testing.T) {
	ex := New(nil, nil)
	vars := variables.New()

	res := ex.Execute(context.Background(), node("greet", schema.NodeTypeMessage, `{"text":"hi"}`), vars, "c1")
	assert.NoError(t, res.Err)

	got, _ := vars.Lookup("greet.success")
	assert.Equal(t, false, got)
}

func TestTransformStoresResultUnderNodeAndVariable(t *testing.T) {
	ex := newTestExecutor(&fakeMessenger{})
	vars := variables.NewSeeded(map[string]any{"order_total": 40.0})

	cfg := `{"expression":"order_total * 1.25","variable":"total_with_tax"}`
	res := ex.Execute(context.Background(), node("tx", schema.NodeTypeTransform, cfg), vars, "c1")
	assert.Equal(t, StepResult{}, res)

	got, ok := vars.Lookup("tx.result")
	require.True(t, ok)
	assert.InDelta(t, 50.0, got, 1e-9)

	got, ok = vars.Lookup("total_with_tax")
	require.True(t, ok)
	assert.InDelta(t, 50.0, got, 1e-9)
}

func TestTransformBadExpressionIsSoft(t *testing.T) {
	ex := newTestExecutor(&fakeMessenger{})
	vars := variables.New()

	res := ex.Execute(context.Background(), node("tx", schema.NodeTypeTransform, `{"expression":"1 +"}`), vars, "c1")
	assert.NoError(t, res.Err)

	got, _ := vars.Lookup("tx.success")
	assert.Equal(t, false, got)
}

func TestIntegrationNodesWithoutAdapterAreSoft(t *testing.T) {
	ex := New(&adapters.Registry{Messenger: &fakeMessenger{}}, nil)

	cases := []struct {
		id   string
		typ  schema.NodeType
		conf string
	}{
		{"ai", schema.NodeTypeAI, `{"prompt":"hello"}`},
		{"mail", schema.NodeTypeEmail, `{"to":"a@b.c"}`},
		{"sheet", schema.NodeTypeSheets, `{"spreadsheet_id":"s1"}`},
		{"db", schema.NodeTypeDatabase, `{"query":"select 1"}`},
	}
	for _, tc := range cases {
		vars := variables.New()
		res := ex.Execute(context.Background(), node(tc.id, tc.typ, tc.conf), vars, "c1")
		assert.NoError(t, res.Err, tc.id)
		got, _ := vars.Lookup(tc.id + ".success")
		assert.Equal(t, false, got, tc.id)
	}
}

func TestDelayZeroAmountAdvancesImmediately(t *testing.T) {
	ex := newTestExecutor(&fakeMessenger{})

	res := ex.Execute(context.Background(), node("wait", schema.NodeTypeDelay, `{"amount":0,"unit":"seconds"}`), variables.New(), "c1")
	assert.Equal(t, StepResult{}, res)
}

func TestDelayOverCapIsClampedAndMarked(t *testing.T) {
	ex := newTestExecutor(&fakeMessenger{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	vars := variables.New()

	res := ex.Execute(ctx, node("wait", schema.NodeTypeDelay, `{"amount":3,"unit":"days"}`), vars, "c1")
	assert.True(t, res.End)

	got, ok := vars.Lookup("wait.clamped")
	require.True(t, ok, "a clamped delay must be visible to the flow author")
	assert.Equal(t, true, got)
}

func TestDelayCancelledByContextEndsPath(t *testing.T) {
	ex := newTestExecutor(&fakeMessenger{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := ex.Execute(ctx, node("wait", schema.NodeTypeDelay, `{"amount":30,"unit":"minutes"}`), variables.New(), "c1")
	assert.True(t, res.End)
}
