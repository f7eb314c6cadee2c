package schema

import "encoding/json"

// NodeType selects the executor handler for a node.
type NodeType string

// Trigger node types. They start a flow; when reached mid-graph they are
// pass-throughs and never fail.
const (
	NodeTypeTrigger        NodeType = "trigger"
	NodeTypeWebhookTrigger NodeType = "webhook-trigger"
)

// Message-send node types that continue immediately after a successful send.
const (
	NodeTypeMessage  NodeType = "message"
	NodeTypeMedia    NodeType = "media"
	NodeTypeTemplate NodeType = "template"
	NodeTypeCTA      NodeType = "cta"
	NodeTypeLocation NodeType = "location"
)

// Interactive node types that suspend the run after a successful send and
// wait for the user's reply.
const (
	NodeTypeButtons         NodeType = "buttons"
	NodeTypeList            NodeType = "list"
	NodeTypeFlowForm        NodeType = "flow-form"
	NodeTypeQuestion        NodeType = "question"
	NodeTypeLocationRequest NodeType = "location-request"
)

// Logic and side-effect node types.
const (
	NodeTypeDelay     NodeType = "delay"
	NodeTypeHTTP      NodeType = "http"
	NodeTypeCondition NodeType = "condition"
	NodeTypeTransform NodeType = "transform"
	NodeTypeAI        NodeType = "ai"
	NodeTypeEmail     NodeType = "email"
	NodeTypeSheets    NodeType = "sheets"
	NodeTypeDatabase  NodeType = "database"
)

// WaitKind describes what a suspended conversation is waiting for.
type WaitKind string

const (
	WaitButton   WaitKind = "button"
	WaitList     WaitKind = "list"
	WaitFlow     WaitKind = "flow"
	WaitLocation WaitKind = "location"
	WaitMessage  WaitKind = "message"
	WaitDelay    WaitKind = "delay"
)

// Position is the editor canvas position of a node. The engine carries it
// through untouched.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one step in a flow. Config is handler-specific and decoded into
// the typed config structs below by the node executor.
type Node struct {
	ID       string          `json:"id"`
	Type     NodeType        `json:"type"`
	Config   json.RawMessage `json:"config,omitempty"`
	Position Position        `json:"position,omitempty"`
}

// Edge is a directed link between two nodes. SourceHandle disambiguates
// multiple exits from one node (per-button branch, true/false branch).
// At most one edge per (source, sourceHandle) pair is honored by the
// interpreter; on duplicates the first in document order wins.
type Edge struct {
	ID           string `json:"id,omitempty"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
}

// FlowDocument is the persisted definition of one automation. It is
// read-only to the engine: parsed once per execution attempt.
type FlowDocument struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	StartNode string `json:"startNode,omitempty"`
	Nodes     []Node `json:"nodes"`
	Edges     []Edge `json:"edges"`
}

// --- Typed node configs ---

// TriggerConfig configures a keyword trigger node.
type TriggerConfig struct {
	Keywords []string `json:"keywords,omitempty"`
	// Match is one of "exact", "contains", "starts-with", "any".
	// Empty defaults to "contains".
	Match string `json:"match,omitempty"`
}

// MessageConfig configures a plain text message node.
type MessageConfig struct {
	Text string `json:"text"`
}

// MediaConfig configures a media message node.
type MediaConfig struct {
	MediaType string `json:"media_type"` // image, video, audio, document
	URL       string `json:"url"`
	Caption   string `json:"caption,omitempty"`
	Filename  string `json:"filename,omitempty"`
}

// TemplateConfig configures a template message node.
type TemplateConfig struct {
	Name     string   `json:"name"`
	Language string   `json:"language,omitempty"`
	Params   []string `json:"params,omitempty"`
}

// CTAConfig configures a call-to-action URL message node.
type CTAConfig struct {
	Text       string `json:"text"`
	ButtonText string `json:"button_text"`
	URL        string `json:"url"`
}

// LocationConfig configures a location pin message node.
type LocationConfig struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

// ButtonOption is one reply button.
type ButtonOption struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ButtonsConfig configures an interactive buttons node.
type ButtonsConfig struct {
	Text    string         `json:"text"`
	Buttons []ButtonOption `json:"buttons"`
}

// ListRow is one selectable row of an interactive list.
type ListRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// ListSection groups rows of an interactive list.
type ListSection struct {
	Title string    `json:"title,omitempty"`
	Rows  []ListRow `json:"rows"`
}

// ListConfig configures an interactive list node.
type ListConfig struct {
	Text       string        `json:"text"`
	ButtonText string        `json:"button_text"`
	Sections   []ListSection `json:"sections"`
}

// FlowFormConfig configures a WhatsApp flow form node.
type FlowFormConfig struct {
	Text    string `json:"text"`
	FlowID  string `json:"flow_id"`
	FlowCTA string `json:"flow_cta,omitempty"`
	Screen  string `json:"screen,omitempty"`
}

// QuestionConfig configures a free-text question node. The user's reply is
// stored under the node's ID on resume.
type QuestionConfig struct {
	Text string `json:"text"`
}

// LocationRequestConfig configures a location request node.
type LocationRequestConfig struct {
	Text string `json:"text"`
}

// DelayConfig configures a delay node.
type DelayConfig struct {
	Amount float64 `json:"amount"`
	// Unit is one of "seconds", "minutes", "hours", "days".
	Unit string `json:"unit"`
}

// HTTPAuth configures authentication for an outbound HTTP node.
type HTTPAuth struct {
	// Type is one of "none", "bearer", "basic", "api-key".
	Type        string `json:"type,omitempty"`
	Token       string `json:"token,omitempty"`
	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`
	HeaderName  string `json:"header_name,omitempty"`
	HeaderValue string `json:"header_value,omitempty"`
}

// HTTPNodeConfig configures an outbound HTTP call node.
type HTTPNodeConfig struct {
	Method  string            `json:"method,omitempty"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    any               `json:"body,omitempty"`
	Auth    HTTPAuth          `json:"auth,omitempty"`
	// Variable is the prefix the response is stored under.
	// Empty defaults to the node ID.
	Variable string `json:"variable,omitempty"`
	Timeout  string `json:"timeout,omitempty"`
}

// ConditionCase is one ordered branch of a condition node.
type ConditionCase struct {
	Variable string `json:"variable"`
	// Operator is one of "==", "!=", ">", "<", ">=", "<=", "contains".
	Operator string `json:"operator"`
	Value    any    `json:"value"`
	Next     string `json:"next"`
}

// ConditionConfig configures a condition node. Cases are evaluated in
// order; the first match wins. Expression, when set, is evaluated by the
// named expression engine instead of the case list.
type ConditionConfig struct {
	Conditions  []ConditionCase `json:"conditions,omitempty"`
	DefaultNext string          `json:"default_next,omitempty"`
	Expression  string          `json:"expression,omitempty"`
	Engine      string          `json:"engine,omitempty"`
	TrueNext    string          `json:"true_next,omitempty"`
	FalseNext   string          `json:"false_next,omitempty"`
}

// TransformConfig configures a transform node. Expressions run in a
// sandboxed evaluator; there is no general-purpose code execution.
type TransformConfig struct {
	// Engine is one of "expr", "cel", "jq". Empty defaults to "expr".
	Engine     string `json:"engine,omitempty"`
	Expression string `json:"expression"`
	// Variable is an extra key the result is stored under, in addition
	// to the node ID namespace.
	Variable string `json:"variable,omitempty"`
}

// AIConfig configures an AI completion node.
type AIConfig struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

// EmailConfig configures an email node.
type EmailConfig struct {
	To      string `json:"to"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body,omitempty"`
}

// SheetsConfig configures a spreadsheet append node.
type SheetsConfig struct {
	SpreadsheetID string   `json:"spreadsheet_id"`
	Range         string   `json:"range,omitempty"`
	Values        []string `json:"values,omitempty"`
}

// DatabaseConfig configures a database query node.
type DatabaseConfig struct {
	Query  string   `json:"query"`
	Params []string `json:"params,omitempty"`
}

// IsTrigger reports whether the node type is a trigger.
func (t NodeType) IsTrigger() bool {
	return t == NodeTypeTrigger || t == NodeTypeWebhookTrigger
}
