package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ItemKind discriminates transcript items.
type ItemKind string

const (
	KindMessage             ItemKind = "message"
	KindToolCall            ItemKind = "tool_call"
	KindMcpListTools        ItemKind = "mcp_list_tools"
	KindMcpApprovalRequest  ItemKind = "mcp_approval_request"
	KindHotelList           ItemKind = "hotel_list"
	KindPriceComparisonList ItemKind = "price_comparison_list"
	KindDestinationList     ItemKind = "destination_list"
	KindSocialMediaFeed     ItemKind = "social_media_feed"
	KindHotelRooms          ItemKind = "hotel_rooms"
)

// Item is one display entry of the transcript. Clone returns a deep copy so
// snapshots handed to the renderer never alias live state.
type Item interface {
	ItemID() string
	Kind() ItemKind
	Clone() Item
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleDeveloper Role = "developer"
)

type ToolType string

const (
	ToolFunctionCall        ToolType = "function_call"
	ToolWebSearchCall       ToolType = "web_search_call"
	ToolFileSearchCall      ToolType = "file_search_call"
	ToolMcpCall             ToolType = "mcp_call"
	ToolCodeInterpreterCall ToolType = "code_interpreter_call"
)

type ToolStatus string

const (
	StatusInProgress ToolStatus = "in_progress"
	StatusCompleted  ToolStatus = "completed"
	StatusFailed     ToolStatus = "failed"
	StatusSearching  ToolStatus = "searching"
)

// Annotation is a citation attached to a text fragment.
type Annotation struct {
	Type        string `json:"type"`
	Title       string `json:"title,omitempty"`
	URL         string `json:"url,omitempty"`
	FileID      string `json:"fileId,omitempty"`
	Filename    string `json:"filename,omitempty"`
	ContainerID string `json:"containerId,omitempty"`
	Index       int    `json:"index,omitempty"`
	StartIndex  int    `json:"start_index,omitempty"`
	EndIndex    int    `json:"end_index,omitempty"`
}

// NormalizeAnnotation reads an annotation in either snake_case or camelCase.
func NormalizeAnnotation(raw json.RawMessage) Annotation {
	r := gjson.ParseBytes(raw)
	first := func(keys ...string) gjson.Result {
		for _, k := range keys {
			if v := r.Get(k); v.Exists() {
				return v
			}
		}
		return gjson.Result{}
	}
	return Annotation{
		Type:        r.Get("type").String(),
		Title:       r.Get("title").String(),
		URL:         r.Get("url").String(),
		FileID:      first("file_id", "fileId").String(),
		Filename:    r.Get("filename").String(),
		ContainerID: first("container_id", "containerId").String(),
		Index:       int(r.Get("index").Int()),
		StartIndex:  int(first("start_index", "startIndex").Int()),
		EndIndex:    int(first("end_index", "endIndex").Int()),
	}
}

// ContentPart is one text fragment of a message.
type ContentPart struct {
	Type        string       `json:"type"`
	Text        string       `json:"text"`
	Annotations []Annotation `json:"annotations,omitempty"`
}

type Message struct {
	ID      string        `json:"id,omitempty"`
	Role    Role          `json:"role"`
	Content []ContentPart `json:"content"`
}

func NewUserMessage(id, text string) *Message {
	return &Message{ID: id, Role: RoleUser, Content: []ContentPart{{Type: "input_text", Text: text}}}
}

func NewAssistantMessage(id, text string) *Message {
	return &Message{ID: id, Role: RoleAssistant, Content: []ContentPart{{Type: "output_text", Text: text}}}
}

// Text joins all fragments.
func (m *Message) Text() string {
	var b strings.Builder
	for _, part := range m.Content {
		b.WriteString(part.Text)
	}
	return b.String()
}

// AppendText concatenates delta onto the first output fragment.
func (m *Message) AppendText(delta string) {
	if len(m.Content) == 0 {
		m.Content = []ContentPart{{Type: "output_text"}}
	}
	m.Content[0].Text += delta
}

func (m *Message) AddAnnotation(a Annotation) {
	if len(m.Content) == 0 {
		m.Content = []ContentPart{{Type: "output_text"}}
	}
	m.Content[0].Annotations = append(m.Content[0].Annotations, a)
}

func (m *Message) ItemID() string { return m.ID }
func (m *Message) Kind() ItemKind { return KindMessage }

func (m *Message) Clone() Item {
	c := *m
	c.Content = make([]ContentPart, len(m.Content))
	for i, part := range m.Content {
		c.Content[i] = part
		c.Content[i].Annotations = append([]Annotation(nil), part.Annotations...)
	}
	return &c
}

// CodeFile is a file produced by the code interpreter.
type CodeFile struct {
	FileID      string `json:"file_id"`
	MimeType    string `json:"mime_type,omitempty"`
	ContainerID string `json:"container_id,omitempty"`
	Filename    string `json:"filename,omitempty"`
}

// ToolCall tracks one tool invocation while it streams and after it settles.
type ToolCall struct {
	ID              string         `json:"id"`
	CallID          string         `json:"call_id,omitempty"`
	ToolType        ToolType       `json:"tool_type"`
	Status          ToolStatus     `json:"status"`
	Name            string         `json:"name,omitempty"`
	ServerLabel     string         `json:"server_label,omitempty"`
	RawArguments    string         `json:"arguments,omitempty"`
	ParsedArguments map[string]any `json:"parsedArguments,omitempty"`
	Output          string         `json:"output,omitempty"`
	Code            string         `json:"code,omitempty"`
	Files           []CodeFile     `json:"files,omitempty"`
}

func (t *ToolCall) ItemID() string { return t.ID }
func (t *ToolCall) Kind() ItemKind { return KindToolCall }

func (t *ToolCall) Clone() Item {
	c := *t
	if t.ParsedArguments != nil {
		c.ParsedArguments = cloneValue(t.ParsedArguments).(map[string]any)
	}
	c.Files = append([]CodeFile(nil), t.Files...)
	return &c
}

// Settled reports whether the call will receive no further updates.
func (t *ToolCall) Settled() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

type McpTool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// McpListTools records a tool discovery against a remote MCP server.
type McpListTools struct {
	ID          string    `json:"id"`
	ServerLabel string    `json:"server_label"`
	Tools       []McpTool `json:"tools"`
}

func (l *McpListTools) ItemID() string { return l.ID }
func (l *McpListTools) Kind() ItemKind { return KindMcpListTools }

func (l *McpListTools) Clone() Item {
	c := *l
	c.Tools = append([]McpTool(nil), l.Tools...)
	return &c
}

type ApprovalDecision string

const (
	DecisionPending  ApprovalDecision = ""
	DecisionApproved ApprovalDecision = "approved"
	DecisionDenied   ApprovalDecision = "denied"
)

// McpApprovalRequest is a remote tool call waiting on the user.
type McpApprovalRequest struct {
	ID          string           `json:"id"`
	ServerLabel string           `json:"server_label"`
	Name        string           `json:"name"`
	Arguments   string           `json:"arguments,omitempty"`
	Decision    ApprovalDecision `json:"decision,omitempty"`
}

func (a *McpApprovalRequest) ItemID() string { return a.ID }
func (a *McpApprovalRequest) Kind() ItemKind { return KindMcpApprovalRequest }

func (a *McpApprovalRequest) Clone() Item {
	c := *a
	return &c
}

// Widget items. Each carries the id of the tool call it was built from.

type HotelList struct {
	ID     string  `json:"id"`
	Hotels []Hotel `json:"hotels"`
}

func (w *HotelList) ItemID() string { return w.ID }
func (w *HotelList) Kind() ItemKind { return KindHotelList }

func (w *HotelList) Clone() Item {
	c := *w
	c.Hotels = make([]Hotel, len(w.Hotels))
	for i, h := range w.Hotels {
		h.Image = append(FlexStrings(nil), h.Image...)
		h.AmenityFeature = append([]Amenity(nil), h.AmenityFeature...)
		h.LoyaltyAffiliation = append(FlexStrings(nil), h.LoyaltyAffiliation...)
		h.SuggestedNextActions = append(FlexStrings(nil), h.SuggestedNextActions...)
		if h.Availability != nil {
			v := *h.Availability
			h.Availability = &v
		}
		c.Hotels[i] = h
	}
	return &c
}

type PriceComparisonList struct {
	ID        string        `json:"id"`
	HotelName string        `json:"hotel_name"`
	Location  string        `json:"location"`
	CheckIn   string        `json:"check_in"`
	CheckOut  string        `json:"check_out"`
	Prices    []PriceOption `json:"prices"`
}

func (w *PriceComparisonList) ItemID() string { return w.ID }
func (w *PriceComparisonList) Kind() ItemKind { return KindPriceComparisonList }

func (w *PriceComparisonList) Clone() Item {
	c := *w
	c.Prices = append([]PriceOption(nil), w.Prices...)
	return &c
}

type DestinationList struct {
	ID           string        `json:"id"`
	Destinations []Destination `json:"destinations"`
}

func (w *DestinationList) ItemID() string { return w.ID }
func (w *DestinationList) Kind() ItemKind { return KindDestinationList }

func (w *DestinationList) Clone() Item {
	c := *w
	c.Destinations = make([]Destination, len(w.Destinations))
	for i, d := range w.Destinations {
		d.Activities = append(FlexStrings(nil), d.Activities...)
		c.Destinations[i] = d
	}
	return &c
}

type SocialMediaFeed struct {
	ID    string `json:"id"`
	Posts []Post `json:"posts"`
}

func (w *SocialMediaFeed) ItemID() string { return w.ID }
func (w *SocialMediaFeed) Kind() ItemKind { return KindSocialMediaFeed }

func (w *SocialMediaFeed) Clone() Item {
	c := *w
	c.Posts = append([]Post(nil), w.Posts...)
	return &c
}

type HotelRooms struct {
	ID    string `json:"id"`
	Rooms []Room `json:"rooms"`
}

func (w *HotelRooms) ItemID() string { return w.ID }
func (w *HotelRooms) Kind() ItemKind { return KindHotelRooms }

func (w *HotelRooms) Clone() Item {
	c := *w
	c.Rooms = make([]Room, len(w.Rooms))
	for i, r := range w.Rooms {
		r.AmenityFeature = append([]Amenity(nil), r.AmenityFeature...)
		r.Image = append(FlexStrings(nil), r.Image...)
		r.SuggestedNextActions = append(FlexStrings(nil), r.SuggestedNextActions...)
		c.Rooms[i] = r
	}
	return &c
}

// IsWidget reports whether k is one of the rich-content kinds.
func IsWidget(k ItemKind) bool {
	switch k {
	case KindHotelList, KindPriceComparisonList, KindDestinationList, KindSocialMediaFeed, KindHotelRooms:
		return true
	}
	return false
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = cloneValue(val)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = cloneValue(val)
		}
		return s
	default:
		return v
	}
}

type itemEnvelope struct {
	Kind ItemKind        `json:"kind"`
	Item json.RawMessage `json:"item"`
}

// MarshalItems encodes a transcript with kind tags so it can be restored.
func MarshalItems(items []Item) ([]byte, error) {
	envs := make([]itemEnvelope, 0, len(items))
	for _, it := range items {
		raw, err := json.Marshal(it)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s item %q: %w", it.Kind(), it.ItemID(), err)
		}
		envs = append(envs, itemEnvelope{Kind: it.Kind(), Item: raw})
	}
	return json.Marshal(envs)
}

// UnmarshalItems decodes the output of MarshalItems.
func UnmarshalItems(data []byte) ([]Item, error) {
	var envs []itemEnvelope
	if err := json.Unmarshal(data, &envs); err != nil {
		return nil, fmt.Errorf("failed to decode transcript: %w", err)
	}
	items := make([]Item, 0, len(envs))
	for i, env := range envs {
		it, err := newItem(env.Kind)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if err := json.Unmarshal(env.Item, it); err != nil {
			return nil, fmt.Errorf("item %d (%s): %w", i, env.Kind, err)
		}
		items = append(items, it)
	}
	return items, nil
}

func newItem(k ItemKind) (Item, error) {
	switch k {
	case KindMessage:
		return &Message{}, nil
	case KindToolCall:
		return &ToolCall{}, nil
	case KindMcpListTools:
		return &McpListTools{}, nil
	case KindMcpApprovalRequest:
		return &McpApprovalRequest{}, nil
	case KindHotelList:
		return &HotelList{}, nil
	case KindPriceComparisonList:
		return &PriceComparisonList{}, nil
	case KindDestinationList:
		return &DestinationList{}, nil
	case KindSocialMediaFeed:
		return &SocialMediaFeed{}, nil
	case KindHotelRooms:
		return &HotelRooms{}, nil
	default:
		return nil, fmt.Errorf("unknown item kind %q", k)
	}
}
