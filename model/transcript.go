package model

// Transcript is the ordered list of display items. Items are only appended;
// updates address an item through the id index, never by position.
//
// Transcript is not safe for concurrent use; the turn processor guards it.
type Transcript struct {
	items   []Item
	index   map[string]int
	widgets map[string]ItemKind
}

func NewTranscript() *Transcript {
	return &Transcript{
		index:   make(map[string]int),
		widgets: make(map[string]ItemKind),
	}
}

func indexKey(k ItemKind, id string) string { return string(k) + ":" + id }

// Append adds an item. When several items share a kind and id the most
// recent one receives subsequent updates.
func (t *Transcript) Append(it Item) {
	t.items = append(t.items, it)
	id := it.ItemID()
	if id == "" {
		return
	}
	if IsWidget(it.Kind()) {
		t.widgets[id] = it.Kind()
		return
	}
	t.index[indexKey(it.Kind(), id)] = len(t.items) - 1
}

func (t *Transcript) Len() int { return len(t.items) }

// Last returns the most recently appended item, or nil.
func (t *Transcript) Last() Item {
	if len(t.items) == 0 {
		return nil
	}
	return t.items[len(t.items)-1]
}

func (t *Transcript) lookup(k ItemKind, id string) (Item, bool) {
	if id == "" {
		return nil, false
	}
	i, ok := t.index[indexKey(k, id)]
	if !ok {
		return nil, false
	}
	return t.items[i], true
}

func (t *Transcript) Message(id string) (*Message, bool) {
	it, ok := t.lookup(KindMessage, id)
	if !ok {
		return nil, false
	}
	return it.(*Message), true
}

func (t *Transcript) ToolCall(id string) (*ToolCall, bool) {
	it, ok := t.lookup(KindToolCall, id)
	if !ok {
		return nil, false
	}
	return it.(*ToolCall), true
}

func (t *Transcript) ApprovalRequest(id string) (*McpApprovalRequest, bool) {
	it, ok := t.lookup(KindMcpApprovalRequest, id)
	if !ok {
		return nil, false
	}
	return it.(*McpApprovalRequest), true
}

// Has reports whether a non-widget item of kind k with id exists.
func (t *Transcript) Has(k ItemKind, id string) bool {
	_, ok := t.lookup(k, id)
	return ok
}

// HasWidget reports whether a widget was already built from the tool call id.
func (t *Transcript) HasWidget(id string) bool {
	_, ok := t.widgets[id]
	return ok
}

// Items returns deep copies of all items in order.
func (t *Transcript) Items() []Item {
	out := make([]Item, len(t.items))
	for i, it := range t.items {
		out[i] = it.Clone()
	}
	return out
}

// Load replaces the contents with items, rebuilding the index.
func (t *Transcript) Load(items []Item) {
	t.Reset()
	for _, it := range items {
		t.Append(it)
	}
}

func (t *Transcript) Reset() {
	t.items = nil
	t.index = make(map[string]int)
	t.widgets = make(map[string]ItemKind)
}
