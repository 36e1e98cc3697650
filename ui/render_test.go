package ui

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"

	"concierge/assistant"
	"concierge/model"
	"concierge/provider"
)

func plain(s string) string { return stripANSI(s) }

func TestRenderTranscriptEmpty(t *testing.T) {
	out := renderTranscript(nil, 80, newMarkdownCache(), false, "*")
	assert.Contains(t, plain(out), "Ask about hotels")
}

func TestRenderMessages(t *testing.T) {
	reply := model.NewAssistantMessage("msg_1", "Try the **Grand Hotel**.")
	reply.AddAnnotation(model.Annotation{Type: "url_citation", URL: "https://example.com/grand"})
	items := []model.Item{
		model.NewUserMessage("user_1", "Where should I stay?"),
		reply,
	}

	out := plain(renderTranscript(items, 80, newMarkdownCache(), false, "*"))
	assert.Contains(t, out, "┃ Where should I stay?")
	assert.Contains(t, out, "Grand Hotel")
	assert.NotContains(t, out, "**")
	assert.Contains(t, out, "Sources: https://example.com/grand")
}

func TestRenderStreamingMessageSkipsMarkdown(t *testing.T) {
	items := []model.Item{model.NewAssistantMessage("msg_1", "Looking for **hot")}
	out := plain(renderTranscript(items, 80, newMarkdownCache(), true, "*"))
	assert.Contains(t, out, "Looking for **hot▋")
}

func TestRenderToolCalls(t *testing.T) {
	items := []model.Item{
		&model.ToolCall{
			ID: "fc_1", ToolType: model.ToolFunctionCall, Name: "get_weather",
			Status: model.StatusCompleted, ParsedArguments: map[string]any{"location": "Boston", "unit": "celsius"},
			Output: `{"temperature":21}`,
		},
		&model.ToolCall{ID: "ws_1", ToolType: model.ToolWebSearchCall, Status: model.StatusSearching},
		&model.ToolCall{ID: "mcp_1", ToolType: model.ToolMcpCall, ServerLabel: "hotels", Name: "find_hotel_by_query", Status: model.StatusFailed, Output: "timeout"},
		&model.ToolCall{
			ID: "ci_1", ToolType: model.ToolCodeInterpreterCall, Status: model.StatusCompleted,
			Code: "print(1)", Files: []model.CodeFile{{FileID: "cfile_1", Filename: "plot.png"}},
		},
	}

	out := plain(renderTranscript(items, 100, newMarkdownCache(), true, "*"))
	assert.Contains(t, out, "✓ get_weather(location=Boston, unit=celsius)")
	assert.Contains(t, out, `→ {"temperature":21}`)
	assert.Contains(t, out, "* Web search")
	assert.Contains(t, out, "✗ hotels › find_hotel_by_query")
	assert.Contains(t, out, "timeout")
	assert.Contains(t, out, "print(1)")
	assert.Contains(t, out, "plot.png")
	assert.Contains(t, out, "Thinking...")
}

func TestRenderApproval(t *testing.T) {
	req := &model.McpApprovalRequest{ID: "apr_1", ServerLabel: "hotels", Name: "book_hotel", Arguments: `{"hotel":"h1"}`}

	out := plain(renderApproval(req, 80))
	assert.Contains(t, out, "Approval required")
	assert.Contains(t, out, "Tool: book_hotel")
	assert.Contains(t, out, `Arguments: {"hotel":"h1"}`)
	assert.Contains(t, out, "[y] Yes")
	assert.Contains(t, out, "[a] Always")

	req.Decision = model.DecisionDenied
	out = plain(renderApproval(req, 80))
	assert.Contains(t, out, "Denied")
	assert.NotContains(t, out, "[y]")
}

func TestRenderHotelCard(t *testing.T) {
	avail := model.FlexBool(false)
	list := &model.HotelList{ID: "mcp_1", Hotels: []model.Hotel{{
		Name:            "Grand Hotel",
		Description:     strings.Repeat("A very long description of a lovely riverside hotel. ", 10),
		StarRating:      model.Rating{RatingValue: "4"},
		Address:         model.Address{AddressLocality: "Lisbon"},
		AggregateRating: model.Rating{RatingValue: "4.6", ReviewCount: "1200"},
		NightlyPrice:    "€180",
		AmenityFeature:  []model.Amenity{{Name: "Pool"}, {Name: "Spa"}},
		Availability:    &avail,
	}}}

	out := plain(renderWidget(list, 100))
	assert.Contains(t, out, "Grand Hotel ★★★★☆")
	assert.Contains(t, out, "Lisbon · rated 4.6 (1200 reviews) · €180 / night · unavailable")
	assert.Contains(t, out, "Pool, Spa")
	assert.Contains(t, out, "…")
	for _, line := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, lipgloss.Width(line), cardWidth(100)+2, line)
	}
}

func TestRenderPriceComparison(t *testing.T) {
	list := &model.PriceComparisonList{
		ID: "mcp_2", HotelName: "Grand Hotel", Location: "Lisbon",
		CheckIn: "2025-06-01", CheckOut: "2025-06-04",
		Prices: []model.PriceOption{
			{Provider: "Direct", Price: 150, URLTemplate: "https://b.io/{checkInDate}/{checkOutDate}"},
			{Provider: "Agency", Price: 170},
		},
	}

	out := plain(renderWidget(list, 100))
	assert.Contains(t, out, "2025-06-01 → 2025-06-04 · 3 nights")
	assert.Contains(t, out, "total 450.00")
	assert.Contains(t, out, "best")
	assert.Contains(t, out, "https://b.io/2025-06-01/2025-06-04")
	assert.Equal(t, 1, strings.Count(out, "best"))
}

func TestRenderOtherWidgets(t *testing.T) {
	dest := &model.DestinationList{ID: "d", Destinations: []model.Destination{{Name: "Porto", Activities: model.FlexStrings{"Wine", "Bridges"}}}}
	assert.Contains(t, plain(renderWidget(dest, 80)), "Wine · Bridges")

	feed := &model.SocialMediaFeed{ID: "f", Posts: []model.Post{{Platform: "Instagram", Content: "Sunset", Engagement: model.Engagement{Likes: 1500, Comments: 3}}}}
	assert.Contains(t, plain(renderWidget(feed, 80)), "♥ 1.5k  💬 3  ↻ 0")

	rooms := &model.HotelRooms{ID: "r", Rooms: []model.Room{{
		Name:      "Deluxe King",
		Occupancy: model.Quantity{MaxValue: 2},
		Bed:       model.Bed{TypeOfBed: "King"},
		FloorSize: model.Quantity{Value: 32},
		Price:     model.RoomPrice{Price: "210", PriceCurrency: "EUR"},
	}}}
	out := plain(renderWidget(rooms, 80))
	assert.Contains(t, out, "sleeps 2 · King · 32 m²")
	assert.Contains(t, out, "210 EUR")
}

func TestTruncateWideRunes(t *testing.T) {
	got := truncate("ホテル・グランド・リスボン", 10)
	assert.LessOrEqual(t, runewidth.StringWidth(got), 10)
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.Equal(t, "short", truncate("  short  ", 10))
}

func TestStarRating(t *testing.T) {
	tests := map[string]string{
		"4":   "★★★★☆",
		"4.5": "★★★★★",
		"9":   "★★★★★",
		"":    "",
		"n/a": "",
	}
	for in, want := range tests {
		assert.Equal(t, want, starRating(in), in)
	}
}

func TestCompact(t *testing.T) {
	assert.Equal(t, "12", compact(12))
	assert.Equal(t, "1.5k", compact(1500))
	assert.Equal(t, "2.0M", compact(2_000_000))
}

func TestDescribeError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("turn: %w", errors.New("x")), "Error: turn: x"},
		{&assistant.TransportError{Turn: 1, Err: &provider.StatusError{StatusCode: 500, Message: "boom"}}, "Server error 500: boom"},
		{fmt.Errorf("%w: 10", assistant.ErrTurnLimit), "Stopped: too many tool round trips"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, describeError(tt.err))
	}
}
