// Package widget turns completed remote tool calls into rich transcript items.
//
// Tool outputs arrive in several shapes: a JSON-encoded string, an MCP
// content envelope ({"content":[{"type":"text","text":"<json>"}]}), or a plain
// array. Decode resolves all of them to the embedded payload and Normalize
// builds the widget item registered for the tool name.
package widget

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"concierge/config"
	"concierge/model"
)

// Tool names with a widget.
const (
	ToolFindHotels       = "find_hotel_by_query"
	ToolBookHotel        = "book_hotel"
	ToolFindDestinations = "find_destination_by_query"
	ToolSocialMediaFeed  = "get_social_media_feed"
	ToolHotelRooms       = "show_hotel_rooms_at_hotel"
)

const defaultHotelName = "Hotel"

var errNotArray = errors.New("payload is not an array")

type builder func(id string, payload []byte) (model.Item, int, error)

var builders = map[string]builder{
	ToolFindHotels: func(id string, p []byte) (model.Item, int, error) {
		hotels, err := decodeArray[model.Hotel](p)
		return &model.HotelList{ID: id, Hotels: hotels}, len(hotels), err
	},
	ToolBookHotel: buildPriceComparison,
	ToolFindDestinations: func(id string, p []byte) (model.Item, int, error) {
		destinations, err := decodeArray[model.Destination](p)
		return &model.DestinationList{ID: id, Destinations: destinations}, len(destinations), err
	},
	ToolSocialMediaFeed: func(id string, p []byte) (model.Item, int, error) {
		posts, err := decodeArray[model.Post](p)
		return &model.SocialMediaFeed{ID: id, Posts: posts}, len(posts), err
	},
	ToolHotelRooms: func(id string, p []byte) (model.Item, int, error) {
		rooms, err := decodeArray[model.Room](p)
		return &model.HotelRooms{ID: id, Rooms: rooms}, len(rooms), err
	},
}

// Handles reports whether toolName produces a widget.
func Handles(toolName string) bool {
	_, ok := builders[toolName]
	return ok
}

// Decode resolves a raw tool output to the JSON payload it carries. ok is
// false when the output has no usable payload.
func Decode(raw json.RawMessage) (payload []byte, ok bool) {
	r := gjson.ParseBytes(raw)
	if r.Type == gjson.String {
		s := r.String()
		if !gjson.Valid(s) {
			logf("[Widget] Tool output is not JSON: %.80q", s)
			return nil, false
		}
		r = gjson.Parse(s)
		// A string may carry a bare object payload such as a price comparison.
		if r.IsObject() && !r.Get("content").IsArray() {
			return []byte(r.Raw), true
		}
	}

	switch {
	case r.IsObject():
		if !r.Get("content").IsArray() {
			return nil, false
		}
		text := r.Get(`content.#(type=="text").text`)
		if text.Type != gjson.String {
			return nil, false
		}
		payload = []byte(text.String())
	case r.IsArray():
		payload = []byte(r.Raw)
	default:
		return nil, false
	}
	if !gjson.ValidBytes(payload) {
		logf("[Widget] Tool output is not JSON: %.80q", payload)
		return nil, false
	}
	return payload, true
}

// Normalize builds the widget item for a completed call of toolName. It
// returns false for unhandled tools, unparsable output and empty results;
// none of these are errors for the caller.
func Normalize(toolName, itemID string, output json.RawMessage) (model.Item, bool) {
	build, ok := builders[toolName]
	if !ok {
		logf("[Widget] Unhandled MCP tool: %s", toolName)
		return nil, false
	}

	payload, ok := Decode(output)
	if !ok {
		logf("[Widget] No payload in %s output for %s", toolName, itemID)
		return nil, false
	}

	item, n, err := build(itemID, payload)
	if err != nil {
		logf("[Widget] Failed to decode %s output: %v", toolName, err)
		return nil, false
	}
	if n == 0 {
		logf("[Widget] %s returned no records", toolName)
		return nil, false
	}
	return item, true
}

// buildPriceComparison accepts either the structured response with hotel and
// date context or a bare array of prices.
func buildPriceComparison(id string, p []byte) (model.Item, int, error) {
	list := &model.PriceComparisonList{ID: id, HotelName: defaultHotelName}
	prices := p

	r := gjson.ParseBytes(p)
	if pc := r.Get("priceComparisons"); r.IsObject() && pc.IsArray() {
		prices = []byte(pc.Raw)
		if name := r.Get("hotelName").String(); name != "" {
			list.HotelName = name
		}
		list.Location = r.Get("hotelLocation").String()
		list.CheckIn = r.Get("checkInDate").String()
		list.CheckOut = r.Get("checkOutDate").String()
	}

	options, err := decodeArray[model.PriceOption](prices)
	list.Prices = options
	return list, len(options), err
}

// decodeArray decodes each element on its own; records that do not fit T are
// skipped so one bad record does not drop the whole widget.
func decodeArray[T any](payload []byte) ([]T, error) {
	if !gjson.ParseBytes(payload).IsArray() {
		return nil, errNotArray
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(payload, &raws); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	out := make([]T, 0, len(raws))
	for i, raw := range raws {
		var rec T
		if err := json.Unmarshal(raw, &rec); err != nil {
			logf("[Widget] Skipping record %d: %v", i, err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func logf(format string, args ...any) {
	if config.DebugLog != nil {
		config.DebugLog.Printf(format, args...)
	}
}
