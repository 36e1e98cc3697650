package ui

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"concierge/config"
	"concierge/model"
	"concierge/widget"
)

const maxCardWidth = 72

func cardWidth(width int) int {
	w := width - 4
	if w > maxCardWidth {
		w = maxCardWidth
	}
	if w < 24 {
		w = 24
	}
	return w
}

// truncate shortens s to fit w terminal cells.
func truncate(s string, w int) string {
	s = strings.Join(strings.Fields(s), " ")
	if w <= 0 {
		return ""
	}
	return runewidth.Truncate(s, w, "…")
}

func card(width int, lines ...string) string {
	var kept []string
	for _, l := range lines {
		if l != "" {
			kept = append(kept, l)
		}
	}
	return CardStyle.Width(width).Render(strings.Join(kept, "\n"))
}

func renderWidget(it model.Item, width int) string {
	switch w := it.(type) {
	case *model.HotelList:
		return renderHotels(w, width)
	case *model.PriceComparisonList:
		return renderPriceComparison(w, width)
	case *model.DestinationList:
		return renderDestinations(w, width)
	case *model.SocialMediaFeed:
		return renderFeed(w, width)
	case *model.HotelRooms:
		return renderRooms(w, width)
	}
	return ""
}

func renderHotels(w *model.HotelList, width int) string {
	cw := cardWidth(width)
	inner := cw - 4
	cards := make([]string, 0, len(w.Hotels))
	for _, h := range w.Hotels {
		title := CardTitleStyle.Render(truncate(h.Name, inner))
		if stars := starRating(h.StarRating.RatingValue.String()); stars != "" {
			title += " " + WarningStyle.Render(stars)
		}

		var meta []string
		if loc := h.Address.AddressLocality; loc != "" {
			meta = append(meta, loc)
		}
		if v := h.AggregateRating.RatingValue.String(); v != "" {
			r := "rated " + v
			if n := h.AggregateRating.ReviewCount.String(); n != "" {
				r += fmt.Sprintf(" (%s reviews)", n)
			}
			meta = append(meta, r)
		}
		if p := h.NightlyPrice.String(); p != "" {
			meta = append(meta, p+" / night")
		}
		if h.Availability != nil && !*h.Availability {
			meta = append(meta, "unavailable")
		}

		var amenities []string
		for _, a := range h.AmenityFeature {
			amenities = append(amenities, a.Name)
		}

		var link string
		if h.URL != "" {
			link = LinkStyle.Render(truncate(h.URL, inner))
		}

		cards = append(cards, card(cw,
			title,
			DimStyle.Render(truncate(strings.Join(meta, " · "), inner)),
			truncate(h.Description, inner),
			DimStyle.Render(truncate(strings.Join(amenities, ", "), inner)),
			link,
		))
	}
	return lipgloss.JoinVertical(lipgloss.Left, cards...)
}

// starRating renders "4" or "4.5" as filled and empty stars.
func starRating(v string) string {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f <= 0 {
		return ""
	}
	n := int(math.Round(f))
	if n > 5 {
		n = 5
	}
	return strings.Repeat("★", n) + strings.Repeat("☆", 5-n)
}

func renderPriceComparison(w *model.PriceComparisonList, width int) string {
	cw := cardWidth(width)
	inner := cw - 4
	nights := widget.Nights(w.CheckIn, w.CheckOut)

	header := CardTitleStyle.Render(truncate(w.HotelName, inner))
	var stay []string
	if w.Location != "" {
		stay = append(stay, w.Location)
	}
	if in, ok := widget.FormatDate(w.CheckIn); ok {
		if out, ok := widget.FormatDate(w.CheckOut); ok {
			stay = append(stay, fmt.Sprintf("%s → %s", in, out))
		}
	}
	stay = append(stay, fmt.Sprintf("%d night%s", nights, plural(nights)))

	best := -1
	for i, p := range w.Prices {
		if p.Price > 0 && (best < 0 || p.Price < w.Prices[best].Price) {
			best = i
		}
	}

	lines := []string{header, DimStyle.Render(truncate(strings.Join(stay, " · "), inner))}
	nameWidth := inner / 3
	for i, p := range w.Prices {
		name := runewidth.FillRight(truncate(p.Provider, nameWidth), nameWidth)
		price := fmt.Sprintf("%8.2f", float64(p.Price))
		total := fmt.Sprintf("total %.2f", float64(p.Price)*float64(nights))
		row := fmt.Sprintf("%s %s  %s", name, price, DimStyle.Render(total))
		if i == best {
			row += " " + SuccessStyle.Render("best")
		}
		lines = append(lines, row)

		link, err := widget.BuildBookingURL(widget.BookingConfigFor(p, w.CheckIn, w.CheckOut))
		if err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[UI] No booking link for %s: %v", p.Provider, err)
			}
			continue
		}
		lines = append(lines, "  "+LinkStyle.Render(truncate(link, inner-2)))
	}
	return card(cw, lines...)
}

func renderDestinations(w *model.DestinationList, width int) string {
	cw := cardWidth(width)
	inner := cw - 4
	cards := make([]string, 0, len(w.Destinations))
	for _, d := range w.Destinations {
		cards = append(cards, card(cw,
			CardTitleStyle.Render(truncate(d.Name, inner)),
			truncate(d.Description, inner),
			DimStyle.Render(truncate(strings.Join(d.Activities, " · "), inner)),
		))
	}
	return lipgloss.JoinVertical(lipgloss.Left, cards...)
}

func renderFeed(w *model.SocialMediaFeed, width int) string {
	cw := cardWidth(width)
	inner := cw - 4
	cards := make([]string, 0, len(w.Posts))
	for _, p := range w.Posts {
		e := p.Engagement
		stats := fmt.Sprintf("♥ %s  💬 %s  ↻ %s", compact(float64(e.Likes)), compact(float64(e.Comments)), compact(float64(e.Shares)))
		cards = append(cards, card(cw,
			CardTitleStyle.Render(truncate(p.Platform, inner)),
			wrapLines(p.Content, inner, 3),
			DimStyle.Render(stats),
		))
	}
	return lipgloss.JoinVertical(lipgloss.Left, cards...)
}

func renderRooms(w *model.HotelRooms, width int) string {
	cw := cardWidth(width)
	inner := cw - 4
	cards := make([]string, 0, len(w.Rooms))
	for _, r := range w.Rooms {
		var meta []string
		if n := r.Occupancy.MaxValue; n > 0 {
			meta = append(meta, fmt.Sprintf("sleeps %s", compact(float64(n))))
		}
		if r.Bed.TypeOfBed != "" {
			meta = append(meta, r.Bed.TypeOfBed)
		}
		if v := r.FloorSize.Value; v > 0 {
			unit := r.FloorSize.UnitText
			if unit == "" {
				unit = "m²"
			}
			meta = append(meta, fmt.Sprintf("%s %s", compact(float64(v)), unit))
		}
		price := strings.TrimSpace(r.Price.Price.String() + " " + r.Price.PriceCurrency)

		var amenities []string
		for _, a := range r.AmenityFeature {
			amenities = append(amenities, a.Name)
		}

		cards = append(cards, card(cw,
			CardTitleStyle.Render(truncate(r.Name, inner)),
			DimStyle.Render(truncate(strings.Join(meta, " · "), inner)),
			truncate(r.Description, inner),
			DimStyle.Render(truncate(strings.Join(amenities, ", "), inner)),
			SuccessStyle.Render(price),
		))
	}
	return lipgloss.JoinVertical(lipgloss.Left, cards...)
}

// wrapLines wraps s to w cells and keeps at most n lines.
func wrapLines(s string, w, n int) string {
	lines := strings.Split(strings.TrimRight(wordWrapWithIndent(s, "", w), "\n"), "\n")
	if len(lines) > n {
		lines = lines[:n]
		lines[n-1] = runewidth.Truncate(lines[n-1]+" …", w, "…")
	}
	return strings.Join(lines, "\n")
}

// compact formats 1234 as 1.2k.
func compact(v float64) string {
	switch {
	case v >= 1_000_000:
		return strconv.FormatFloat(v/1_000_000, 'f', 1, 64) + "M"
	case v >= 1000:
		return strconv.FormatFloat(v/1000, 'f', 1, 64) + "k"
	default:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
