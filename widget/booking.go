package widget

import (
	"errors"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"concierge/model"
)

var (
	ErrNoBookingURL      = errors.New("no booking url source configured")
	ErrHotelConfigNoBase = errors.New("hotel booking config has no base url")
)

var placeholderPattern = regexp.MustCompile(`\{[^}]+\}`)

// BookingURLConfig lists the ways a provider can describe its booking link,
// in order of preference: hotel base URL, template, plain URL.
type BookingURLConfig struct {
	URL         string
	URLTemplate string
	Params      *model.BookingParameters
	Hotel       *model.HotelBookingConfig
}

// BookingConfigFor assembles the booking configuration for a price option
// with the stay dates of its comparison list.
func BookingConfigFor(opt model.PriceOption, checkIn, checkOut string) BookingURLConfig {
	params := model.BookingParameters{}
	if opt.BookingParameters != nil {
		params = *opt.BookingParameters
	}
	if d, ok := FormatDate(checkIn); ok {
		params.CheckInDate = d
	}
	if d, ok := FormatDate(checkOut); ok {
		params.CheckOutDate = d
	}
	plain := opt.URL
	if plain == "" {
		plain = opt.BookingURL
	}
	return BookingURLConfig{
		URL:         plain,
		URLTemplate: opt.URLTemplate,
		Params:      &params,
		Hotel:       opt.HotelConfig,
	}
}

func ValidateBookingURLConfig(cfg BookingURLConfig) error {
	if cfg.Hotel != nil && cfg.Hotel.BaseURL == "" {
		return ErrHotelConfigNoBase
	}
	if cfg.URL == "" && cfg.URLTemplate == "" && cfg.Hotel == nil {
		return ErrNoBookingURL
	}
	return nil
}

// BuildBookingURL returns the link to open for a provider.
func BuildBookingURL(cfg BookingURLConfig) (string, error) {
	switch {
	case cfg.Hotel != nil && cfg.Hotel.BaseURL != "":
		return urlFromBase(cfg.Hotel.BaseURL, cfg.Params), nil
	case cfg.URLTemplate != "":
		return urlFromTemplate(cfg.URLTemplate, cfg.Params), nil
	case cfg.URL != "":
		return cfg.URL, nil
	default:
		return "", ErrNoBookingURL
	}
}

// urlFromBase rewrites the booking query parameters of base. An unparsable
// base is returned unchanged.
func urlFromBase(base string, p *model.BookingParameters) string {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		logf("[Widget] Booking base URL %q is not absolute", base)
		return base
	}
	if p == nil {
		return u.String()
	}

	q := u.Query()
	setIf := func(key, value string) {
		if value != "" {
			q.Set(key, value)
		}
	}
	setIf("arrive", p.CheckInDate)
	setIf("depart", p.CheckOutDate)
	setIf("promo", p.PromoCode)
	if p.Adults != nil {
		q.Set("adult", strconv.Itoa(*p.Adults))
	}
	if p.Children != nil {
		q.Set("child", strconv.Itoa(*p.Children))
	}
	if p.Rooms != nil {
		q.Set("rooms", strconv.Itoa(*p.Rooms))
	}
	setIf("currency", p.Currency)
	setIf("locale", p.Locale)

	u.RawQuery = q.Encode()
	return u.String()
}

// urlFromTemplate fills {checkInDate}, {checkOutDate}, {roomType} and
// {promoCode}; other placeholders are removed.
func urlFromTemplate(tmpl string, p *model.BookingParameters) string {
	out := tmpl
	if p != nil {
		replace := func(name, value string) {
			if value != "" {
				out = strings.ReplaceAll(out, "{"+name+"}", value)
			}
		}
		replace("checkInDate", p.CheckInDate)
		replace("checkOutDate", p.CheckOutDate)
		replace("roomType", encodeComponent(p.RoomType))
		replace("promoCode", encodeComponent(p.PromoCode))
	}
	return placeholderPattern.ReplaceAllString(out, "")
}

func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01/02/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
}

// FormatDate normalizes a date string to YYYY-MM-DD.
func FormatDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format("2006-01-02"), true
		}
	}
	return "", false
}

// Nights returns the number of nights between two dates, or 1 when either is
// missing or unparsable.
func Nights(checkIn, checkOut string) int {
	in, ok1 := FormatDate(checkIn)
	out, ok2 := FormatDate(checkOut)
	if !ok1 || !ok2 {
		return 1
	}
	a, _ := time.Parse("2006-01-02", in)
	b, _ := time.Parse("2006-01-02", out)
	n := int(math.Ceil(b.Sub(a).Hours() / 24))
	if n < 1 {
		return 1
	}
	return n
}
