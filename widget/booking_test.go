package widget

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"concierge/model"
)

func intPtr(v int) *int { return &v }

func TestBuildBookingURLFromBase(t *testing.T) {
	cfg := BookingURLConfig{
		URL: "https://fallback.example.com",
		Hotel: &model.HotelBookingConfig{
			HotelID: "h1",
			BaseURL: "https://book.example.com/reserve?propertyCode=LIS01&arrive=2020-01-01&adult=1",
		},
		Params: &model.BookingParameters{
			CheckInDate:  "2025-06-01",
			CheckOutDate: "2025-06-04",
			PromoCode:    "SUMMER",
			Adults:       intPtr(2),
			Children:     intPtr(0),
			Currency:     "EUR",
		},
	}

	got, err := BuildBookingURL(cfg)
	require.NoError(t, err)

	u, err := url.Parse(got)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "book.example.com", u.Host)
	assert.Equal(t, "LIS01", q.Get("propertyCode"))
	assert.Equal(t, "2025-06-01", q.Get("arrive"))
	assert.Equal(t, "2025-06-04", q.Get("depart"))
	assert.Equal(t, "SUMMER", q.Get("promo"))
	assert.Equal(t, "2", q.Get("adult"))
	assert.Equal(t, "0", q.Get("child"))
	assert.False(t, q.Has("rooms"))
	assert.Equal(t, "EUR", q.Get("currency"))
}

func TestBuildBookingURLRelativeBaseUnchanged(t *testing.T) {
	cfg := BookingURLConfig{
		Hotel:  &model.HotelBookingConfig{BaseURL: "/reserve?x=1"},
		Params: &model.BookingParameters{CheckInDate: "2025-06-01"},
	}
	got, err := BuildBookingURL(cfg)
	require.NoError(t, err)
	assert.Equal(t, "/reserve?x=1", got)
}

func TestBuildBookingURLFromTemplate(t *testing.T) {
	cfg := BookingURLConfig{
		URLTemplate: "https://t.example.com/{checkInDate}/{checkOutDate}?room={roomType}&promo={promoCode}&ref={affiliate}",
		Params: &model.BookingParameters{
			CheckInDate:  "2025-06-01",
			CheckOutDate: "2025-06-04",
			RoomType:     "Deluxe King & Sofa",
		},
	}
	got, err := BuildBookingURL(cfg)
	require.NoError(t, err)
	assert.Equal(t, "https://t.example.com/2025-06-01/2025-06-04?room=Deluxe%20King%20%26%20Sofa&promo=&ref=", got)
}

func TestBuildBookingURLFallbacks(t *testing.T) {
	got, err := BuildBookingURL(BookingURLConfig{URL: "https://plain.example.com"})
	require.NoError(t, err)
	assert.Equal(t, "https://plain.example.com", got)

	_, err = BuildBookingURL(BookingURLConfig{})
	assert.ErrorIs(t, err, ErrNoBookingURL)
}

func TestValidateBookingURLConfig(t *testing.T) {
	assert.ErrorIs(t, ValidateBookingURLConfig(BookingURLConfig{}), ErrNoBookingURL)
	assert.ErrorIs(t, ValidateBookingURLConfig(BookingURLConfig{URL: "https://x", Hotel: &model.HotelBookingConfig{}}), ErrHotelConfigNoBase)
	assert.NoError(t, ValidateBookingURLConfig(BookingURLConfig{URLTemplate: "https://x/{checkInDate}"}))
}

func TestBookingConfigFor(t *testing.T) {
	opt := model.PriceOption{
		Provider:          "Direct",
		BookingURL:        "https://direct.example.com",
		BookingParameters: &model.BookingParameters{PromoCode: "VIP", CheckInDate: "2000-01-01"},
	}
	cfg := BookingConfigFor(opt, "June 1, 2025", "")

	assert.Equal(t, "https://direct.example.com", cfg.URL)
	require.NotNil(t, cfg.Params)
	assert.Equal(t, "2025-06-01", cfg.Params.CheckInDate)
	assert.Equal(t, "VIP", cfg.Params.PromoCode)
	assert.Equal(t, "2000-01-01", opt.BookingParameters.CheckInDate, "option parameters are not mutated")
}

func TestFormatDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "2025-06-01", want: "2025-06-01", ok: true},
		{in: "2025-06-01T22:30:00Z", want: "2025-06-01", ok: true},
		{in: "06/01/2025", want: "2025-06-01", ok: true},
		{in: "Jun 1, 2025", want: "2025-06-01", ok: true},
		{in: "1 June 2025", want: "2025-06-01", ok: true},
		{in: "", ok: false},
		{in: "next tuesday", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := FormatDate(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNights(t *testing.T) {
	assert.Equal(t, 3, Nights("2025-06-01", "2025-06-04"))
	assert.Equal(t, 1, Nights("2025-06-01", ""))
	assert.Equal(t, 1, Nights("2025-06-04", "2025-06-01"))
}
