package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Domain records carried by widget items. Field names follow the JSON the
// hotel MCP server emits; scalar fields use the Flex types because the server
// is inconsistent about numbers vs strings.

type Hotel struct {
	HotelID              FlexString  `json:"hotel_id"`
	Name                 string      `json:"name"`
	Description          string      `json:"description,omitempty"`
	StarRating           Rating      `json:"starRating"`
	Address              Address     `json:"address"`
	Image                FlexStrings `json:"image,omitempty"`
	AggregateRating      Rating      `json:"aggregateRating"`
	NightlyPrice         FlexString  `json:"nightlyPrice,omitempty"`
	AmenityFeature       []Amenity   `json:"amenityFeature,omitempty"`
	URL                  string      `json:"url,omitempty"`
	Telephone            string      `json:"telephone,omitempty"`
	CheckinTime          string      `json:"checkinTime,omitempty"`
	CheckoutTime         string      `json:"checkoutTime,omitempty"`
	Availability         *FlexBool   `json:"availability,omitempty"`
	LoyaltyAffiliation   FlexStrings `json:"loyaltyAffiliation,omitempty"`
	SuggestedNextActions FlexStrings `json:"suggestedNextActions,omitempty"`
}

type Rating struct {
	RatingValue FlexString `json:"ratingValue"`
	ReviewCount FlexString `json:"reviewCount,omitempty"`
}

// UnmarshalJSON also accepts a bare value: "starRating": 4.
func (r *Rating) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		type plain Rating
		var p plain
		if err := json.Unmarshal(b, &p); err != nil {
			return err
		}
		*r = Rating(p)
		return nil
	}
	*r = Rating{}
	return r.RatingValue.UnmarshalJSON(b)
}

type Address struct {
	AddressLocality string `json:"addressLocality"`
}

// UnmarshalJSON also accepts a plain string: "address": "Boston".
func (a *Address) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		type plain Address
		var p plain
		if err := json.Unmarshal(b, &p); err != nil {
			return err
		}
		*a = Address(p)
		return nil
	}
	var s FlexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	*a = Address{AddressLocality: string(s)}
	return nil
}

// PriceOption is one provider's offer for a stay.
type PriceOption struct {
	Provider          string              `json:"provider"`
	Price             FlexNumber          `json:"price"`
	BookingURL        string              `json:"booking_url"`
	LogoURL           string              `json:"logo_url,omitempty"`
	URL               string              `json:"url,omitempty"`
	URLTemplate       string              `json:"urlTemplate,omitempty"`
	BookingParameters *BookingParameters  `json:"bookingParameters,omitempty"`
	HotelConfig       *HotelBookingConfig `json:"hotelConfig,omitempty"`
}

// BookingParameters are interpolated into a provider's booking URL.
type BookingParameters struct {
	CheckInDate  string `json:"checkInDate,omitempty"`
	CheckOutDate string `json:"checkOutDate,omitempty"`
	RoomType     string `json:"roomType,omitempty"`
	PromoCode    string `json:"promoCode,omitempty"`
	Adults       *int   `json:"adults,omitempty"`
	Children     *int   `json:"children,omitempty"`
	Rooms        *int   `json:"rooms,omitempty"`
	Currency     string `json:"currency,omitempty"`
	Locale       string `json:"locale,omitempty"`
}

type HotelBookingConfig struct {
	HotelID       FlexString            `json:"hotelId"`
	ChainID       string                `json:"chainId,omitempty"`
	BaseURL       string                `json:"baseUrl"`
	URLParameters map[string]FlexString `json:"urlParameters,omitempty"`
}

type Destination struct {
	ID          FlexString  `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	ImageURL    string      `json:"image_url,omitempty"`
	Activities  FlexStrings `json:"activities,omitempty"`
}

type Post struct {
	ID         FlexString `json:"id"`
	Platform   string     `json:"platform"`
	Content    string     `json:"content"`
	ImageURL   string     `json:"image_url,omitempty"`
	Engagement Engagement `json:"engagement"`
}

type Engagement struct {
	Likes    FlexNumber `json:"likes"`
	Comments FlexNumber `json:"comments"`
	Shares   FlexNumber `json:"shares"`
}

type Room struct {
	Name                 string      `json:"name"`
	Description          string      `json:"description,omitempty"`
	Occupancy            Quantity    `json:"occupancy"`
	Bed                  Bed         `json:"bed"`
	FloorSize            Quantity    `json:"floorSize"`
	Price                RoomPrice   `json:"price"`
	AmenityFeature       []Amenity   `json:"amenityFeature,omitempty"`
	Image                FlexStrings `json:"image,omitempty"`
	SuggestedNextActions FlexStrings `json:"suggestedNextActions,omitempty"`
}

type Quantity struct {
	MaxValue FlexNumber `json:"maxValue,omitempty"`
	Value    FlexNumber `json:"value,omitempty"`
	UnitText string     `json:"unitText,omitempty"`
}

type Bed struct {
	TypeOfBed string `json:"typeOfBed"`
}

type RoomPrice struct {
	Price         FlexString `json:"price"`
	PriceCurrency string     `json:"priceCurrency"`
}

// FlexString decodes from a JSON string or number.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*f = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
	case b[0] == 't' || b[0] == 'f':
		*f = FlexString(b)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("expected string or number, got %s", b)
		}
		*f = FlexString(n.String())
	}
	return nil
}

func (f FlexString) String() string { return string(f) }

// FlexStrings decodes from a JSON array of strings or a single string.
type FlexStrings []string

func (f *FlexStrings) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = nil
		return nil
	}
	if b[0] != '[' {
		var s FlexString
		if err := s.UnmarshalJSON(b); err != nil {
			return err
		}
		if s == "" {
			*f = nil
			return nil
		}
		*f = FlexStrings{string(s)}
		return nil
	}
	var items []FlexString
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	if len(items) == 0 {
		*f = nil
		return nil
	}
	out := make(FlexStrings, 0, len(items))
	for _, it := range items {
		out = append(out, string(it))
	}
	*f = out
	return nil
}

// First returns the first element or "".
func (f FlexStrings) First() string {
	if len(f) == 0 {
		return ""
	}
	return f[0]
}

// FlexBool decodes from a JSON boolean or a boolean string.
type FlexBool bool

func (f *FlexBool) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = false
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("expected boolean, got %s", b)
	}
	*f = FlexBool(v)
	return nil
}

// FlexNumber decodes from a JSON number, a numeric string or an object
// carrying the number as "amount" or "value".
type FlexNumber float64

func (f *FlexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if b[0] == '{' {
		var obj struct {
			Amount *FlexNumber `json:"amount"`
			Value  *FlexNumber `json:"value"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		switch {
		case obj.Amount != nil:
			*f = *obj.Amount
		case obj.Value != nil:
			*f = *obj.Value
		default:
			return fmt.Errorf("expected amount or value in %s", b)
		}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("expected numeric string, got %q", s)
		}
		*f = FlexNumber(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = FlexNumber(v)
	return nil
}

// Amenity decodes from either "Pool" or {"name": "Pool"}.
type Amenity struct {
	Name string `json:"name"`
}

func (a *Amenity) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		type plain Amenity
		var p plain
		if err := json.Unmarshal(b, &p); err != nil {
			return err
		}
		*a = Amenity(p)
		return nil
	}
	var s FlexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	a.Name = string(s)
	return nil
}
