package wizkids

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Record is one store event as returned by the endpoint. Field presence is
// not validated; absent fields are empty.
type Record struct {
	EventName   Text `json:"EVENT_NAME"`
	StoreName   Text `json:"STORE_NAME"`
	Address     Text `json:"ADDRESS1"`
	EventFormat Text `json:"EVENT_FORMAT"`
	Email       Text `json:"EMAIL_ADDRESS"`
	Phone       Text `json:"PHONE_NUMBER"`
	URL         Text `json:"URL"`
	// EventDate is formatted as YYYY-MM-DD^HH:MM AM|PM.
	EventDate Text `json:"EVENT_DATE"`
	MapURL    Text `json:"googleMapUrl"`
}

// Text is a string field that also accepts JSON numbers and null, which the
// endpoint emits for phone numbers and blank fields.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("expected string or number, got %s", data)
		}
		*t = Text(n.String())
		return nil
	}
}

// Summary is the calendar title for the event, and therefore its dedup key.
func (r Record) Summary() string {
	return fmt.Sprintf("%s - %s (%s)", r.EventName, r.EventFormat, r.StoreName)
}

// Description is the calendar event body: venue, contact details and map link.
func (r Record) Description() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Venue: %s\n", r.StoreName)
	fmt.Fprintf(&b, "Format: %s\n", r.EventFormat)
	b.WriteString("\n")
	fmt.Fprintf(&b, "ADD: %s\n", r.Address)
	b.WriteString("\n")
	fmt.Fprintf(&b, "P: %s\n", r.Phone)
	fmt.Fprintf(&b, "E: %s\n", r.Email)
	fmt.Fprintf(&b, "W: %s\n", r.URL)
	b.WriteString("\n")
	fmt.Fprintf(&b, "gMap: %s", r.MapURL)
	return b.String()
}
