package calendar

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/tanpawarit/chative-party-booking/booking"
)

// Tags embedded in event titles and descriptions. Existing calendars already
// carry these exact strings, so they must not change.
const (
	pendingTitlePrefix = "[PENDENTE] "
	pendingStatusTag   = "STATUS_KEY::PENDENTE::END_STATUS"
	confirmedStatusTag = "STATUS_KEY::CONFIRMADO::END_STATUS"
	taxIDTagFormat     = "CPF_KEY::%s::END_CPF"
)

var taxIDTagPattern = regexp.MustCompile(`CPF_KEY::([0-9]+)::END_CPF`)

// Metadata is the structured view of the tags carried by an event.
type Metadata struct {
	Status booking.Status
	TaxID  string
}

// ParseMetadata reads the status and tax ID tags. Events created by hand in
// the calendar carry no tags and come back with an empty status.
func ParseMetadata(title, description string) Metadata {
	var meta Metadata
	switch {
	case strings.Contains(description, confirmedStatusTag):
		meta.Status = booking.StatusConfirmed
	case strings.Contains(description, pendingStatusTag),
		strings.Contains(title, strings.TrimSpace(pendingTitlePrefix)):
		meta.Status = booking.StatusPending
	}
	if m := taxIDTagPattern.FindStringSubmatch(description); len(m) == 2 {
		meta.TaxID = m[1]
	}
	return meta
}

// TaxIDKey is the searchable token stored in the description.
func TaxIDKey(taxID string) string {
	return fmt.Sprintf(taxIDTagFormat, taxID)
}

// Details are the business fields rendered into a new booking event.
type Details struct {
	CustomerName string
	TaxID        string
	Address      string
	Items        string
	Total        float64
	Status       booking.Status
	Start        time.Time
	End          time.Time
}

// NewEvent renders d into an event with the wire tags in place.
func NewEvent(d Details) Event {
	title := fmt.Sprintf("Party rental for %s - R$ %.2f", d.CustomerName, d.Total)
	statusTag := confirmedStatusTag
	if d.Status == booking.StatusPending {
		title = pendingTitlePrefix + title
		statusTag = pendingStatusTag
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Customer: %s\n", d.CustomerName)
	fmt.Fprintf(&b, "Tax ID: %s\n", d.TaxID)
	fmt.Fprintf(&b, "Event address:\n%s\n\n", d.Address)
	fmt.Fprintf(&b, "Items:\n%s\n\n", d.Items)
	fmt.Fprintf(&b, "Order total: R$ %.2f\n\n", d.Total)
	b.WriteString("Booked through the chat assistant.\n\n")
	b.WriteString(TaxIDKey(d.TaxID) + "\n")
	b.WriteString(statusTag)

	desc := b.String()
	return Event{
		Title:       title,
		Description: desc,
		Start:       d.Start,
		End:         d.End,
		Meta:        ParseMetadata(title, desc),
	}
}

// Confirm rewrites a pending event's tags to confirmed.
func Confirm(ev Event) Event {
	ev.Title = strings.Replace(ev.Title, pendingTitlePrefix, "", 1)
	ev.Description = strings.ReplaceAll(ev.Description, pendingStatusTag, confirmedStatusTag)
	if !strings.Contains(ev.Description, confirmedStatusTag) {
		ev.Description = strings.TrimRight(ev.Description, "\n") + "\n" + confirmedStatusTag
	}
	ev.Meta = ParseMetadata(ev.Title, ev.Description)
	return ev
}
