package epg

import (
	"sort"
	"time"
)

// Status tells callers which kind of schedule payload they received.
type Status string

const (
	// StatusNoData means the channel has no tvg-id or the guide does not know it.
	StatusNoData Status = "no_data"
	// StatusNoUpcoming means the channel is in the guide but nothing is left to air.
	StatusNoUpcoming Status = "no_upcoming"
	// StatusOK means Entries holds at least one current or upcoming programme.
	StatusOK Status = "ok"
)

// Entry is a programme with resolved times. Span is the airing window as
// "15:04 - 16:00" in the location of the resolve instant.
type Entry struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	Stop        time.Time `json:"stop"`
	Span        string    `json:"span"`
	Current     bool      `json:"current"`
}

func formatSpan(start, stop time.Time, loc *time.Location) string {
	return start.In(loc).Format("15:04") + " - " + stop.In(loc).Format("15:04")
}

// Schedule is the now-and-upcoming view of one channel.
type Schedule struct {
	Status      Status  `json:"status"`
	ChannelID   string  `json:"channel_id,omitempty"`
	DisplayName string  `json:"display_name,omitempty"`
	Entries     []Entry `json:"entries"`
}

// Now returns the entry airing at the resolve instant, if any.
func (s Schedule) Now() (Entry, bool) {
	for _, e := range s.Entries {
		if e.Current {
			return e, true
		}
	}
	return Entry{}, false
}

// Resolve builds the schedule of tvgID as seen at now: programmes that have
// not finished (stop >= now), ordered by start. Programmes whose start or
// stop cannot be parsed are left out.
func Resolve(g *Guide, tvgID string, now time.Time) Schedule {
	ch, ok := g.Channel(tvgID)
	if !ok {
		return Schedule{Status: StatusNoData, ChannelID: tvgID, Entries: []Entry{}}
	}

	entries := make([]Entry, 0, len(ch.Programmes))
	for _, p := range ch.Programmes {
		start, err := ParseTimestamp(p.Start)
		if err != nil {
			continue
		}
		stop, err := ParseTimestamp(p.Stop)
		if err != nil {
			continue
		}
		if stop.Before(now) {
			continue
		}
		entries = append(entries, Entry{
			Title:       p.Title,
			Description: p.Description,
			Start:       start,
			Stop:        stop,
			Span:        formatSpan(start, stop, now.Location()),
			Current:     !start.After(now) && now.Before(stop),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Start.Before(entries[j].Start)
	})

	s := Schedule{
		Status:      StatusOK,
		ChannelID:   ch.ID,
		DisplayName: ch.DisplayName,
		Entries:     entries,
	}
	if len(entries) == 0 {
		s.Status = StatusNoUpcoming
	}
	return s
}
