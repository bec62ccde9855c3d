// Package epg parses XMLTV program guides and resolves what a channel is
// showing now and next.
package epg

// Sentinels stored when a programme has no title or description.
const (
	NoTitle       = "N/A"
	NoDescription = "No description"
)

// Programme is one scheduled broadcast. Start and Stop hold the raw XMLTV
// attribute values; they are resolved with ParseTimestamp when queried.
type Programme struct {
	ChannelID   string `json:"channel_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Start       string `json:"start"`
	Stop        string `json:"stop"`
}

// GuideChannel is a declared guide channel with its programmes in document order.
type GuideChannel struct {
	ID          string
	DisplayName string
	Programmes  []Programme
}

// Guide maps channel ids (tvg-id) to their guide entries.
type Guide struct {
	channels map[string]*GuideChannel
}

// NewGuide returns an empty guide.
func NewGuide() *Guide {
	return &Guide{channels: make(map[string]*GuideChannel)}
}

// Channel returns the entry for id.
func (g *Guide) Channel(id string) (*GuideChannel, bool) {
	if g == nil || id == "" {
		return nil, false
	}
	ch, ok := g.channels[id]
	return ch, ok
}

// Len returns the number of declared channels.
func (g *Guide) Len() int {
	if g == nil {
		return 0
	}
	return len(g.channels)
}

// ProgrammeCount returns the number of programmes across all channels.
func (g *Guide) ProgrammeCount() int {
	if g == nil {
		return 0
	}
	n := 0
	for _, ch := range g.channels {
		n += len(ch.Programmes)
	}
	return n
}
