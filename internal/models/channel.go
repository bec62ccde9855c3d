package models

// Channel represents a single playable entry from an M3U playlist.
// TvgID is empty when the playlist carries no tvg-id for the entry.
type Channel struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	TvgID    string `json:"tvg_id,omitempty"`
	Category string `json:"category"`
}

// Key returns the favourites identity of the channel.
func (c Channel) Key() FavouriteKey {
	return FavouriteKey{Name: c.Name, Category: c.Category}
}
