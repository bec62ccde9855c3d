package models

// Settings is the persisted user state: the playlist and guide locations and
// the favourite key set. GuideURL may be empty.
type Settings struct {
	PlaylistURL string         `json:"playlist_url"`
	GuideURL    string         `json:"guide_url"`
	Favourites  []FavouriteKey `json:"favourites"`
}
