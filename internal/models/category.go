package models

// Category is one named bucket of channels as returned to callers
// (search results, favourites view).
type Category struct {
	Name     string    `json:"name"`
	Channels []Channel `json:"channels"`
}
