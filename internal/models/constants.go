package models

// Defaults applied by the playlist parser when an #EXTINF line omits a field.
const (
	DefaultCategory    = "Uncategorized"
	UnknownChannelName = "Unknown Channel"
)
