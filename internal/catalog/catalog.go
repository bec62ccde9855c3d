// Package catalog holds the channel set of one playlist load, grouped by
// category, and answers name searches against it.
package catalog

import (
	"sort"
	"strings"

	"github.com/voyagen/popcornguide/internal/models"
)

// Catalog maps category names to channels in playlist order.
// A Catalog is built by Add and must not be modified once it is shared.
type Catalog struct {
	groups map[string][]models.Channel
	count  int
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{groups: make(map[string][]models.Channel)}
}

// Add appends ch to the bucket named by ch.Category.
func (c *Catalog) Add(ch models.Channel) {
	c.groups[ch.Category] = append(c.groups[ch.Category], ch)
	c.count++
}

// Len returns the number of channels across all categories.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return c.count
}

// Categories returns the category names in sorted order.
func (c *Catalog) Categories() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.groups))
	for name := range c.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Channels returns the channels of one category in playlist order.
func (c *Catalog) Channels(category string) []models.Channel {
	if c == nil {
		return nil
	}
	return c.groups[category]
}

// Each calls fn for every channel, category by category in sorted order.
func (c *Catalog) Each(fn func(models.Channel)) {
	for _, name := range c.Categories() {
		for _, ch := range c.groups[name] {
			fn(ch)
		}
	}
}

// Lookup returns every channel with the given favourites key, in playlist order.
func (c *Catalog) Lookup(key models.FavouriteKey) []models.Channel {
	if c == nil {
		return nil
	}
	var out []models.Channel
	for _, ch := range c.groups[key.Category] {
		if ch.Name == key.Name {
			out = append(out, ch)
		}
	}
	return out
}

// Search returns a catalog holding only channels whose name contains text,
// case-insensitively. Blank text returns c itself.
func (c *Catalog) Search(text string) *Catalog {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" || c == nil {
		return c
	}
	out := New()
	for _, name := range c.Categories() {
		for _, ch := range c.groups[name] {
			if strings.Contains(strings.ToLower(ch.Name), needle) {
				out.Add(ch)
			}
		}
	}
	return out
}

// View flattens the catalog into sorted categories for presentation.
func (c *Catalog) View() []models.Category {
	names := c.Categories()
	view := make([]models.Category, 0, len(names))
	for _, name := range names {
		chans := make([]models.Channel, len(c.groups[name]))
		copy(chans, c.groups[name])
		view = append(view, models.Category{Name: name, Channels: chans})
	}
	return view
}
