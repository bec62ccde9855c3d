package fetcher

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"github.com/voyagen/popcornguide/internal/catalog"
	"github.com/voyagen/popcornguide/internal/models"
)

var (
	reTvgID = regexp.MustCompile(`tvg-id="([^"]*)"`)
	reGroup = regexp.MustCompile(`group-title="([^"]*)"`)
)

// extinf is the metadata of one #EXTINF line waiting for its URL line.
type extinf struct {
	name     string
	tvgID    string
	category string
}

// ParseM3U reads an extended M3U playlist from r and groups its channels by
// group-title. Each #EXTINF line binds to the next non-empty, non-comment
// line; metadata with no URL line after it is dropped. ErrEmptyPlaylist is
// returned when non-blank input yields no channel.
func ParseM3U(r io.Reader) (*catalog.Catalog, error) {
	cat := catalog.New()
	scanner := bufio.NewScanner(r)
	// Handle long lines (some M3U have very long EXTINF lines).
	const maxSize = 1024 * 1024
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxSize)

	var pending *extinf
	sawContent := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		sawContent = true

		switch {
		case strings.HasPrefix(strings.ToUpper(line), "#EXTINF"):
			// A previous EXTINF without URL is replaced.
			pending = parseEXTINF(line)
		case strings.HasPrefix(line, "#"):
			// #EXTM3U, #EXTVLCOPT and comments.
		default:
			if pending == nil {
				continue
			}
			cat.Add(models.Channel{
				Name:     pending.name,
				URL:      line,
				TvgID:    pending.tvgID,
				Category: pending.category,
			})
			pending = nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if sawContent && cat.Len() == 0 {
		return nil, ErrEmptyPlaylist
	}
	return cat, nil
}

func parseEXTINF(line string) *extinf {
	info := &extinf{
		name:     models.UnknownChannelName,
		category: models.DefaultCategory,
	}
	if m := reGroup.FindStringSubmatch(line); m != nil {
		info.category = m[1]
	}
	if m := reTvgID.FindStringSubmatch(line); m != nil {
		info.tvgID = m[1]
	}
	if name := channelName(line); name != "" {
		info.name = name
	}
	return info
}

// channelName returns the trimmed text after the last comma that is not
// inside a quoted attribute value.
func channelName(line string) string {
	cut := -1
	quoted := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			quoted = !quoted
		case ',':
			if !quoted {
				cut = i
			}
		}
	}
	if cut < 0 {
		return ""
	}
	return strings.TrimSpace(line[cut+1:])
}
