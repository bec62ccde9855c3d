package epg

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// ErrGuideSyntax is returned when the guide is not well-formed XML.
var ErrGuideSyntax = errors.New("guide syntax error")

// xmlChannel is the raw XML structure for <channel>.
type xmlChannel struct {
	ID           string   `xml:"id,attr"`
	DisplayNames []string `xml:"display-name"`
}

// xmlProgramme is the raw XML structure for <programme>.
type xmlProgramme struct {
	Start   string   `xml:"start,attr"`
	Stop    string   `xml:"stop,attr"`
	Channel string   `xml:"channel,attr"`
	Titles  []string `xml:"title"`
	Descs   []string `xml:"desc"`
}

// Parse reads an XMLTV document. Channels are registered from every
// <channel id> child of the root; programmes are kept only when their channel
// was registered anywhere in the document. Programmes with neither title nor
// description are dropped. Start/stop values are stored unparsed.
func Parse(r io.Reader) (*Guide, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charsetReader
	guide := NewGuide()
	var programmes []xmlProgramme

	depth := 0
	sawRoot := false
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGuideSyntax, err)
		}

		switch el := token.(type) {
		case xml.StartElement:
			if depth == 0 {
				if sawRoot {
					return nil, fmt.Errorf("%w: content after document element <%s>", ErrGuideSyntax, el.Name.Local)
				}
				sawRoot = true
				depth++
				continue
			}
			if depth == 1 {
				switch el.Name.Local {
				case "channel":
					var raw xmlChannel
					if err := decoder.DecodeElement(&raw, &el); err != nil {
						return nil, fmt.Errorf("%w: %v", ErrGuideSyntax, err)
					}
					guide.register(raw)
					continue
				case "programme":
					var raw xmlProgramme
					if err := decoder.DecodeElement(&raw, &el); err != nil {
						return nil, fmt.Errorf("%w: %v", ErrGuideSyntax, err)
					}
					programmes = append(programmes, raw)
					continue
				}
			}
			depth++
		case xml.EndElement:
			depth--
		}
	}
	if !sawRoot {
		return nil, fmt.Errorf("%w: no document element", ErrGuideSyntax)
	}

	for _, raw := range programmes {
		ch, ok := guide.channels[raw.Channel]
		if !ok {
			continue
		}
		p := Programme{
			ChannelID:   raw.Channel,
			Title:       firstText(raw.Titles, NoTitle),
			Description: firstText(raw.Descs, NoDescription),
			Start:       raw.Start,
			Stop:        raw.Stop,
		}
		if p.Title == NoTitle && p.Description == NoDescription {
			continue
		}
		ch.Programmes = append(ch.Programmes, p)
	}
	return guide, nil
}

func (g *Guide) register(raw xmlChannel) {
	if raw.ID == "" {
		return
	}
	ch, ok := g.channels[raw.ID]
	if !ok {
		ch = &GuideChannel{ID: raw.ID}
		g.channels[raw.ID] = ch
	}
	if ch.DisplayName != "" {
		return
	}
	for _, name := range raw.DisplayNames {
		if name = strings.TrimSpace(name); name != "" {
			ch.DisplayName = name
			return
		}
	}
}

// firstText returns the first element's trimmed text, or def when absent or blank.
func firstText(values []string, def string) string {
	if len(values) == 0 {
		return def
	}
	if v := strings.TrimSpace(values[0]); v != "" {
		return v
	}
	return def
}

// charsetReader lets guides declared as ISO-8859-1, windows-1252 and the like
// be decoded; encoding/xml only understands UTF-8 on its own.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	return enc.NewDecoder().Reader(input), nil
}
