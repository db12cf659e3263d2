package cue

import (
	"fmt"
	"strconv"
	"strings"

	"splice/internal/services"
)

// Parse reads cue sheet text. Failures wrap services.ErrMalformedCue.
func Parse(text string) (*Document, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	p := &parser{doc: &Document{}, file: -1, pregapFile: map[int]int{}}
	for i, line := range strings.Split(text, "\n") {
		if err := p.line(strings.TrimSpace(line)); err != nil {
			return nil, malformed(fmt.Sprintf("line %d", i+1), err)
		}
	}
	if err := p.finish(); err != nil {
		return nil, malformed("", err)
	}
	return p.doc, nil
}

func malformed(where string, err error) error {
	return services.Wrap(services.ErrMalformedCue, "cue", "parse", where, err)
}

type parser struct {
	doc        *Document
	file       int
	current    *Track
	pregapFile map[int]int
}

func (p *parser) line(line string) error {
	if line == "" {
		return nil
	}
	keyword, rest := splitDirective(line)
	switch keyword {
	case "FILE":
		name, kind := parseFileArgs(rest)
		if name == "" {
			return nil
		}
		p.doc.Files = append(p.doc.Files, FileRef{Name: name, Type: kind})
		p.file = len(p.doc.Files) - 1
	case "TRACK":
		return p.track(rest)
	case "TITLE":
		if p.current != nil {
			p.current.Title = unquote(rest)
		} else {
			p.doc.Title = unquote(rest)
		}
	case "PERFORMER":
		if p.current != nil {
			p.current.Performer = unquote(rest)
		} else {
			p.doc.Performer = unquote(rest)
		}
	case "INDEX":
		return p.index(rest)
	case "REM":
		key, value := splitDirective(rest)
		if key == "" {
			return nil
		}
		remark := Remark{Key: key, Value: unquote(value)}
		if p.current != nil {
			p.current.Remarks = append(p.current.Remarks, remark)
		} else {
			p.doc.Remarks = append(p.doc.Remarks, remark)
		}
	}
	// CATALOG, FLAGS, ISRC, SONGWRITER, PREGAP, POSTGAP, CDTEXTFILE and
	// anything else are accepted and ignored.
	return nil
}

func (p *parser) track(rest string) error {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return fmt.Errorf("TRACK without a number")
	}
	number, err := strconv.Atoi(fields[0])
	if err != nil {
		return fmt.Errorf("TRACK number %q is not an integer", fields[0])
	}
	if err := p.closeTrack(); err != nil {
		return err
	}
	prev := 0
	if n := len(p.doc.Tracks); n > 0 {
		prev = p.doc.Tracks[n-1].Number
	}
	switch {
	case prev == 0 && number != 1:
		return fmt.Errorf("first track is numbered %d, expected 1", number)
	case prev != 0 && number <= prev:
		return fmt.Errorf("track %d does not follow track %d", number, prev)
	}
	p.doc.Tracks = append(p.doc.Tracks, Track{Number: number, Indexes: map[int]Timestamp{}, File: -1})
	p.current = &p.doc.Tracks[len(p.doc.Tracks)-1]
	return nil
}

// index records an INDEX line. Only INDEX 01 is load-bearing: a stray,
// unreadable or repeated index is dropped, except an unreadable INDEX 01.
func (p *parser) index(rest string) error {
	if p.current == nil {
		return nil
	}
	fields := strings.Fields(rest)
	if len(fields) < 2 {
		return nil
	}
	number, err := strconv.Atoi(fields[0])
	if err != nil || number < 0 || number > 99 {
		return nil
	}
	ts, err := ParseTimestamp(fields[1])
	if err != nil {
		if number == 1 {
			return err
		}
		return nil
	}
	if _, dup := p.current.Indexes[number]; dup {
		return nil
	}
	p.current.Indexes[number] = ts
	switch number {
	case 0:
		p.pregapFile[p.current.Number] = p.file
	case 1:
		p.current.File = p.file
	}
	return nil
}

// closeTrack validates the track being left behind.
func (p *parser) closeTrack() error {
	if p.current == nil {
		return nil
	}
	track := p.current
	start, ok := track.Indexes[1]
	if !ok {
		return fmt.Errorf("track %d has no INDEX 01", track.Number)
	}
	if pregap, ok := track.Indexes[0]; ok {
		// Pre-gaps stored at the tail of the previous FILE are not comparable.
		if p.pregapFile[track.Number] == track.File && pregap >= start {
			return fmt.Errorf("track %d INDEX 00 %s does not precede INDEX 01 %s", track.Number, pregap, start)
		}
	}
	return nil
}

func (p *parser) finish() error {
	if err := p.closeTrack(); err != nil {
		return err
	}
	if len(p.doc.Tracks) == 0 {
		return fmt.Errorf("no TRACK entries")
	}
	return nil
}

// splitDirective returns the upper-cased first word and the remainder.
func splitDirective(line string) (string, string) {
	line = strings.TrimSpace(line)
	idx := strings.IndexAny(line, " \t")
	if idx < 0 {
		return strings.ToUpper(line), ""
	}
	return strings.ToUpper(line[:idx]), strings.TrimSpace(line[idx+1:])
}

// unquote strips one pair of surrounding double quotes, keeping inner quotes.
func unquote(value string) string {
	value = strings.TrimSpace(value)
	if len(value) >= 2 && value[0] == '"' {
		if end := strings.LastIndexByte(value, '"'); end > 0 {
			return value[1:end]
		}
	}
	return strings.Trim(value, "\"")
}

func parseFileArgs(rest string) (name, kind string) {
	rest = strings.TrimSpace(rest)
	if strings.HasPrefix(rest, "\"") {
		end := strings.LastIndexByte(rest, '"')
		if end > 0 {
			return rest[1:end], strings.ToUpper(strings.TrimSpace(rest[end+1:]))
		}
		return strings.Trim(rest, "\""), ""
	}
	fields := strings.Fields(rest)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	}
	idx := strings.LastIndexAny(rest, " \t")
	return strings.TrimSpace(rest[:idx]), strings.ToUpper(fields[len(fields)-1])
}
