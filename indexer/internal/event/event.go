// Package event turns an XML byte stream into an ordered sequence of
// start, end and text events without materialising a document tree.
//
// Input may be gzip-compressed (detected from the magic bytes) and may use
// any encoding golang.org/x/net/html/charset knows about. HTML named
// entities are resolved, which covers the Latin-1 entities declared by the
// DBLP DTD.
package event

import (
	"bufio"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"maps"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/net/html/charset"
)

// ErrMalformedXML wraps every syntax error reported by the decoder.
var ErrMalformedXML = errors.New("event: malformed xml")

// Kind discriminates events.
type Kind uint8

const (
	Start Kind = iota + 1
	End
	Text
)

func (k Kind) String() string {
	switch k {
	case Start:
		return "start"
	case End:
		return "end"
	case Text:
		return "text"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Event is one parse notification. Name is set for Start and End, Attrs
// only for Start, Text only for Text. Names are local names (namespace
// prefixes dropped).
type Event struct {
	Kind  Kind
	Name  string
	Attrs map[string]string
	Text  string
}

// StartElement builds a Start event.
func StartElement(name string, attrs map[string]string) Event {
	return Event{Kind: Start, Name: name, Attrs: attrs}
}

// EndElement builds an End event.
func EndElement(name string) Event { return Event{Kind: End, Name: name} }

// CharData builds a Text event.
func CharData(text string) Event { return Event{Kind: Text, Text: text} }

// Handler consumes events. Returning an error stops the stream and the
// error is returned unchanged by Stream.
type Handler interface {
	HandleEvent(ctx context.Context, ev Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev Event) error

// HandleEvent calls f(ctx, ev).
func (f HandlerFunc) HandleEvent(ctx context.Context, ev Event) error { return f(ctx, ev) }

type config struct {
	entities map[string]string
	gunzip   bool
}

// Option customises Stream.
type Option func(*config)

// WithEntities adds named entities on top of the HTML entity set.
func WithEntities(ents map[string]string) Option {
	return func(c *config) { maps.Copy(c.entities, ents) }
}

// WithoutGzip disables gzip detection.
func WithoutGzip() Option { return func(c *config) { c.gunzip = false } }

// Stream reads one XML document from r and delivers its events to h in
// document order. It returns nil at the end of a well-formed document,
// an error wrapping ErrMalformedXML on syntax errors, ctx.Err() when the
// context is cancelled between tokens, or the first error returned by h.
func Stream(ctx context.Context, r io.Reader, h Handler, opts ...Option) error {
	cfg := config{entities: maps.Clone(xml.HTMLEntity), gunzip: true}
	for _, o := range opts {
		o(&cfg)
	}

	src := r
	if cfg.gunzip {
		br := bufio.NewReaderSize(r, 64*1024)
		magic, _ := br.Peek(2)
		if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
			zr, err := gzip.NewReader(br)
			if err != nil {
				return fmt.Errorf("event: gzip: %w", err)
			}
			defer zr.Close()
			src = zr
		} else {
			src = br
		}
	}

	d := xml.NewDecoder(src)
	d.Strict = true
	d.Entity = cfg.entities
	d.CharsetReader = charset.NewReaderLabel

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		tok, err := d.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			var syn *xml.SyntaxError
			if errors.As(err, &syn) {
				return fmt.Errorf("%w: %w", ErrMalformedXML, err)
			}
			return fmt.Errorf("event: read: %w", err)
		}

		var ev Event
		switch t := tok.(type) {
		case xml.StartElement:
			var attrs map[string]string
			if len(t.Attr) > 0 {
				attrs = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					attrs[a.Name.Local] = a.Value
				}
			}
			ev = StartElement(t.Name.Local, attrs)
		case xml.EndElement:
			ev = EndElement(t.Name.Local)
		case xml.CharData:
			ev = CharData(string(t))
		default:
			// Comments, processing instructions and directives carry no data.
			continue
		}

		if err := h.HandleEvent(ctx, ev); err != nil {
			return err
		}
	}
}
