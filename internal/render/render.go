// Package render prints tailed journal entries.
package render

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"unicode"
	"unicode/utf8"

	"github.com/valyala/fastjson"
	"golang.org/x/term"

	"github.com/mbrock/jtail/internal/journal"
)

// Format selects the output layout.
type Format string

const (
	// FormatText prints one NAME=VALUE line per field.
	FormatText Format = "text"
	// FormatJSON prints one JSON object per entry, like journalctl -o json.
	FormatJSON Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatText, FormatJSON:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown output format %q (want text or json)", s)
}

// Renderer writes entries to an output stream. It is not safe for
// concurrent use.
type Renderer struct {
	out    *bufio.Writer
	format Format

	// separators puts a cursor header before each entry in text mode.
	separators bool

	arena fastjson.Arena
	buf   []byte
}

// New creates a renderer. Text output to a terminal gets a header line
// before each entry so entries stay apart.
func New(w io.Writer, format Format) *Renderer {
	r := &Renderer{out: bufio.NewWriter(w), format: format}
	if f, ok := w.(*os.File); ok && format == FormatText {
		r.separators = term.IsTerminal(int(f.Fd()))
	}
	return r
}

// SetSeparators forces the per-entry header on or off.
func (r *Renderer) SetSeparators(on bool) {
	r.separators = on
}

// Render writes one entry and flushes it.
func (r *Renderer) Render(e *journal.Entry) error {
	switch r.format {
	case FormatJSON:
		r.renderJSON(e)
	default:
		r.renderText(e)
	}
	return r.out.Flush()
}

func (r *Renderer) renderText(e *journal.Entry) {
	if r.separators {
		fmt.Fprintf(r.out, "-- %s %s\n", e.Realtime.Format("2006-01-02T15:04:05.000000Z07:00"), e.Cursor)
	}
	for _, f := range e.Fields {
		r.out.WriteString(f.Name)
		r.out.WriteByte('=')
		r.out.WriteString(textValue(f.Value))
		r.out.WriteByte('\n')
	}
}

// textValue keeps printable values as they are and shows everything else
// the way journalctl does.
func textValue(v []byte) string {
	if printable(v) {
		return string(v)
	}
	if utf8.Valid(v) {
		return strconv.Quote(string(v))
	}
	return fmt.Sprintf("[%d bytes blob data]", len(v))
}

func printable(v []byte) bool {
	for _, r := range string(v) {
		if r == utf8.RuneError || (!unicode.IsPrint(r) && r != '\t') {
			return false
		}
	}
	return true
}

func (r *Renderer) renderJSON(e *journal.Entry) {
	defer r.arena.Reset()
	a := &r.arena

	obj := a.NewObject()
	if e.Cursor != "" {
		obj.Set("__CURSOR", a.NewString(string(e.Cursor)))
	}
	if !e.Realtime.IsZero() {
		obj.Set("__REALTIME_TIMESTAMP", a.NewString(strconv.FormatInt(e.Realtime.UnixMicro(), 10)))
	}

	// Repeated fields become arrays, in first-seen order.
	var order []string
	values := make(map[string][]*fastjson.Value)
	for _, f := range e.Fields {
		if _, seen := values[f.Name]; !seen {
			order = append(order, f.Name)
		}
		values[f.Name] = append(values[f.Name], jsonValue(a, f.Value))
	}
	for _, name := range order {
		vs := values[name]
		if len(vs) == 1 {
			obj.Set(name, vs[0])
			continue
		}
		arr := a.NewArray()
		for i, v := range vs {
			arr.SetArrayItem(i, v)
		}
		obj.Set(name, arr)
	}

	r.buf = obj.MarshalTo(r.buf[:0])
	r.buf = append(r.buf, '\n')
	r.out.Write(r.buf)
}

// jsonValue encodes valid UTF-8 as a string and anything else as an array
// of byte values.
func jsonValue(a *fastjson.Arena, v []byte) *fastjson.Value {
	if utf8.Valid(v) {
		return a.NewStringBytes(v)
	}
	arr := a.NewArray()
	for i, b := range v {
		arr.SetArrayItem(i, a.NewNumberInt(int(b)))
	}
	return arr
}
