package recovery

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Stage names the pipeline stage that produced a Document.
type Stage string

const (
	// StagePrimary is a parse of the repaired text.
	StagePrimary Stage = "primary"
	// StageRescue is a parse of the narrowed rescue candidate.
	StageRescue Stage = "rescue"
)

// Document is a successfully recovered structured value.
type Document struct {
	// Value is a map[string]any or []any; numbers are json.Number.
	Value any
	// JSON is the exact candidate text that parsed.
	JSON json.RawMessage
	// Stage is the stage that produced the document.
	Stage Stage
	// Repairs lists the repair passes that changed the text before the primary parse.
	// Rescued documents carry no repairs since rescue parses unrepaired text.
	Repairs []Repair
	// PrimaryErr is the primary parse failure for rescued documents.
	PrimaryErr error
}

// Len returns the number of top-level keys or elements.
func (d *Document) Len() int {
	switch v := d.Value.(type) {
	case map[string]any:
		return len(v)
	case []any:
		return len(v)
	default:
		return 0
	}
}

// RepairCount returns the total number of rewrites applied by the repair passes.
func (d *Document) RepairCount() int {
	n := 0
	for _, r := range d.Repairs {
		n += r.Count
	}
	return n
}

// Indent renders the document with two-space indentation.
// Key order and numbers are kept as they appeared in the source. Strings are
// re-encoded, so escaped non-ASCII characters are written out literally.
func (d *Document) Indent() ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(d.JSON))
	dec.UseNumber()

	w := &indenter{}
	w.enc = json.NewEncoder(&w.scratch)
	w.enc.SetEscapeHTML(false)
	if err := w.value(dec); err != nil {
		return nil, err
	}
	return w.out.Bytes(), nil
}

// indenter writes a token stream back out in indented form.
type indenter struct {
	out     bytes.Buffer
	scratch bytes.Buffer
	enc     *json.Encoder
	depth   int
}

func (w *indenter) value(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	switch t := tok.(type) {
	case json.Delim:
		return w.container(dec, t)
	case string:
		return w.str(t)
	case json.Number:
		w.out.WriteString(t.String())
	case bool:
		w.out.WriteString(strconv.FormatBool(t))
	case nil:
		w.out.WriteString("null")
	default:
		return fmt.Errorf("unexpected token %v", tok)
	}
	return nil
}

func (w *indenter) container(dec *json.Decoder, open json.Delim) error {
	closing := byte('}')
	if open == '[' {
		closing = ']'
	}
	w.out.WriteByte(byte(open))
	w.depth++

	n := 0
	for dec.More() {
		if n > 0 {
			w.out.WriteByte(',')
		}
		w.newline()
		if open == '{' {
			tok, err := dec.Token()
			if err != nil {
				return err
			}
			key, ok := tok.(string)
			if !ok {
				return fmt.Errorf("unexpected object key %v", tok)
			}
			if err := w.str(key); err != nil {
				return err
			}
			w.out.WriteString(": ")
		}
		if err := w.value(dec); err != nil {
			return err
		}
		n++
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	w.depth--
	if n > 0 {
		w.newline()
	}
	w.out.WriteByte(closing)
	return nil
}

func (w *indenter) str(s string) error {
	w.scratch.Reset()
	if err := w.enc.Encode(s); err != nil {
		return err
	}
	w.out.Write(bytes.TrimSuffix(w.scratch.Bytes(), []byte("\n")))
	return nil
}

func (w *indenter) newline() {
	w.out.WriteByte('\n')
	for i := 0; i < w.depth; i++ {
		w.out.WriteString("  ")
	}
}

// parseDocument strictly parses text as a single JSON object or array.
func parseDocument(text string) (*Document, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, &ParseError{Message: "invalid JSON", Cause: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err == nil {
			return nil, &ParseError{Message: "unexpected data after top-level value"}
		}
		return nil, &ParseError{Message: "unexpected data after top-level value", Cause: err}
	}

	switch value.(type) {
	case map[string]any, []any:
	default:
		return nil, &ParseError{Message: "top-level value is not an object or array"}
	}

	return &Document{
		Value: value,
		JSON:  json.RawMessage(strings.TrimSpace(text)),
	}, nil
}
