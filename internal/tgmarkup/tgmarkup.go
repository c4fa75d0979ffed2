// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package tgmarkup renders Markdown as Telegram message text with entities.
package tgmarkup

import (
	"strings"
	"unicode/utf16"

	"rsc.io/markdown"
)

// Message is message text together with its formatting entities.
type Message struct {
	Text     string   `json:"text"`
	Entities []Entity `json:"entities,omitempty"`
}

// Type is a Telegram message entity type.
// See https://core.telegram.org/bots/api#messageentity.
type Type string

// Entity types produced by [FromMarkdown].
const (
	Bold       Type = "bold"
	Italic     Type = "italic"
	Code       Type = "code" // monowidth string
	Pre        Type = "pre"  // monowidth block
	Blockquote Type = "blockquote"
	TextLink   Type = "text_link"
	URL        Type = "url"
)

// Entity marks a formatted part of message text. Offset and Length are in
// UTF-16 code units.
type Entity struct {
	Type     Type   `json:"type"`
	Offset   int    `json:"offset"`
	Length   int    `json:"length"`
	URL      string `json:"url,omitempty"`
	Language string `json:"language,omitempty"`
}

// FromMarkdown converts Markdown text to a [Message]. Blocks are separated
// by a single newline and trailing newlines are dropped.
func FromMarkdown(text string) Message {
	var p markdown.Parser
	doc := p.Parse(text)

	w := new(writer)
	for i, b := range doc.Blocks {
		if i > 0 {
			w.sb.WriteString("\n")
		}
		w.block(b)
	}

	s := strings.TrimRight(w.sb.String(), "\n")
	end := utf16len(s)
	for i := range w.entities {
		e := &w.entities[i]
		if e.Offset+e.Length > end {
			e.Length = end - e.Offset
		}
	}
	return Message{Text: s, Entities: w.entities}
}

type writer struct {
	sb       strings.Builder
	entities []Entity
	n        int // length of sb in UTF-16 code units
}

func (w *writer) write(s string) {
	w.sb.WriteString(s)
	w.n += utf16len(s)
}

// wrap records an entity of type t spanning everything f writes.
func (w *writer) wrap(t Type, f func(), opts ...func(*Entity)) {
	start := w.n
	f()
	if w.n == start {
		return
	}
	e := Entity{Type: t, Offset: start, Length: w.n - start}
	for _, o := range opts {
		o(&e)
	}
	w.entities = append(w.entities, e)
}

func (w *writer) block(b markdown.Block) {
	switch b := b.(type) {
	case *markdown.Paragraph:
		w.inlines(b.Text.Inline)
	case *markdown.Heading:
		w.wrap(Bold, func() { w.inlines(b.Text.Inline) })
	case *markdown.CodeBlock:
		w.wrap(Pre, func() { w.write(strings.Join(b.Text, "\n")) }, func(e *Entity) { e.Language = b.Info })
	case *markdown.Quote:
		w.wrap(Blockquote, func() {
			for i, inner := range b.Blocks {
				if i > 0 {
					w.write("\n")
				}
				w.block(inner)
			}
		})
	case *markdown.List:
		for i, it := range b.Items {
			item, ok := it.(*markdown.Item)
			if !ok {
				continue
			}
			if i > 0 {
				w.write("\n")
			}
			w.write("• ")
			for j, inner := range item.Blocks {
				if j > 0 {
					w.write("\n")
				}
				w.block(inner)
			}
		}
	case *markdown.ThematicBreak:
		w.write("⸻")
	}
}

func (w *writer) inlines(ins markdown.Inlines) {
	for _, in := range ins {
		w.inline(in)
	}
}

func (w *writer) inline(in markdown.Inline) {
	switch in := in.(type) {
	case *markdown.Plain:
		w.write(in.Text)
	case *markdown.Strong:
		w.wrap(Bold, func() { w.inlines(in.Inner) })
	case *markdown.Emph:
		w.wrap(Italic, func() { w.inlines(in.Inner) })
	case *markdown.Code:
		w.wrap(Code, func() { w.write(in.Text) })
	case *markdown.Link:
		w.wrap(TextLink, func() { w.inlines(in.Inner) }, func(e *Entity) { e.URL = in.URL })
	case *markdown.AutoLink:
		w.wrap(URL, func() { w.write(in.Text) })
	case *markdown.SoftBreak, *markdown.HardBreak:
		w.write("\n")
	}
}

func utf16len(s string) int {
	return len(utf16.Encode([]rune(s)))
}
