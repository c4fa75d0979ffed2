// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package tgmarkup

import (
	"encoding/json"
	"testing"

	"go.gridlink.dev/tools/internal/testutil"
)

func TestFromMarkdown(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		in   string
		want Message
	}{
		"plain": {
			in:   "Send me MGRS coordinates.",
			want: Message{Text: "Send me MGRS coordinates."},
		},
		"code span after break": {
			in: "MGRS:\n`36UUA2418291607`",
			want: Message{
				Text:     "MGRS:\n36UUA2418291607",
				Entities: []Entity{{Type: Code, Offset: 6, Length: 15}},
			},
		},
		"offsets count utf-16 units": {
			in: "✅ MGRS координати:\n`31NAA6602100000`",
			want: Message{
				Text:     "✅ MGRS координати:\n31NAA6602100000",
				Entities: []Entity{{Type: Code, Offset: 19, Length: 15}},
			},
		},
		"astral plane emoji": {
			in: "😀 `x`",
			want: Message{
				Text:     "😀 x",
				Entities: []Entity{{Type: Code, Offset: 3, Length: 1}},
			},
		},
		"bold and italic": {
			in: "**a** _b_",
			want: Message{
				Text: "a b",
				Entities: []Entity{
					{Type: Bold, Offset: 0, Length: 1},
					{Type: Italic, Offset: 2, Length: 1},
				},
			},
		},
		"link": {
			in: "[map](https://www.google.com/maps)",
			want: Message{
				Text:     "map",
				Entities: []Entity{{Type: TextLink, Offset: 0, Length: 3, URL: "https://www.google.com/maps"}},
			},
		},
		"paragraphs": {
			in:   "one\n\ntwo",
			want: Message{Text: "one\ntwo"},
		},
		"heading": {
			in: "# Usage\n\ntext",
			want: Message{
				Text:     "Usage\ntext",
				Entities: []Entity{{Type: Bold, Offset: 0, Length: 5}},
			},
		},
		"code block": {
			in: "```\n15TWG0000049776\n```",
			want: Message{
				Text:     "15TWG0000049776",
				Entities: []Entity{{Type: Pre, Offset: 0, Length: 15}},
			},
		},
		"empty": {
			in:   "",
			want: Message{},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			testutil.AssertEqual(t, FromMarkdown(tc.in), tc.want)
		})
	}
}

func TestMessageJSON(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(FromMarkdown("`x`"))
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, string(b), `{"text":"x","entities":[{"type":"code","offset":0,"length":1}]}`)
}
