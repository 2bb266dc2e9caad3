package fetcher

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectTrack(t *testing.T) {
	for _, tc := range []struct {
		name   string
		tracks []CaptionTrack
		exp    string
		expErr error
	}{
		{
			name: "manual over generated",
			tracks: []CaptionTrack{
				{BaseURL: "asr", VssID: "a.en"},
				{BaseURL: "manual", VssID: ".en"},
			},
			exp: "manual",
		},
		{
			name: "generated over regional",
			tracks: []CaptionTrack{
				{BaseURL: "gb", VssID: ".en-GB"},
				{BaseURL: "asr", VssID: "a.en"},
			},
			exp: "asr",
		},
		{
			name: "regional",
			tracks: []CaptionTrack{
				{BaseURL: "nl", VssID: ".nl"},
				{BaseURL: "gb", VssID: ".en-GB"},
			},
			exp: "gb",
		},
		{
			name: "first of equals",
			tracks: []CaptionTrack{
				{BaseURL: "first", VssID: ".en"},
				{BaseURL: "second", VssID: ".en"},
			},
			exp: "first",
		},
		{
			name:   "no match",
			tracks: []CaptionTrack{{BaseURL: "nl", VssID: ".nl"}},
			expErr: ErrTrackNotFound,
		},
		{
			name:   "match without url",
			tracks: []CaptionTrack{{VssID: ".en"}, {BaseURL: "asr", VssID: "a.en"}},
			expErr: ErrTrackNotFound,
		},
		{
			name:   "empty",
			expErr: ErrTrackNotFound,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			act, err := SelectTrack(tc.tracks, "en")
			if tc.expErr != nil {
				assert.True(t, errors.Is(err, tc.expErr))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.exp, act.BaseURL)
		})
	}
}

func TestDecodeTranscript(t *testing.T) {
	for _, tc := range []struct {
		name string
		raw  string
		exp  string
	}{
		{
			name: "clean text is left alone",
			raw:  "Hello world",
			exp:  "Hello world",
		},
		{
			name: "clean text keeps its spacing",
			raw:  "two  spaces\n and  a newline",
			exp:  "two  spaces\n and  a newline",
		},
		{
			name: "clean text keeps leading space",
			raw:  " leading",
			exp:  " leading",
		},
		{
			name: "clean text in segments",
			raw:  `<transcript><text start="0">Hello world</text></transcript>`,
			exp:  "Hello world",
		},
		{
			name: "escaped ampersand",
			raw:  `<text start="0">Hello</text><text start="1">&amp;</text><text start="2">world</text>`,
			exp:  "Hello & world",
		},
		{
			name: "double escaped ampersand",
			raw:  `<text start="0">rock &amp;amp; roll</text>`,
			exp:  "rock & roll",
		},
		{
			name: "escaped tag followed by literal tag",
			raw:  `<text start="0">&lt;text&gt;<b>bold</b> move</text>`,
			exp:  "bold move",
		},
		{
			name: "entities and apostrophes",
			raw:  `<text start="0">it&#39;s &quot;fine&quot;</text>`,
			exp:  `it's "fine"`,
		},
		{
			name: "blank segments dropped",
			raw:  `<?xml version="1.0" encoding="utf-8" ?><transcript><text start="0">one</text><text start="1">  </text><text start="2"><i></i></text><text start="3">two</text></transcript>`,
			exp:  "one two",
		},
		{
			name: "whitespace inside segment kept",
			raw:  "<text start=\"0\">one\n  two</text><text start=\"1\"> three  four\n</text>",
			exp:  "one\n  two  three  four\n",
		},
		{
			name: "empty",
			raw:  `<transcript></transcript>`,
			exp:  "",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			act := DecodeTranscript(tc.raw)
			assert.Equal(t, tc.exp, act)
			assert.False(t, strings.ContainsAny(act, "<>"))
		})
	}
}
