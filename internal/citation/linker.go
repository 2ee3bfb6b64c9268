// Package citation turns an answer containing bracketed citation markers
// into display segments bound to the sources that back them.
package citation

import (
	"regexp"

	"docqa-client/internal/model"
)

type Kind string

const (
	KindText     Kind = "text"
	KindCitation Kind = "citation"
)

// Segment is either a run of plain text or a citation marker. For citations
// Source is nil and Index is -1 when no source carries the label.
type Segment struct {
	Kind   Kind          `json:"kind"`
	Value  string        `json:"value,omitempty"`
	Label  string        `json:"label,omitempty"`
	Source *model.Source `json:"source,omitempty"`
	Index  int           `json:"index"`
}

// Markers never span a line and never contain another bracket, so an
// unterminated "[" is left as text.
var markerPattern = regexp.MustCompile(`\[([^\[\]\n]*)\]`)

// Link splits answer into text and citation segments in document order.
func Link(answer string, sources []model.Source) []Segment {
	if answer == "" {
		return []Segment{}
	}
	index := labelIndex(sources)

	segments := make([]Segment, 0, 4)
	last := 0
	for _, loc := range markerPattern.FindAllStringSubmatchIndex(answer, -1) {
		if loc[0] > last {
			segments = append(segments, Segment{Kind: KindText, Value: answer[last:loc[0]], Index: -1})
		}
		label := answer[loc[2]:loc[3]]
		seg := Segment{Kind: KindCitation, Value: answer[loc[0]:loc[1]], Label: label, Index: -1}
		if i, ok := index[label]; ok {
			src := sources[i]
			seg.Source = &src
			seg.Index = i
		}
		segments = append(segments, seg)
		last = loc[1]
	}
	if last < len(answer) {
		segments = append(segments, Segment{Kind: KindText, Value: answer[last:], Index: -1})
	}
	return segments
}

// Labels maps each composite label to the first source carrying it.
func Labels(sources []model.Source) map[string]*model.Source {
	out := make(map[string]*model.Source, len(sources))
	for label, i := range labelIndex(sources) {
		src := sources[i]
		out[label] = &src
	}
	return out
}

// Citations returns the distinct resolved sources in order of first citation.
func Citations(segments []Segment) []model.Source {
	seen := make(map[int]bool)
	var out []model.Source
	for _, seg := range segments {
		if seg.Kind != KindCitation || seg.Source == nil || seen[seg.Index] {
			continue
		}
		seen[seg.Index] = true
		out = append(out, *seg.Source)
	}
	return out
}

func labelIndex(sources []model.Source) map[string]int {
	index := make(map[string]int, len(sources))
	for i, src := range sources {
		label := src.Label()
		if _, dup := index[label]; !dup {
			index[label] = i
		}
	}
	return index
}
