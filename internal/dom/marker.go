package dom

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
)

// Markers carry generated template code through tree mutation and
// serialization. The tree's grammar cannot hold raw code: attribute
// escaping and comment delimiters would corrupt it. Instead processors
// register the code here and embed an opaque token - kind, sequence id and
// the base64 payload - that survives serialization unharmed. A single
// textual pass afterwards swaps every token for its decoded payload.

// MarkerKind tags what position a marker occupies in the document.
type MarkerKind string

const (
	// MarkerCode is generated code standing on its own: a comment-shaped
	// sibling token or a bare token inside an open tag.
	MarkerCode MarkerKind = "code"
	// MarkerAttr is generated code forming a complete attribute value.
	MarkerAttr MarkerKind = "attr"
)

type marker struct {
	kind     MarkerKind
	payload  string
	consumed bool
}

// MarkerSet is the per-compile marker registry. Each marker is created
// once by a directive processor and consumed exactly once by Expand.
type MarkerSet struct {
	markers []marker
}

// NewMarkerSet returns an empty registry.
func NewMarkerSet() *MarkerSet {
	return &MarkerSet{}
}

// New registers payload and returns its opaque token.
func (m *MarkerSet) New(kind MarkerKind, payload string) string {
	id := len(m.markers)
	m.markers = append(m.markers, marker{kind: kind, payload: payload})
	enc := base64.StdEncoding.EncodeToString([]byte(payload))
	return fmt.Sprintf("gv:%s:%d:%s", kind, id, enc)
}

// Comment registers payload and returns a comment node carrying its token,
// ready to be inserted next to the element the code belongs to.
func (m *MarkerSet) Comment(payload string) *Node {
	return NewComment(m.New(MarkerCode, payload))
}

// Len reports how many markers have been created.
func (m *MarkerSet) Len() int {
	return len(m.markers)
}

// ContainsMarker reports whether s holds marker-shaped text. Processors use
// it to recognize values another processor already made dynamic.
func ContainsMarker(s string) bool {
	return markerPattern.MatchString(s)
}

var markerPattern = regexp.MustCompile(`(<!--)?gv:(code|attr):(\d+):([A-Za-z0-9+/=]*)(-->)?`)

// Expand substitutes every marker token in the serialized document with its
// decoded payload. A token that does not exactly match a registration is
// authored text that happens to look like one and passes through untouched;
// processors only ever embed tokens New returned. It fails when a real
// marker is consumed twice or never reaches the output, both of which mean
// a processor broke the create-once/consume-once contract.
func (m *MarkerSet) Expand(s string) (string, error) {
	var expandErr error
	out := markerPattern.ReplaceAllStringFunc(s, func(tok string) string {
		if expandErr != nil {
			return tok
		}
		sub := markerPattern.FindStringSubmatch(tok)
		kind := MarkerKind(sub[2])
		id, err := strconv.Atoi(sub[3])
		if err != nil || id < 0 || id >= len(m.markers) {
			return tok
		}
		reg := &m.markers[id]
		dec, decErr := base64.StdEncoding.DecodeString(sub[4])
		if reg.kind != kind || decErr != nil || string(dec) != reg.payload {
			return tok
		}
		if reg.consumed {
			expandErr = fmt.Errorf("marker %d consumed twice", id)
			return tok
		}
		reg.consumed = true
		// Comment-shaped tokens take their delimiters with them.
		return string(dec)
	})
	if expandErr != nil {
		return "", expandErr
	}
	for id := range m.markers {
		if !m.markers[id].consumed {
			return "", fmt.Errorf("marker %d (%s) never reached the output", id, m.markers[id].kind)
		}
	}
	return out, nil
}
