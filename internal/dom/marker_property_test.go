//go:build property

package dom

import (
	"encoding/base64"
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Run with: go test -tags property ./internal/dom/

func TestMarkerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1234)
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("any payload round-trips through a token", prop.ForAll(
		func(payload string) bool {
			m := NewMarkerSet()
			tok := m.New(MarkerCode, payload)
			out, err := m.Expand("<p>" + tok + "</p>")
			return err == nil && out == "<p>"+payload+"</p>"
		},
		gen.AnyString(),
	))

	properties.Property("comment-shaped tokens expand without their delimiters", prop.ForAll(
		func(payload string) bool {
			m := NewMarkerSet()
			tok := m.New(MarkerCode, payload)
			out, err := m.Expand("<div><!--" + tok + "--></div>")
			return err == nil && out == "<div>"+payload+"</div>"
		},
		gen.AnyString(),
	))

	properties.Property("attr tokens expand inside quoted values", prop.ForAll(
		func(payload string) bool {
			m := NewMarkerSet()
			tok := m.New(MarkerAttr, payload)
			doc := `<a href="` + tok + `">x</a>`
			out, err := m.Expand(doc)
			return err == nil && out == `<a href="`+payload+`">x</a>`
		},
		gen.AnyString(),
	))

	properties.Property("forged tokens pass through unchanged", prop.ForAll(
		func(id int, body string) bool {
			forged := fmt.Sprintf("gv:code:%d:%s", id,
				base64.StdEncoding.EncodeToString([]byte(body)))
			m := NewMarkerSet()
			out, err := m.Expand("<p>" + forged + "</p>")
			return err == nil && out == "<p>"+forged+"</p>"
		},
		gen.IntRange(0, 1<<30),
		gen.AnyString(),
	))

	properties.Property("tokens never contain live template actions", prop.ForAll(
		func(payload string) bool {
			m := NewMarkerSet()
			tok := m.New(MarkerCode, payload)
			return !strings.Contains(tok, "{{") && !strings.Contains(tok, "<") &&
				!strings.Contains(tok, `"`) && !strings.Contains(tok, "&")
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
