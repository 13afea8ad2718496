package grove

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin/render"
)

// View bundles render data with per-render options, for handlers that go
// through gin's fixed (name, data) render signature:
//
//	c.HTML(http.StatusOK, "pages/signup", grove.NewView(data, grove.WithErrors(errs)))
type View struct {
	Data any
	Opts []RenderOption
}

// NewView wraps data and options for a gin render.
func NewView(data any, opts ...RenderOption) View {
	return View{Data: data, Opts: opts}
}

var _ render.HTMLRender = (*HtmlRender)(nil)

// HtmlRender gin HtmlRender compatible
type HtmlRender struct {
	e *Engine
}

// NewHTMLRender create a new HtmlRender
func NewHTMLRender(e *Engine) *HtmlRender {
	return &HtmlRender{e: e}
}

// Instance returns a new render.Render
func (h *HtmlRender) Instance(name string, data any) render.Render {
	r := &Render{e: h.e, name: name, data: data}
	if v, ok := data.(View); ok {
		r.data = v.Data
		r.opts = v.Opts
	}
	return r
}

// Render renders HTML template with data and write to w
type Render struct {
	e    *Engine
	name string
	data any
	opts []RenderOption
}

// Render renders HTML template with data and writes to w
func (r *Render) Render(w http.ResponseWriter) error {
	r.WriteContentType(w)
	return r.e.Render(context.Background(), w, r.name, r.data, r.opts...)
}

// WriteContentType write an HTML content type to the response header if not set
func (r *Render) WriteContentType(w http.ResponseWriter) {
	header := w.Header()
	if val := header["Content-Type"]; len(val) == 0 {
		header["Content-Type"] = []string{"text/html; charset=utf-8"}
	}
}
