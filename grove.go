// Package grove is a view engine for attribute-directive templates: it
// loads template files, compiles them to text/template source, and renders
// them through layout chains. See the compiler package for the directive
// language itself.
package grove

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"text/template"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dangdungcntt/go-grove/compiler"
	"github.com/dangdungcntt/go-grove/runtime"
)

// ValidFileExtensions are the file extensions Load picks up.
var ValidFileExtensions = []string{".grove", ".html", ".tmpl"}

// ErrTemplateNotFound reports a render or include of a template name that
// Load never saw.
var ErrTemplateNotFound = errors.New("template not loaded")

var tracer = otel.Tracer("github.com/dangdungcntt/go-grove")

// Engine compiles and caches template files and renders them through
// layout chains. Configure the exported fields before Load; afterwards the
// engine is safe for concurrent renders.
type Engine struct {
	// FuncMap is merged over the runtime func map before templates parse,
	// so entries here shadow the built-in funcs.
	FuncMap template.FuncMap
	// Mode selects strict or permissive compilation.
	Mode compiler.Mode
	// CacheDir enables the on-disk cache of compiled template source.
	// Empty disables it.
	CacheDir string
	// OnReload is called with each Watch-triggered reload's result.
	OnReload func(error)

	dir        string
	dirPrefix  string
	fs         fs.FS
	extensions []string

	mu              sync.Mutex
	templates       map[string]*template.Template
	debugTemplates  map[string]string
	lastCompileTime int64
}

// NewEngine creates a new engine pointing to a directory with template
// files.
func NewEngine(dir string) *Engine {
	e := NewEngineFS(os.DirFS(dir))
	e.dir = dir
	return e
}

// NewEngineFS creates a new engine pointing to a filesystem.
// When using embed.FS, pass the embedded folder as prefix.
func NewEngineFS(fsys fs.FS, prefix ...string) *Engine {
	var dirPrefix string
	if len(prefix) > 0 {
		dirPrefix = prefix[0]
	}
	return &Engine{
		dirPrefix:       dirPrefix,
		fs:              fsys,
		extensions:      slices.Clone(ValidFileExtensions),
		templates:       make(map[string]*template.Template),
		debugTemplates:  map[string]string{},
		lastCompileTime: -1,
		FuncMap:         template.FuncMap{},
	}
}

// Load reads all template files from the fs, compiles them, and parses the
// results. Only files modified since the last Load recompile; templates
// compile independently, so unchanged files keep their parsed template.
func (e *Engine) Load() error {
	return e.LoadContext(context.Background())
}

// LoadContext is Load with a context for logging and tracing.
func (e *Engine) LoadContext(ctx context.Context) error {
	e.mu.Lock()
	defer func() {
		e.lastCompileTime = time.Now().UnixMilli()
		e.mu.Unlock()
	}()

	log := logger(ctx)
	loaded := 0

	err := fs.WalkDir(e.fs, ".", func(path string, info fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !slices.Contains(e.extensions, ext) {
			return nil
		}

		stats, err := info.Info()
		if err != nil {
			return err
		}
		// embed.FS reports the zero time, so the gate only applies after
		// the first load.
		if e.lastCompileTime >= 0 && stats.ModTime().UnixMilli() <= e.lastCompileTime {
			return nil
		}

		f, err := e.fs.Open(path)
		if err != nil {
			return err
		}
		raw, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return err
		}

		name := e.nameFromPath(path)
		compiled, err := e.compileTemplate(ctx, name, string(raw), stats.ModTime())
		if err != nil {
			return err
		}

		tmpl, err := template.New(name).Funcs(runtime.Funcs()).Funcs(e.FuncMap).Parse(compiled)
		if err != nil {
			return fmt.Errorf("[%s] parse compiled template: %w", name, err)
		}
		e.debugTemplates[name] = compiled
		e.templates[name] = tmpl
		loaded++
		return nil
	})
	if err != nil {
		return err
	}

	if loaded > 0 {
		log.Debug("templates loaded", "count", loaded)
	}
	return nil
}

// compileTemplate turns one source file into text/template source, going
// through the disk cache when one is configured. Cache write failures are
// tolerated; the compile result is still returned.
func (e *Engine) compileTemplate(ctx context.Context, name, src string, srcMod time.Time) (string, error) {
	log := logger(ctx)
	if e.CacheDir != "" {
		if cached, ok := e.readCache(name, srcMod); ok {
			log.Debug("compile cache hit", "template", name)
			return cached, nil
		}
	}

	_, span := tracer.Start(ctx, "grove.compile",
		trace.WithAttributes(attribute.String("grove.template", name)))
	defer span.End()

	compiled, err := compiler.Compile(src, name, compiler.Options{Mode: e.Mode})
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	if e.CacheDir != "" {
		if werr := e.writeCache(name, compiled); werr != nil {
			log.Debug("compile cache write failed", "template", name, "error", werr)
		}
	}
	return compiled, nil
}

// cachePath flattens a template name into a single cache file name. The
// mode is part of the name so switching modes never serves stale output.
func (e *Engine) cachePath(name string) string {
	flat := strings.ReplaceAll(name, "/", "__")
	return filepath.Join(e.CacheDir, fmt.Sprintf("%s.%s.tmpl", flat, e.Mode))
}

// readCache returns the cached compiled source when its file is at least
// as new as the template source.
func (e *Engine) readCache(name string, srcMod time.Time) (string, bool) {
	path := e.cachePath(name)
	fi, err := os.Stat(path)
	if err != nil || fi.ModTime().Before(srcMod) {
		return "", false
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

// writeCache stores compiled source via a temp file and atomic rename, so
// concurrent writers and crashed processes never leave partial caches.
func (e *Engine) writeCache(name, compiled string) error {
	if err := os.MkdirAll(e.CacheDir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(e.CacheDir, ".grove-*")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(compiled); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), e.cachePath(name)); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

// CompileString compiles a single template source with the engine's mode,
// without loading it into the engine.
func (e *Engine) CompileString(name, src string) (string, error) {
	return compiler.Compile(src, name, compiler.Options{Mode: e.Mode})
}

// Render executes the template identified by name (e.g. "pages/home") into
// w with data, following the layout chain the template extends. A fresh
// render state is built per call, so concurrent renders never share
// anything but the parsed templates.
func (e *Engine) Render(ctx context.Context, w io.Writer, name string, data any, opts ...RenderOption) error {
	name = normalizeName(name)
	ctx, span := tracer.Start(ctx, "grove.render",
		trace.WithAttributes(attribute.String("grove.template", name)))
	defer span.End()

	st := runtime.NewState()
	for _, opt := range opts {
		opt(st)
	}
	st.SetResolver(func(c runtime.Ctx, path string) error {
		return e.resolveFragments(ctx, normalizeName(path), c, st)
	})

	c := runtime.NewCtx(data, st)
	out, err := e.executeTemplate(name, c, st)

	// Each body in the chain may declare a layout; render it with the same
	// state so the sections the body registered are in scope, and keep
	// only the outermost output.
	for err == nil {
		layout, ok := st.TakeLayout()
		if !ok {
			break
		}
		_, lspan := tracer.Start(ctx, "grove.layout",
			trace.WithAttributes(attribute.String("grove.template", layout)))
		out, err = e.executeTemplate(normalizeName(layout), c, st)
		lspan.End()
	}

	if err != nil {
		span.RecordError(err)
		logger(ctx).Error("render failed", "template", name, "error", err)
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

// lookup returns a loaded template by name.
func (e *Engine) lookup(name string) (*template.Template, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.templates[name]
	return t, ok
}

// executeTemplate runs one template to a string with its own define-block
// executor installed, restoring the previous executor afterwards so a
// nested execution does not redirect the enclosing template's define
// lookups.
func (e *Engine) executeTemplate(name string, c runtime.Ctx, st *runtime.State) (string, error) {
	tmpl, ok := e.lookup(name)
	if !ok {
		return "", fmt.Errorf("[%s] %w", name, ErrTemplateNotFound)
	}

	exec := func(define string, dc runtime.Ctx) (string, error) {
		var sb strings.Builder
		if err := tmpl.ExecuteTemplate(&sb, define, dc); err != nil {
			return "", err
		}
		return sb.String(), nil
	}
	prev := st.SwapExecutor(exec)
	defer st.SwapExecutor(prev)

	var sb strings.Builder
	if err := tmpl.Execute(&sb, c); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// resolveFragments executes another template registration-only so its
// fragments become available to the caller. Section and layout effects are
// discarded, and a missing template is a miss rather than an error.
func (e *Engine) resolveFragments(ctx context.Context, name string, c runtime.Ctx, st *runtime.State) error {
	restore := st.BeginResolve()
	defer restore()

	_, err := e.executeTemplate(name, c, st)
	if errors.Is(err, ErrTemplateNotFound) {
		logger(ctx).Debug("fragment template not found", "template", name)
		return nil
	}
	return err
}

// GetDebugTemplates returns a map of all loaded templates and their
// compiled source.
func (e *Engine) GetDebugTemplates() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]string, len(e.debugTemplates))
	for k, v := range e.debugTemplates {
		out[k] = v
	}
	return out
}

// nameFromPath converts a filesystem path to a template name, relative to
// the engine dir.
func (e *Engine) nameFromPath(path string) string {
	rel, err := filepath.Rel(e.dirPrefix, path)
	if err != nil {
		return filepath.Base(path)
	}
	rel = filepath.ToSlash(rel)
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return normalizeName(rel)
}

// normalizeName strips quotes, spaces and a file extension from a template
// reference and normalizes slashes.
func normalizeName(n string) string {
	n = strings.TrimSpace(n)
	n = strings.Trim(n, `"' `)
	n = strings.TrimSuffix(n, filepath.Ext(n))
	n = filepath.ToSlash(n)
	return n
}
