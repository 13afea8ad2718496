package runtime

import (
	"maps"
	"sort"
)

// ExecFunc executes a named define block of the current template against a
// render context and returns its output. The engine installs one after
// parsing the compiled source.
type ExecFunc func(define string, c Ctx) (string, error)

// ResolveFunc loads another template by path and runs it in registration
// mode so its fragments land in the shared State. Installed by the engine;
// absence of the template must not error, fragment lookups simply miss.
type ResolveFunc func(c Ctx, path string) error

type sectionFn func() (string, error)

type fragment struct {
	params []string
	define string
	ctx    Ctx
	exec   ExecFunc
}

// State is the per-render context shared across a layout chain: fragment
// and section registries, the pending layout, validation errors, and the
// csrf/session hooks. Build a fresh one per render; it is not safe for
// concurrent use.
type State struct {
	layout    string
	sections  map[string]sectionFn
	fragments map[string]*fragment
	errors    map[string][]string
	tokenFn   func() string
	session   map[string]any
	exec      ExecFunc
	resolve   ResolveFunc
	resolved  map[string]bool
}

// NewState returns an empty render state.
func NewState() *State {
	return &State{
		sections:  make(map[string]sectionFn),
		fragments: make(map[string]*fragment),
		resolved:  make(map[string]bool),
	}
}

// SetExecutor installs the define-block executor for the template being
// rendered.
func (s *State) SetExecutor(fn ExecFunc) { s.exec = fn }

// SwapExecutor installs fn and returns the previous executor so nested
// executions can restore it when they finish.
func (s *State) SwapExecutor(fn ExecFunc) ExecFunc {
	prev := s.exec
	s.exec = fn
	return prev
}

// SetResolver installs the cross-template fragment loader.
func (s *State) SetResolver(fn ResolveFunc) { s.resolve = fn }

// SetErrors installs the validation errors map consulted by error
// directives. It takes precedence over session errors.
func (s *State) SetErrors(m map[string][]string) { s.errors = m }

// SetTokenFunc installs the csrf token source.
func (s *State) SetTokenFunc(fn func() string) { s.tokenFn = fn }

// SetSession installs the session fallback consulted for csrf tokens and
// validation errors when no explicit source is set.
func (s *State) SetSession(m map[string]any) { s.session = m }

// Session returns the session fallback map, possibly nil.
func (s *State) Session() map[string]any { return s.session }

// SetLayout records the layout template the current body extends. The last
// call wins.
func (s *State) SetLayout(path string) { s.layout = path }

// BeginResolve prepares the state for a registration-only execution of
// another template and returns the restore func. Fragment registrations
// persist; section registrations and layout changes made while resolving
// are discarded on restore.
func (s *State) BeginResolve() (restore func()) {
	layout := s.layout
	sections := s.sections
	s.sections = maps.Clone(sections)
	return func() {
		s.sections = sections
		s.layout = layout
	}
}

// TakeLayout returns and clears the pending layout. The engine calls it
// after each body in the layout chain.
func (s *State) TakeLayout() (string, bool) {
	l := s.layout
	s.layout = ""
	return l, l != ""
}

// Token returns the csrf token, trying the token func, the render data, and
// the session in that order. Empty means no source produced one.
func (s *State) Token(c Ctx) string {
	if s.tokenFn != nil {
		if t := s.tokenFn(); t != "" {
			return t
		}
	}
	if t := Str(c.Scope.Lookup("csrf_token")); t != "" {
		return t
	}
	if s.session != nil {
		if t := Str(s.session["csrf_token"]); t != "" {
			return t
		}
	}
	return ""
}

// fieldErrors returns the messages for one field, or every message in
// field order when field is empty. The explicit errors map wins over the
// session's.
func (s *State) fieldErrors(field string) []string {
	src := s.errors
	if len(src) == 0 {
		src = sessionErrors(s.session)
	}
	if len(src) == 0 {
		return nil
	}
	if field != "" {
		return src[field]
	}
	fields := make([]string, 0, len(src))
	for f := range src {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	var all []string
	for _, f := range fields {
		all = append(all, src[f]...)
	}
	return all
}

// sessionErrors coerces the common shapes an "errors" session value takes.
func sessionErrors(session map[string]any) map[string][]string {
	if session == nil {
		return nil
	}
	switch v := session["errors"].(type) {
	case map[string][]string:
		return v
	case map[string]string:
		out := make(map[string][]string, len(v))
		for k, msg := range v {
			out[k] = []string{msg}
		}
		return out
	case map[string]any:
		out := make(map[string][]string, len(v))
		for k, raw := range v {
			switch m := raw.(type) {
			case string:
				out[k] = []string{m}
			case []string:
				out[k] = m
			case []any:
				for _, e := range m {
					out[k] = append(out[k], Str(e))
				}
			}
		}
		return out
	}
	return nil
}
