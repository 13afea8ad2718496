package grove

import "github.com/dangdungcntt/go-grove/runtime"

// RenderOption configures one Render call.
type RenderOption func(*runtime.State)

// WithErrors supplies the validation errors consulted by error directives,
// keyed by field name.
func WithErrors(errs map[string][]string) RenderOption {
	return func(s *runtime.State) { s.SetErrors(errs) }
}

// WithTokenFunc supplies the csrf token source for csrf directives.
func WithTokenFunc(fn func() string) RenderOption {
	return func(s *runtime.State) { s.SetTokenFunc(fn) }
}

// WithSession supplies a session map. Csrf tokens and validation errors
// fall back to its "csrf_token" and "errors" entries when no explicit
// source is set.
func WithSession(session map[string]any) RenderOption {
	return func(s *runtime.State) { s.SetSession(session) }
}
