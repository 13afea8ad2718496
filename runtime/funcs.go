// Package runtime is the render-time half of the compiler: the context
// object compiled templates execute against and the func map their
// generated actions call. Lookups, comparisons, and arithmetic all degrade
// to absence rather than returning errors, so a rendered page never fails
// on missing data.
package runtime

import (
	"html"
	"reflect"
	"sort"
	"strings"
	"text/template"
)

// Ctx is the dot value of every compiled template: the scope chain the
// expression lookups read and the shared per-render State. Loop and with
// constructs derive child contexts; the State pointer is carried through
// unchanged.
type Ctx struct {
	Scope *Scope
	State *State
}

// NewCtx builds the root context for one render.
func NewCtx(data any, st *State) Ctx {
	return Ctx{Scope: NewScope(data), State: st}
}

func (c Ctx) child(sc *Scope) Ctx {
	return Ctx{Scope: sc, State: c.State}
}

// Funcs returns the func map compiled templates are parsed with. It is
// stateless; all per-render state travels on the Ctx dot.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"path":   func(c Ctx, p string) any { return c.Scope.Lookup(p) },
		"null":   func() any { return nil },
		"truthy": Truthy,
		"str":    Str,
		"esc":    Escape,

		"seq": Equal,
		"sne": func(a, b any) bool { return !Equal(a, b) },
		"slt": Less,
		"sle": func(a, b any) bool { return Less(a, b) || Equal(a, b) },
		"sgt": func(a, b any) bool { return Less(b, a) },
		"sge": func(a, b any) bool { return Less(b, a) || Equal(a, b) },

		"add": Add,
		"sub": Sub,
		"mul": Mul,
		"div": Div,
		"mod": Mod,

		"iter": iterate,
		"bind": func(c Ctx, name string, v any) Ctx {
			return c.child(c.Scope.Bind(name, v))
		},

		"extend":       extendFn,
		"section":      registerSection,
		"yieldSection": yieldSection,
		"fragdef":      fragdef,
		"frag":         frag,

		"csrfField":    csrfField,
		"methodVerb":   methodVerb,
		"methodSpoof":  methodSpoof,
		"fieldChecked": fieldChecked,
		"fieldSel":     fieldSel,
		"hasErrors":    hasErrors,
		"errorList":    errorList,
	}
}

// iterate builds the per-element contexts a range action walks. Slices and
// arrays bind the index to the key name, maps bind the key and visit keys
// in sorted order so output is deterministic. Anything non-iterable yields
// no elements.
func iterate(c Ctx, keyName, itemName string, src any) []Ctx {
	if src == nil {
		return nil
	}
	rv := reflect.ValueOf(src)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	push := func(out []Ctx, key, item any) []Ctx {
		sc := c.Scope.Child()
		if keyName != "" {
			sc.Set(keyName, key)
		}
		sc.Set(itemName, item)
		return append(out, c.child(sc))
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]Ctx, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out = push(out, i, rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return lessKey(keys[i].Interface(), keys[j].Interface())
		})
		out := make([]Ctx, 0, len(keys))
		for _, k := range keys {
			out = push(out, k.Interface(), rv.MapIndex(k).Interface())
		}
		return out
	}
	return nil
}

func lessKey(a, b any) bool {
	af, _, aok := toNumber(a)
	bf, _, bok := toNumber(b)
	if aok && bok {
		return af < bf
	}
	return Str(a) < Str(b)
}

func extendFn(c Ctx, path string) string {
	if c.State != nil {
		c.State.SetLayout(path)
	}
	return ""
}

// registerSection records a section body. The executor is captured at
// registration time, so a layout rendered later still runs the define block
// of the template that declared the section.
func registerSection(c Ctx, name, define string) string {
	if c.State == nil || c.State.exec == nil {
		return ""
	}
	exec := c.State.exec
	c.State.sections[name] = func() (string, error) {
		return exec(define, c)
	}
	return ""
}

// yieldSection splices a registered section, or the optional default when
// none was registered. Section output is already rendered markup and is
// spliced raw.
func yieldSection(c Ctx, name string, def ...any) (string, error) {
	if c.State != nil {
		if fn, ok := c.State.sections[name]; ok {
			return fn()
		}
	}
	if len(def) > 0 {
		return Str(def[0]), nil
	}
	return "", nil
}

// fragdef registers a fragment definition. Redeclaring a name overwrites
// the earlier definition. Definitions produce no output where they appear.
func fragdef(c Ctx, name, params, define string) string {
	if c.State == nil || c.State.exec == nil {
		return ""
	}
	var ps []string
	if params != "" {
		for _, p := range strings.Split(params, ",") {
			ps = append(ps, strings.TrimSpace(p))
		}
	}
	c.State.fragments[name] = &fragment{
		params: ps,
		define: define,
		ctx:    c,
		exec:   c.State.exec,
	}
	return ""
}

// frag invokes a fragment. A non-empty path first resolves the referenced
// template in registration mode so its fragments are available; an
// unregistered name renders nothing. Arguments bind positionally over the
// fragment's registration scope; missing arguments bind to absence.
func frag(c Ctx, path, name string, args ...any) (string, error) {
	if c.State == nil {
		return "", nil
	}
	if path != "" && !c.State.resolved[path] {
		c.State.resolved[path] = true
		if c.State.resolve != nil {
			if err := c.State.resolve(c, path); err != nil {
				return "", err
			}
		}
	}
	f, ok := c.State.fragments[name]
	if !ok || f.exec == nil {
		return "", nil
	}
	sc := f.ctx.Scope.Child()
	for i, p := range f.params {
		if i < len(args) {
			sc.Set(p, args[i])
		} else {
			sc.Set(p, nil)
		}
	}
	return f.exec(f.define, f.ctx.child(sc))
}

func csrfField(c Ctx) string {
	if c.State == nil {
		return ""
	}
	token := c.State.Token(c)
	if token == "" {
		return ""
	}
	return `<input type="hidden" name="_token" value="` + html.EscapeString(token) + `">`
}

// methodVerb is the value of a form's method attribute: GET and POST pass
// through, spoofed verbs submit as POST.
func methodVerb(v any) string {
	verb := strings.ToUpper(Str(v))
	switch verb {
	case "GET", "POST":
		return verb
	case "":
		return "POST"
	}
	return "POST"
}

// methodSpoof emits the hidden override input for verbs HTML forms cannot
// submit natively.
func methodSpoof(v any) string {
	verb := strings.ToUpper(Str(v))
	switch verb {
	case "PUT", "PATCH", "DELETE":
		return `<input type="hidden" name="_method" value="` + verb + `">`
	}
	return ""
}

// fieldChecked decides a checkbox or radio's checked state: equality with
// the static value attribute when one was present, truthiness of the bound
// value otherwise.
func fieldChecked(c Ctx, path string, static ...any) bool {
	v := c.Scope.Lookup(path)
	if len(static) > 0 {
		return Equal(v, static[0])
	}
	return Truthy(v)
}

// fieldSel decides an option's selected state by string equality with the
// bound value.
func fieldSel(c Ctx, path string, opt any) bool {
	v := c.Scope.Lookup(path)
	if v == nil {
		return false
	}
	return Str(v) == Str(opt)
}

func hasErrors(c Ctx, field string) bool {
	if c.State == nil {
		return false
	}
	return len(c.State.fieldErrors(field)) > 0
}

// errorList renders a field's messages (or all messages for the empty
// field) escaped and joined with <br>.
func errorList(c Ctx, field string) string {
	if c.State == nil {
		return ""
	}
	msgs := c.State.fieldErrors(field)
	if len(msgs) == 0 {
		return ""
	}
	parts := make([]string, len(msgs))
	for i, m := range msgs {
		parts[i] = html.EscapeString(m)
	}
	return strings.Join(parts, "<br>")
}
