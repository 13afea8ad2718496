package compiler

import (
	"strings"
	"testing"
	"text/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dangdungcntt/go-grove/runtime"
)

func compileStrict(t *testing.T, src string) string {
	t.Helper()
	out, err := Compile(src, "test.grove", Options{})
	require.NoError(t, err)
	return out
}

func compilePermissive(t *testing.T, src string) string {
	t.Helper()
	out, err := Compile(src, "test.grove", Options{Mode: Permissive})
	require.NoError(t, err)
	return out
}

// render compiles src, parses the result as a text/template, and executes
// it with a root context. The define executor is installed so sections and
// fragments work end to end.
func render(t *testing.T, src string, data any) string {
	t.Helper()
	out, _ := renderState(t, src, data, runtime.NewState())
	return out
}

func renderState(t *testing.T, src string, data any, st *runtime.State) (string, *runtime.State) {
	t.Helper()
	compiled := compileStrict(t, src)
	tpl, err := template.New("test.grove").Funcs(runtime.Funcs()).Parse(compiled)
	require.NoError(t, err, "compiled source must parse: %s", compiled)
	st.SetExecutor(func(define string, c runtime.Ctx) (string, error) {
		var sb strings.Builder
		if err := tpl.ExecuteTemplate(&sb, define, c); err != nil {
			return "", err
		}
		return sb.String(), nil
	})
	var sb strings.Builder
	require.NoError(t, tpl.Execute(&sb, runtime.NewCtx(data, st)))
	return sb.String(), st
}

func TestCompileShapes(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			"if wraps element",
			`<p if="ok">hi</p>`,
			`{{if (truthy (path . "ok"))}}<p>hi</p>{{end}}`,
		},
		{
			"unless negates",
			`<p unless="hidden">hi</p>`,
			`{{if (not (truthy (path . "hidden")))}}<p>hi</p>{{end}}`,
		},
		{
			"if and unless conjoin",
			`<p if="a" unless="b">x</p>`,
			`{{if (and (truthy (path . "a")) (not (truthy (path . "b"))))}}<p>x</p>{{end}}`,
		},
		{
			"repeat item form",
			`<li repeat="item items">{item}</li>`,
			`{{range iter . "" "item" (path . "items")}}<li>{{(esc (path . "item"))}}</li>{{end}}`,
		},
		{
			"repeat key item form",
			`<li repeat="i, item items">{i}</li>`,
			`{{range iter . "i" "item" (path . "items")}}<li>{{(esc (path . "i"))}}</li>{{end}}`,
		},
		{
			"switch builds clause chain",
			`<div switch="status"><p case="active">A</p><p case="2">B</p><p default>D</p></div>`,
			`<div>{{if (seq (path . "status") "active")}}<p>A</p>{{else if (seq (path . "status") 2)}}<p>B</p>{{else}}<p>D</p>{{end}}</div>`,
		},
		{
			"switch lone default renders bare",
			`<div switch="x"><p default>D</p></div>`,
			`<div><p>D</p></div>`,
		},
		{
			"switch drops nodes inside the span keeps outside",
			`<div switch="s">keep<p case="1">A</p><span>drop</span><p default>D</p>tail</div>`,
			`<div>keep{{if (seq (path . "s") 1)}}<p>A</p>{{else}}<p>D</p>{{end}}tail</div>`,
		},
		{
			"extend swallows element and hoists children",
			`<template extend="layouts/app"><p>body</p></template>`,
			`{{extend . "layouts/app"}}<p>body</p>`,
		},
		{
			"section extracts into define",
			`<div section="content">Hi</div>`,
			`{{section . "content" "grove:sec:content:1"}}{{define "grove:sec:content:1"}}<div>Hi</div>{{end}}`,
		},
		{
			"section under if registers conditionally",
			`<div if="show" section="s">S</div>`,
			`{{if (truthy (path . "show"))}}{{section . "s" "grove:sec:s:1"}}{{end}}{{define "grove:sec:s:1"}}<div>S</div>{{end}}`,
		},
		{
			"yield replaces content",
			`<main yield="content">old</main>`,
			`<main>{{yieldSection . "content"}}</main>`,
		},
		{
			"yield with default",
			`<title yield="title, 'Untitled'"></title>`,
			`<title>{{yieldSection . "title" "Untitled"}}</title>`,
		},
		{
			"fragment extracts into define",
			`<div fragment="card(u)">{u.name}</div>`,
			`{{fragdef . "card" "u" "grove:frag:card:1"}}{{define "grove:frag:card:1"}}<div>{{(esc (path . "u.name"))}}</div>{{end}}`,
		},
		{
			"include fills element",
			`<div include="card(user)"></div>`,
			`<div>{{frag . "" "card" (path . "user")}}</div>`,
		},
		{
			"replace swaps element",
			`<div replace="card(user)"></div>`,
			`{{frag . "" "card" (path . "user")}}`,
		},
		{
			"replace with template path",
			`<div replace="'shared/cards' :: card(user.id, 3)"></div>`,
			`{{frag . "shared/cards" "card" (path . "user.id") 3}}`,
		},
		{
			"text replaces content escaped",
			`<span text="user.name">placeholder</span>`,
			`<span>{{(esc (path . "user.name"))}}</span>`,
		},
		{
			"include discards authored children unprocessed",
			`<div include="card()"><p if="y">{z}</p></div>`,
			`<div>{{frag . "" "card"}}</div>`,
		},
		{
			"replace discards the whole subtree",
			`<div replace="card()"><p>{z}</p></div>`,
			`{{frag . "" "card"}}`,
		},
		{
			"with wraps children in bindings",
			`<div with="total = price * qty">{total}</div>`,
			`<div>{{with bind . "total" (mul (path . "price") (path . "qty"))}}{{(esc (path . "total"))}}{{end}}</div>`,
		},
		{
			"with binds left to right",
			`<div with="a = 1, b = a + 1">{b}</div>`,
			`<div>{{with bind . "a" 1}}{{with bind . "b" (add (path . "a") 1)}}{{(esc (path . "b"))}}{{end}}{{end}}</div>`,
		},
		{
			"attr sets attributes",
			`<div attr="data-id = user.id">x</div>`,
			`<div data-id="{{(esc (path . "user.id"))}}">x</div>`,
		},
		{
			"bound attribute sets from one expression",
			`<div :class="user.theme">x</div>`,
			`<div class="{{(esc (path . "user.theme"))}}">x</div>`,
		},
		{
			"bound attribute overwrites static in place",
			`<a href="/static" :href="url" class="x">y</a>`,
			`<a href="{{(esc (path . "url"))}}" class="x">y</a>`,
		},
		{
			"bound attribute beside interpolation",
			`<img :src="img.url" alt="{img.alt} photo">`,
			`<img src="{{(esc (path . "img.url"))}}" alt="{{(esc (path . "img.alt"))}} photo">`,
		},
		{
			"field text input",
			`<input field="user.email">`,
			`<input name="user.email" id="user-email" value="{{esc (path . "user.email")}}">`,
		},
		{
			"field checkbox",
			`<input type="checkbox" field="agree">`,
			`<input type="checkbox" name="agree" id="agree"{{if (fieldChecked . "agree")}} checked{{end}}>`,
		},
		{
			"field radio with value",
			`<input type="radio" field="plan" value="pro">`,
			`<input type="radio" value="pro" name="plan" id="plan"{{if (fieldChecked . "plan" "pro")}} checked{{end}}>`,
		},
		{
			"field textarea",
			`<textarea field="bio">old</textarea>`,
			`<textarea name="bio" id="bio">{{esc (path . "bio")}}</textarea>`,
		},
		{
			"field select marks options",
			`<select field="color"><option value="red">Red</option><option>blue</option></select>`,
			`<select name="color" id="color"><option value="red"{{if (fieldSel . "color" "red")}} selected{{end}}>Red</option><option{{if (fieldSel . "color" "blue")}} selected{{end}}>blue</option></select>`,
		},
		{
			"field select skips dynamic options",
			`<select field="color"><option value="red">R</option><option :value="c.v">{c.n}</option></select>`,
			`<select name="color" id="color"><option value="red"{{if (fieldSel . "color" "red")}} selected{{end}}>R</option><option value="{{(esc (path . "c.v"))}}">{{(esc (path . "c.n"))}}</option></select>`,
		},
		{
			"errors empty element gets message list",
			`<div errors="email"></div>`,
			`{{if (hasErrors . "email")}}<div>{{errorList . "email"}}</div>{{end}}`,
		},
		{
			"errors with content keeps it",
			`<div errors="email"><b>bad</b></div>`,
			`{{if (hasErrors . "email")}}<div><b>bad</b></div>{{end}}`,
		},
		{
			"csrf token is first child after method spoof",
			`<form csrf method="delete"><input></form>`,
			`<form method="POST">{{csrfField .}}<input type="hidden" name="_method" value="DELETE"><input></form>`,
		},
		{
			"method get sets attribute directly",
			`<form method="get"></form>`,
			`<form method="GET"></form>`,
		},
		{
			"method from expression defers to render",
			`<form method="{form.method}"></form>`,
			`<form method="{{methodVerb (path . "form.method")}}">{{methodSpoof (path . "form.method")}}</form>`,
		},
		{
			"text interpolation",
			`<p>Hello {user.name}!</p>`,
			`<p>Hello {{(esc (path . "user.name"))}}!</p>`,
		},
		{
			"attribute interpolation",
			`<a href="/u/{user.id}" title="plain">x</a>`,
			`<a href="/u/{{(esc (path . "user.id"))}}" title="plain">x</a>`,
		},
		{
			"escaped brace stays literal",
			`<p>\{user.name}</p>`,
			`<p>{user.name}</p>`,
		},
		{
			"unclosed brace stays literal",
			`<p>a { b</p>`,
			`<p>a { b</p>`,
		},
		{
			"authored action delimiters neutralized",
			`<p>use {{ carefully</p>`,
			`<p>use {{"{{"}} carefully</p>`,
		},
		{
			"case bare identifier matches string",
			`<div switch="role"><p case="admin">A</p></div>`,
			`<div>{{if (seq (path . "role") "admin")}}<p>A</p>{{end}}</div>`,
		},
		{
			"case path expression looks up",
			`<div switch="role"><p case="roles.admin">A</p></div>`,
			`<div>{{if (seq (path . "role") (path . "roles.admin"))}}<p>A</p>{{end}}</div>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, compileStrict(t, tt.src))
		})
	}
}

func TestCompileRoundTripsStaticMarkup(t *testing.T) {
	src := "<!DOCTYPE html>\n<HTML lang=en>\n  <body class='x'  >\n<p>hi &amp; <b>bold</b></p>\n<!-- note -->\n</body>\n</HTML>\n"
	assert.Equal(t, src, compileStrict(t, src))
}

func TestCompileStripsDirectiveAttributes(t *testing.T) {
	src := `<div if="a"><p repeat="x xs" class="row">{x}</p><span text="b">t</span></div>`
	out := compileStrict(t, src)
	for _, name := range Directives() {
		assert.NotContains(t, out, name+"=", "directive %q must not survive compilation", name)
	}
	assert.Contains(t, out, `class="row"`)
}

func TestCompileNestedStructures(t *testing.T) {
	src := `<ul if="items"><li repeat="i, item items"><span if="item.on">{i}: {item.label}</span></li></ul>`
	want := `{{if (truthy (path . "items"))}}<ul>` +
		`{{range iter . "i" "item" (path . "items")}}<li>` +
		`{{if (truthy (path . "item.on"))}}<span>{{(esc (path . "i"))}}: {{(esc (path . "item.label"))}}</span>{{end}}` +
		`</li>{{end}}</ul>{{end}}`
	assert.Equal(t, want, compileStrict(t, src))
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		kind      Kind
		directive string
	}{
		{"conflicting structural", `<p if="a" repeat="x xs">y</p>`, KindStructural, "repeat+if"},
		{"malformed repeat", `<p repeat="###">y</p>`, KindStructural, "repeat"},
		{"switch without clauses", `<div switch="x"><p>stray</p></div>`, KindStructural, "switch"},
		{"multiple defaults", `<div switch="x"><p default>a</p><p default>b</p></div>`, KindStructural, "default"},
		{"section and fragment together", `<div section="a" fragment="b">x</div>`, KindSyntax, "section+fragment"},
		{"bad if expression", `<p if="a &&">y</p>`, KindSyntax, "if"},
		{"bad interpolation", `<p>{user..name}</p>`, KindSyntax, "interpolation"},
		{"method on non-form", `<div method="post">x</div>`, KindStructural, "method"},
		{"unknown method verb", `<form method="teleport"></form>`, KindSyntax, "method"},
		{"field wants a path", `<input field="a + b">`, KindSyntax, "field"},
		{"extend without path", `<template extend="">x</template>`, KindSyntax, "extend"},
		{"malformed with", `<div with="nonsense">x</div>`, KindStructural, "with"},
		{"bad bound attribute expression", `<p :class="a &&">y</p>`, KindSyntax, ":class"},
		{"bad bound attribute name", `<p :9lives="x">y</p>`, KindSyntax, ":9lives"},
		{"bad fragment reference", `<div include="not a name()">x</div>`, KindSyntax, "include"},
		{"conflicting content directives", `<div include="a()" text="b">x</div>`, KindStructural, "include+text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.src, "bad.grove", Options{})
			require.Error(t, err)
			var cerr *Error
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.kind, cerr.Kind)
			assert.Equal(t, "bad.grove", cerr.Template)
			assert.Equal(t, tt.directive, cerr.Directive)
		})
	}
}

func TestCompilePermissiveDegradation(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			"malformed repeat drops element",
			`<p>a</p><p repeat="###">b</p><p>c</p>`,
			`<p>a</p><p>c</p>`,
		},
		{
			"switch without clauses renders empty",
			`<div switch="x"><p>stray</p></div>`,
			`<div></div>`,
		},
		{
			"conflicting structural keeps highest priority",
			`<p if="a" repeat="x xs">y</p>`,
			`{{range iter . "" "x" (path . "xs")}}<p>y</p>{{end}}`,
		},
		{
			"switch beats repeat and if",
			`<div switch="s" repeat="x xs" if="a"><p case="1">A</p></div>`,
			`<div>{{if (seq (path . "s") 1)}}<p>A</p>{{end}}</div>`,
		},
		{
			"malformed with drops directive",
			`<div with="nonsense">x</div>`,
			`<div>x</div>`,
		},
		{
			"malformed attr drops directive",
			`<div attr="nonsense">x</div>`,
			`<div>x</div>`,
		},
		{
			"malformed bound attribute drops binding",
			`<p :class="a &&" id="k">y</p>`,
			`<p id="k">y</p>`,
		},
		{
			"non-parsing interpolation stays literal",
			`<p>{user..name}</p>`,
			`<p>{user..name}</p>`,
		},
		{
			"extra default drops",
			`<div switch="x"><p case="1">A</p><p default>D</p><p default>E</p></div>`,
			`<div>{{if (seq (path . "x") 1)}}<p>A</p>{{else}}<p>D</p>{{end}}</div>`,
		},
		{
			"method on non-form ignored",
			`<div method="post">x</div>`,
			`<div>x</div>`,
		},
		{
			"content conflict keeps the higher priority directive",
			`<div include="a()" text="b">x</div>`,
			`<div>{{frag . "" "a"}}</div>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, compilePermissive(t, tt.src))
		})
	}
}

func TestRenderConditionals(t *testing.T) {
	src := `<p if="ok">yes</p><p unless="ok">no</p>`
	assert.Equal(t, `<p>yes</p>`, render(t, src, map[string]any{"ok": true}))
	assert.Equal(t, `<p>no</p>`, render(t, src, map[string]any{"ok": false}))
	assert.Equal(t, `<p>no</p>`, render(t, src, map[string]any{}))
}

func TestRenderRepeat(t *testing.T) {
	src := `<ul><li repeat="i, item items">{i}:{item}</li></ul>`
	got := render(t, src, map[string]any{"items": []any{"a", "b"}})
	assert.Equal(t, `<ul><li>0:a</li><li>1:b</li></ul>`, got)

	got = render(t, src, map[string]any{})
	assert.Equal(t, `<ul></ul>`, got)
}

func TestRenderRepeatMapSortedKeys(t *testing.T) {
	src := `<li repeat="k, v m">{k}={v}</li>`
	got := render(t, src, map[string]any{"m": map[string]any{"b": 2, "a": 1}})
	assert.Equal(t, `<li>a=1</li><li>b=2</li>`, got)
}

func TestRenderSwitch(t *testing.T) {
	src := `<div switch="status"><span case="active">on</span><span case="2">two</span><span default>other</span></div>`
	assert.Equal(t, `<div><span>on</span></div>`, render(t, src, map[string]any{"status": "active"}))
	assert.Equal(t, `<div><span>two</span></div>`, render(t, src, map[string]any{"status": 2}))
	assert.Equal(t, `<div><span>other</span></div>`, render(t, src, map[string]any{"status": "gone"}))
}

func TestRenderSectionAndYield(t *testing.T) {
	src := `<div section="s">Hi</div><main yield="s"></main><p yield="missing, 'fallback'"></p>`
	got := render(t, src, map[string]any{})
	assert.Equal(t, `<main><div>Hi</div></main><p>fallback</p>`, got)
}

func TestRenderFragment(t *testing.T) {
	src := `<div fragment="greet(name)">Hello {name}!</div><p include="greet('Ann')"></p>`
	assert.Equal(t, `<p><div>Hello Ann!</div></p>`, render(t, src, map[string]any{}))
}

func TestRenderFragmentMissingArgsAndName(t *testing.T) {
	src := `<div fragment="greet(name)">Hi {name}.</div><p include="greet()"></p><p include="nope()"></p>`
	assert.Equal(t, `<p><div>Hi .</div></p><p></p>`, render(t, src, map[string]any{}))
}

func TestRenderExtendRecordsLayout(t *testing.T) {
	src := `<template extend="layouts/app"><div section="content">Body</div></template>`
	st := runtime.NewState()
	out, _ := renderState(t, src, map[string]any{}, st)
	assert.Equal(t, "", out)
	layout, ok := st.TakeLayout()
	require.True(t, ok)
	assert.Equal(t, "layouts/app", layout)
}

func TestRenderInterpolationEscapes(t *testing.T) {
	src := `<p>{user.name}</p>`
	got := render(t, src, map[string]any{"user": map[string]any{"name": "<b>"}})
	assert.Equal(t, `<p>&lt;b&gt;</p>`, got)
}

func TestRenderBraceEdgeCases(t *testing.T) {
	tests := []struct {
		name string
		src  string
		data map[string]any
		want string
	}{
		{"escaped brace", `<p>\{x}</p>`, nil, `<p>{x}</p>`},
		{"lone brace", `<p>a { b</p>`, nil, `<p>a { b</p>`},
		{"authored double brace", `<p>use {{ carefully</p>`, nil, `<p>use {{ carefully</p>`},
		{"double-braced expression", `<p>{{x}}</p>`, map[string]any{"x": "v"}, `<p>{v}</p>`},
		{"brace before expression", `<p>{ {x}</p>`, map[string]any{"x": "v"}, `<p>{ v</p>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, render(t, tt.src, tt.data))
		})
	}
}

func TestRenderFieldBinding(t *testing.T) {
	data := map[string]any{"user": map[string]any{"email": "a@b.c"}, "agree": true, "color": "blue"}

	got := render(t, `<input field="user.email">`, data)
	assert.Equal(t, `<input name="user.email" id="user-email" value="a@b.c">`, got)

	got = render(t, `<input type="checkbox" field="agree">`, data)
	assert.Equal(t, `<input type="checkbox" name="agree" id="agree" checked>`, got)

	got = render(t, `<select field="color"><option value="red">R</option><option value="blue">B</option></select>`, data)
	assert.Equal(t, `<select name="color" id="color"><option value="red">R</option><option value="blue" selected>B</option></select>`, got)
}

func TestRenderBoundAttributes(t *testing.T) {
	src := `<a :href="url" :data-id="id" class="btn">go</a>`
	got := render(t, src, map[string]any{"url": "/u/7?a=1", "id": 7})
	assert.Equal(t, `<a href="/u/7?a=1" data-id="7" class="btn">go</a>`, got)
}

func TestRenderValidationErrors(t *testing.T) {
	src := `<div errors="email"></div><span errors="name">bad name</span>`
	st := runtime.NewState()
	st.SetErrors(map[string][]string{"email": {"taken", "too long"}})
	out, _ := renderState(t, src, map[string]any{}, st)
	assert.Equal(t, `<div>taken<br>too long</div>`, out)
}

func TestRenderCsrfAndMethod(t *testing.T) {
	src := `<form csrf method="delete"><button>go</button></form>`
	st := runtime.NewState()
	st.SetTokenFunc(func() string { return "tok123" })
	out, _ := renderState(t, src, map[string]any{}, st)
	want := `<form method="POST">` +
		`<input type="hidden" name="_token" value="tok123">` +
		`<input type="hidden" name="_method" value="DELETE">` +
		`<button>go</button></form>`
	assert.Equal(t, want, out)
}

func TestRenderWithBindingsShadow(t *testing.T) {
	src := `<div with="n = user.name, loud = n + '!'">{loud}</div>`
	got := render(t, src, map[string]any{"user": map[string]any{"name": "Ann"}})
	assert.Equal(t, `<div>Ann!</div>`, got)
}

func TestRenderArithmeticAndComparisons(t *testing.T) {
	src := `<p if="qty > 0">total: {price * qty}</p>`
	got := render(t, src, map[string]any{"price": 3, "qty": 4})
	assert.Equal(t, `<p>total: 12</p>`, got)

	got = render(t, src, map[string]any{"price": 3, "qty": 0})
	assert.Equal(t, ``, got)
}

func TestRenderScriptContentNotInterpolated(t *testing.T) {
	src := `<script>if (a) { b(); }</script><p>{x}</p>`
	got := render(t, src, map[string]any{"x": "v"})
	assert.Equal(t, `<script>if (a) { b(); }</script><p>v</p>`, got)
}
