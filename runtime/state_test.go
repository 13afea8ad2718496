package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenEmptyFuncFallsThrough(t *testing.T) {
	st := NewState()
	st.SetTokenFunc(func() string { return "" })
	st.SetSession(map[string]any{"csrf_token": "sess"})

	assert.Equal(t, "sess", st.Token(NewCtx(nil, st)))
	assert.Equal(t, "data", st.Token(NewCtx(map[string]any{"csrf_token": "data"}, st)))

	st.SetSession(nil)
	assert.Empty(t, st.Token(NewCtx(nil, st)))
}

func TestBeginResolveIsolation(t *testing.T) {
	st := NewState()
	st.sections["outer"] = func() (string, error) { return "outer", nil }
	st.SetLayout("layouts/app")

	restore := st.BeginResolve()
	st.sections["inner"] = func() (string, error) { return "inner", nil }
	st.fragments["card"] = &fragment{define: "d"}
	st.SetLayout("layouts/other")
	restore()

	assert.Contains(t, st.sections, "outer")
	assert.NotContains(t, st.sections, "inner")
	assert.Contains(t, st.fragments, "card")
	layout, ok := st.TakeLayout()
	require.True(t, ok)
	assert.Equal(t, "layouts/app", layout)
}

func TestSwapExecutorReturnsPrevious(t *testing.T) {
	st := NewState()
	st.SetExecutor(func(string, Ctx) (string, error) { return "a", nil })

	prev := st.SwapExecutor(func(string, Ctx) (string, error) { return "b", nil })
	out, err := prev("any", Ctx{})
	require.NoError(t, err)
	assert.Equal(t, "a", out)

	out, err = st.exec("any", Ctx{})
	require.NoError(t, err)
	assert.Equal(t, "b", out)
}

func TestSessionErrorShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want map[string][]string
	}{
		{"typed map", map[string][]string{"a": {"x"}}, map[string][]string{"a": {"x"}}},
		{"string map", map[string]string{"a": "x"}, map[string][]string{"a": {"x"}}},
		{
			"any map mixed values",
			map[string]any{"a": "x", "b": []string{"y"}, "c": []any{"z", 1}},
			map[string][]string{"a": {"x"}, "b": {"y"}, "c": {"z", "1"}},
		},
		{"unsupported shape", 42, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sessionErrors(map[string]any{"errors": tt.raw}))
		})
	}
	assert.Nil(t, sessionErrors(nil))
}
