package pathtmpl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSanitizesDataProducedSeparator(t *testing.T) {
	tpl, err := NewTemplater("/", map[string]string{
		"path": "{{ truncate title 7 }}/test/a",
	})
	require.NoError(t, err)

	got, err := tpl.Render("path", map[string]any{"title": "关注/永雏塔菲喵"})
	require.NoError(t, err)
	assert.Equal(t, "关注_永雏塔菲/test/a", got)
}

func TestRenderSimple(t *testing.T) {
	tpl, err := NewTemplater("/", map[string]string{
		"video": "test{{bvid}}test",
	})
	require.NoError(t, err)

	got, err := tpl.Render("video", map[string]any{"bvid": "BV1b5411h7g7"})
	require.NoError(t, err)
	assert.Equal(t, "testBV1b5411h7g7test", got)
}

func TestFilenamify(t *testing.T) {
	cases := map[string]string{
		"foo/bar":     "foo_bar",
		"foo//bar":    "foo_bar",
		"//foo//bar//": "_foo_bar_",
		`foo\bar`:     "foo_bar",
		".":           "_",
		"..":          "_",
		"./":          "__",
		"foo.bar.":    "foo.bar_",
		"foo.bar...":  "foo.bar_",
		"con":         "con_",
		"com1":        "com1_",
		":nul|":       "_nul_",
	}
	for input, want := range cases {
		assert.Equal(t, want, filenamify(input), "input=%q", input)
	}
}
