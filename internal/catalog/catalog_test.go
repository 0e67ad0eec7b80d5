package catalog

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sumPlugin = `// description: Adds two numbers
const ToolPlugin = { defineTool: (d) => ({ createTool: (p) => ({ sum: p.a + p.b }) }) };
`

func TestParamsToJSON(t *testing.T) {
	tests := []struct {
		name    string
		ext     string
		data    string
		want    string
		wantErr bool
	}{
		{name: "json", ext: ".json", data: ` {"a": 2, "b": 3} `, want: `{"a":2,"b":3}`},
		{name: "empty json", ext: ".json", data: "", want: `{}`},
		{name: "bad json", ext: ".json", data: `{"a":`, wantErr: true},
		{name: "yaml", ext: ".yaml", data: "a: 2\nb: 3\ntags: [x, y]\n", want: `{"a":2,"b":3,"tags":["x","y"]}`},
		{name: "yml nested", ext: ".YML", data: "point:\n  x: 1\n  y: 2\n", want: `{"point":{"x":1,"y":2}}`},
		{name: "bad yaml", ext: ".yaml", data: "a: [1, 2", wantErr: true},
		{name: "toml", ext: ".toml", data: "a = 2\nb = 3\n[opts]\nmode = \"fast\"\n", want: `{"a":2,"b":3,"opts":{"mode":"fast"}}`},
		{name: "empty toml", ext: ".toml", data: "", want: `{}`},
		{name: "bad toml", ext: ".toml", data: "a = ", wantErr: true},
		{name: "unsupported", ext: ".ini", data: "a=1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParamsToJSON([]byte(tt.data), tt.ext)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, got)
		})
	}
}

func TestLoadFS(t *testing.T) {
	fsys := fstest.MapFS{
		"sum.js":                 {Data: []byte(sumPlugin)},
		"sum.params.yaml":        {Data: []byte("a: 2\nb: 3\n")},
		"text/upper.js":          {Data: []byte("const ToolPlugin = {};")},
		"text/upper.params.toml": {Data: []byte("text = \"hi\"\n")},
		"bare.js":                {Data: []byte("\n\n// just a comment\nconst ToolPlugin = {};")},
		"README.md":              {Data: []byte("# tools")},
	}

	cat, err := LoadFS(fsys, DefaultPattern)
	require.NoError(t, err)
	assert.Equal(t, 3, cat.Len())

	sum, ok := cat.Get("sum")
	require.True(t, ok)
	assert.Equal(t, "Adds two numbers", sum.Description)
	assert.Equal(t, sumPlugin, sum.Code)
	assert.JSONEq(t, `{"a":2,"b":3}`, sum.DefaultParams)
	assert.Equal(t, "sum.js", sum.Source)
	assert.Len(t, sum.Digest, 64)

	upper, ok := cat.Get("text/upper")
	require.True(t, ok)
	assert.JSONEq(t, `{"text":"hi"}`, upper.DefaultParams)

	bare, ok := cat.Get("bare")
	require.True(t, ok)
	assert.Empty(t, bare.Description)
	assert.Equal(t, "{}", bare.DefaultParams)

	names := make([]string, 0, 3)
	for _, s := range cat.List() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"bare", "sum", "text/upper"}, names)
}

func TestLoadFSSkipsParamsFilesMatchedByPattern(t *testing.T) {
	fsys := fstest.MapFS{
		"sum.js":        {Data: []byte(sumPlugin)},
		"sum.params.js": {Data: []byte("ignored")},
	}

	cat, err := LoadFS(fsys, "*")
	require.NoError(t, err)
	assert.Equal(t, 1, cat.Len())
}

func TestLoadFSInvalidParams(t *testing.T) {
	fsys := fstest.MapFS{
		"sum.js":          {Data: []byte(sumPlugin)},
		"sum.params.json": {Data: []byte("{nope")},
	}

	_, err := LoadFS(fsys, DefaultPattern)
	assert.ErrorContains(t, err, "sum.params.json")
}

func TestAddRejectsDuplicates(t *testing.T) {
	cat := New()
	require.NoError(t, cat.Add(&Tool{Name: "sum", Source: "a.js"}))

	err := cat.Add(&Tool{Name: "sum", Source: "b.js"})
	assert.ErrorIs(t, err, ErrDuplicateTool)

	assert.ErrorIs(t, cat.Add(&Tool{}), ErrInvalidName)
	assert.ErrorIs(t, cat.Add(nil), ErrInvalidName)
	assert.ErrorIs(t, cat.Add(&Tool{Name: "../escape"}), ErrInvalidName)
}

func TestLoadDuplicateNames(t *testing.T) {
	fsys := fstest.MapFS{
		"sum.js":  {Data: []byte(sumPlugin)},
		"sum.mjs": {Data: []byte(sumPlugin)},
	}

	_, err := LoadFS(fsys, "*.{js,mjs}")
	assert.ErrorIs(t, err, ErrDuplicateTool)
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "math"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "math", "sum.js"), []byte(sumPlugin), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "math", "sum.params.json"), []byte(`{"a":1,"b":1}`), 0o644))

	cat, err := Load(dir, "")
	require.NoError(t, err)

	tool, ok := cat.Get("math/sum")
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1,"b":1}`, tool.DefaultParams)

	_, err = Load(filepath.Join(dir, "missing"), "")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = Load(dir, "[")
	assert.Error(t, err)
}
