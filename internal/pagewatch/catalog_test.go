package pagewatch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/dccon-cli/internal/network"
)

const publishedCatalog = `// generated
var dcConsData = [
  {"name": "smile.png", "keywords": ["smile", "s"]},
  {"name": "wave.gif", "keywords": ["wave", "s"]}
];
`

func TestParseCatalog(t *testing.T) {
	want := []Descriptor{
		{Name: "smile.png", Keywords: []string{"smile", "s"}},
		{Name: "wave.gif", Keywords: []string{"wave", "s"}},
	}

	t.Run("Script assignment form", func(t *testing.T) {
		got, err := ParseCatalog([]byte(publishedCatalog))
		require.NoError(t, err)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("catalog mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Bare JSON array", func(t *testing.T) {
		got, err := ParseCatalog([]byte(`  [{"name":"a.png","keywords":["a"]}]  `))
		require.NoError(t, err)
		assert.Equal(t, []Descriptor{{Name: "a.png", Keywords: []string{"a"}}}, got)
	})

	t.Run("Errors", func(t *testing.T) {
		for name, input := range map[string]string{
			"empty":        "   ",
			"no array":     "window.dcConsData = null;",
			"not json":     "dcConsData = [{name: 'a'}];",
			"wrong shapes": `[{"name": 3}]`,
		} {
			_, err := ParseCatalog([]byte(input))
			assert.Error(t, err, name)
		}
	})
}

func TestFetchCatalog(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/assets/lib/dccon_list.js", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, publishedCatalog)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := network.NewClient(nil)

	got, err := FetchCatalog(context.Background(), client, server.URL+"/assets/")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = FetchCatalog(context.Background(), client, server.URL+"/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")

	assert.Equal(t, "https://cdn/x/lib/dccon_list.js", CatalogURL("https://cdn/x/"))
}

func TestReadCatalogFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dccon_list.js")
	require.NoError(t, os.WriteFile(path, []byte(publishedCatalog), 0o600))

	got, err := ReadCatalogFile(path)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	t.Setenv("HOME", dir)
	got, err = ReadCatalogFile("~/dccon_list.js")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = ReadCatalogFile(filepath.Join(dir, "absent.js"))
	assert.Error(t, err)
}

func TestIndex(t *testing.T) {
	idx := NewIndex(
		Descriptor{Name: "smile.png", Keywords: []string{"smile", "s"}},
		Descriptor{Name: "wave.gif", Keywords: []string{"wave", "s"}},
	)

	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, []string{"s", "smile", "wave"}, idx.Keywords())

	d, ok := idx.Lookup("s")
	require.True(t, ok)
	assert.Equal(t, "wave.gif", d.Name, "the last descriptor listing a keyword wins")

	_, ok = idx.Lookup("constructor")
	assert.False(t, ok)
}
