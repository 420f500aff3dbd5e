package mirror

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/lukemcguire/sitecapture/asset"
)

const sheet = `body{background:url("images/b.png")}
@font-face{font-family:x;src:url(./local.woff2) format("woff2"),url(https://cdn.example/font.woff2)}
.d{background:url(data:image/png;base64,AAAA)}
.e{background:url(images/b.png) no-repeat}
`

type cssFixture struct {
	srv      *httptest.Server
	hits     *atomic.Int32
	outDir   string
	sheetURL string
	mapping  *asset.Mapping
}

func newCSSFixture(t *testing.T) *cssFixture {
	t.Helper()
	hits := &atomic.Int32{}
	mux := http.NewServeMux()
	mux.HandleFunc("/assets/images/b.png", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("png-b"))
	})
	mux.HandleFunc("/assets/local.woff2", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("woff2"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	outDir := t.TempDir()
	if err := asset.EnsureFolders(outDir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "css", "s.css"), []byte(sheet), 0o644); err != nil {
		t.Fatal(err)
	}

	sheetURL := srv.URL + "/assets/s.css"
	mapping := asset.NewMapping()
	mapping.Set(asset.Stylesheet, sheetURL, "css/s.css")

	return &cssFixture{srv: srv, hits: hits, outDir: outDir, sheetURL: sheetURL, mapping: mapping}
}

func (f *cssFixture) sheetText(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.outDir, "css", "s.css"))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestResolveLocalizesReferences(t *testing.T) {
	f := newCSSFixture(t)
	log := &eventLog{}

	NewStylesheetResolver(testFetcher(Config{}, log), 0).Resolve(context.Background(), f.mapping, f.outDir)

	text := f.sheetText(t)
	for _, want := range []string{
		`url("../img/b.png")`,
		`url(../img/b.png) no-repeat`,
		`url(../fonts/local.woff2)`,
		`url(https://cdn.example/font.woff2)`,
		`url(data:image/png;base64,AAAA)`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("stylesheet missing %q:\n%s", want, text)
		}
	}

	for _, rel := range []string{"img/b.png", "fonts/local.woff2"} {
		if _, err := os.Stat(filepath.Join(f.outDir, rel)); err != nil {
			t.Errorf("expected %s on disk: %v", rel, err)
		}
	}
	if _, ok := f.mapping.Lookup(asset.Font, f.srv.URL+"/assets/local.woff2"); !ok {
		t.Error("relative font should be recorded under the font category")
	}
	if f.hits.Load() != 2 {
		t.Errorf("expected 2 downloads, got %d", f.hits.Load())
	}

	ev, _ := log.terminal(f.srv.URL + "/assets/images/b.png")
	if ev.Kind != EventDone || !ev.FromStylesheet {
		t.Errorf("b.png event = %+v", ev)
	}

	want := []StageProgress{
		{StageStylesheetAssets, 0, 3},
		{StageStylesheetAssets, 1, 3},
		{StageStylesheetAssets, 2, 3},
		{StageStylesheetAssets, 3, 3},
	}
	got := log.stageTicks(StageStylesheetAssets)
	if len(got) != len(want) {
		t.Fatalf("progress = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tick %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestResolveRespectsReferenceCap(t *testing.T) {
	f := newCSSFixture(t)

	NewStylesheetResolver(testFetcher(Config{}, nil), 1).Resolve(context.Background(), f.mapping, f.outDir)

	text := f.sheetText(t)
	if !strings.Contains(text, "../img/b.png") {
		t.Errorf("first reference should be localized:\n%s", text)
	}
	if !strings.Contains(text, "url(./local.woff2)") {
		t.Errorf("reference beyond the cap must be untouched:\n%s", text)
	}
	if f.hits.Load() != 1 {
		t.Errorf("expected 1 download, got %d", f.hits.Load())
	}
}

func TestResolveReusesMappedImages(t *testing.T) {
	f := newCSSFixture(t)
	f.mapping.Set(asset.Image, f.srv.URL+"/assets/images/b.png", "img/b.png")

	NewStylesheetResolver(testFetcher(Config{}, nil), 0).Resolve(context.Background(), f.mapping, f.outDir)

	if !strings.Contains(f.sheetText(t), `url("../img/b.png")`) {
		t.Error("already downloaded image should still be substituted")
	}
	if f.hits.Load() != 1 {
		t.Errorf("only the font should be downloaded, got %d requests", f.hits.Load())
	}
}

func TestResolveCanceled(t *testing.T) {
	f := newCSSFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	NewStylesheetResolver(testFetcher(Config{}, nil), 0).Resolve(ctx, f.mapping, f.outDir)

	if f.sheetText(t) != sheet {
		t.Error("cancelled pass must leave the stylesheet untouched")
	}
	if f.hits.Load() != 0 {
		t.Errorf("cancelled pass issued %d requests", f.hits.Load())
	}
}

// cancelAtTick cancels the run once the stylesheet pass reports done refs.
type cancelAtTick struct {
	done   int
	cancel context.CancelFunc
}

func (cancelAtTick) AssetEvent(AssetEvent) {}

func (c cancelAtTick) Progress(done, _ int, stage Stage) {
	if stage == StageStylesheetAssets && done == c.done {
		c.cancel()
	}
}

func TestResolveCanceledBetweenSheets(t *testing.T) {
	var secondHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/one.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("one"))
	})
	mux.HandleFunc("/two.png", func(w http.ResponseWriter, r *http.Request) {
		secondHits.Add(1)
		_, _ = w.Write([]byte("two"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	outDir := t.TempDir()
	if err := asset.EnsureFolders(outDir); err != nil {
		t.Fatal(err)
	}
	const (
		firstSheet  = `.a{background:url(one.png)}`
		secondSheet = `.b{background:url(two.png)}`
	)
	mapping := asset.NewMapping()
	for name, body := range map[string]string{"a.css": firstSheet, "b.css": secondSheet} {
		if err := os.WriteFile(filepath.Join(outDir, "css", name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		mapping.Set(asset.Stylesheet, srv.URL+"/"+name, "css/"+name)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	log := &eventLog{}
	observer := MultiObserver{log, cancelAtTick{done: 1, cancel: cancel}}
	NewStylesheetResolver(testFetcher(Config{}, observer), 0).Resolve(ctx, mapping, outDir)

	read := func(name string) string {
		data, err := os.ReadFile(filepath.Join(outDir, "css", name))
		if err != nil {
			t.Fatal(err)
		}
		return string(data)
	}
	if got := read("a.css"); got != `.a{background:url(../img/one.png)}` {
		t.Errorf("first sheet lost its rewrites: %q", got)
	}
	if got := read("b.css"); got != secondSheet {
		t.Errorf("second sheet must be untouched, got %q", got)
	}
	if secondHits.Load() != 0 {
		t.Error("second sheet's references must not be fetched")
	}
	if _, ok := log.terminal(srv.URL + "/two.png"); ok {
		t.Error("no event expected for the second sheet's reference")
	}
}

func TestResolvableRefs(t *testing.T) {
	got := resolvableRefs([]string{"a.png", "", "#frag", "DATA:image/gif;base64,R0", "a.png", "b.png"})
	if strings.Join(got, ",") != "a.png,b.png" {
		t.Errorf("resolvableRefs() = %v", got)
	}
}

func TestRelativeTo(t *testing.T) {
	tests := []struct {
		dir, target, want string
	}{
		{"css", "img/b.png", "../img/b.png"},
		{"css", "css/other.css", "other.css"},
		{".", "img/b.png", "img/b.png"},
	}
	for _, tt := range tests {
		if got := relativeTo(tt.dir, tt.target); got != tt.want {
			t.Errorf("relativeTo(%q, %q) = %q, want %q", tt.dir, tt.target, got, tt.want)
		}
	}
}
