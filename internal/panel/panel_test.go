package panel

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandlerServesRoot(t *testing.T) {
	w := get(t, Handler(""), "/")

	if w.Code != http.StatusOK {
		t.Fatalf("GET /: got status %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<!DOCTYPE html>") {
		t.Error("GET /: response doesn't contain HTML doctype")
	}
	if got := w.Header().Get("Cache-Control"); got != "no-cache, must-revalidate" {
		t.Errorf("Cache-Control = %q", got)
	}
}

func TestHandlerServesStaticAssets(t *testing.T) {
	h := Handler("")

	for _, target := range []string{"/app.js", "/style.css"} {
		w := get(t, h, target)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s: got status %d, want 200", target, w.Code)
		}
		if w.Body.Len() == 0 {
			t.Errorf("GET %s: empty response body", target)
		}
	}
}

func TestHandlerFallback(t *testing.T) {
	h := Handler("")

	for _, target := range []string{"/nonexistent", "/some/deep/route"} {
		w := get(t, h, target)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s: got status %d, want 200", target, w.Code)
		}
		if !strings.Contains(w.Body.String(), "<!DOCTYPE html>") {
			t.Errorf("GET %s: fallback didn't serve index.html", target)
		}
	}
}

func TestHandlerAPIPathsNotFound(t *testing.T) {
	w := get(t, Handler(""), "/api/v2/files")
	if w.Code != http.StatusNotFound {
		t.Errorf("GET /api/v2/files: got status %d, want 404", w.Code)
	}
}

func TestHandlerFilesystemMode(t *testing.T) {
	dir := t.TempDir()
	index := `<!DOCTYPE html><html><body>filesystem panel</body></html>`
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte(index), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "extra.js"), []byte("console.log('x')"), 0o644); err != nil {
		t.Fatal(err)
	}
	h := Handler(dir)

	if w := get(t, h, "/"); !strings.Contains(w.Body.String(), "filesystem panel") {
		t.Errorf("filesystem GET /: got %q", w.Body.String())
	}
	if w := get(t, h, "/extra.js"); w.Code != http.StatusOK {
		t.Errorf("filesystem GET /extra.js: got status %d, want 200", w.Code)
	}
	if w := get(t, h, "/deep/route"); !strings.Contains(w.Body.String(), "filesystem panel") {
		t.Error("filesystem fallback didn't serve filesystem index.html")
	}
}

func TestHandlerInvalidDirFallsBackToEmbed(t *testing.T) {
	w := get(t, Handler("/nonexistent/dir/that/does/not/exist"), "/")

	if w.Code != http.StatusOK {
		t.Errorf("invalid dir GET /: got status %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "versionwatch") {
		t.Error("invalid dir: didn't fall back to embedded index.html")
	}
}
