package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/praetorian-inc/securelink/pkg/enum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, root string) *Watcher {
	t.Helper()
	w, err := New(enum.Config{Root: root}, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})
	require.NoError(t, w.Start(ctx))
	return w
}

func nextEvent(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case ev, ok := <-w.Events():
		require.True(t, ok, "events channel closed")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

// replace writes content to a hidden temporary file and renames it over
// path, so the watcher sees one complete change.
func replace(t *testing.T, path, content string) {
	t.Helper()
	tmp := filepath.Join(filepath.Dir(path), ".tmp-"+filepath.Base(path))
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0o644))
	require.NoError(t, os.Rename(tmp, path))
}

func TestWatcher_CreateModifyDelete(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)
	path := filepath.Join(root, "index.html")

	replace(t, path, "<p>one</p>")
	ev := nextEvent(t, w)
	assert.Equal(t, OpCreate, ev.Op)
	assert.Equal(t, "index.html", ev.Rel)
	assert.Equal(t, path, ev.Path)

	replace(t, path, "<p>two</p>")
	ev = nextEvent(t, w)
	assert.Equal(t, OpModify, ev.Op)

	require.NoError(t, os.Remove(path))
	ev = nextEvent(t, w)
	assert.Equal(t, OpDelete, ev.Op)
}

func TestWatcher_IgnoresNonDocuments(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)

	replace(t, filepath.Join(root, "style.css"), "a{}")
	replace(t, filepath.Join(root, "page.html"), "<p>")

	ev := nextEvent(t, w)
	assert.Equal(t, "page.html", ev.Rel)
}

func TestWatcher_NewDirectory(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)

	dir := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(dir, 0o755))
	// Give the watcher a moment to register the new directory.
	time.Sleep(100 * time.Millisecond)
	replace(t, filepath.Join(dir, "a.html"), "<p>")

	ev := nextEvent(t, w)
	assert.Equal(t, "sub/a.html", ev.Rel)
}

func TestWatcher_RememberSuppressesOwnWrite(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "index.html")
	require.NoError(t, os.WriteFile(path, []byte("<p>original</p>"), 0o644))

	w := startWatcher(t, root)

	w.Remember(path, []byte("<p>rewritten</p>"))
	replace(t, path, "<p>rewritten</p>")

	replace(t, filepath.Join(root, "marker.html"), "m")
	ev := nextEvent(t, w)
	assert.Equal(t, "marker.html", ev.Rel)
}

func TestWatcher_ExistingDocumentIsModified(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "index.html")
	require.NoError(t, os.WriteFile(path, []byte("<p>before</p>"), 0o644))

	w := startWatcher(t, root)
	replace(t, path, "<p>after</p>")

	ev := nextEvent(t, w)
	assert.Equal(t, OpModify, ev.Op)
}
