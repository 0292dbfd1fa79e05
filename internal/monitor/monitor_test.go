package monitor

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoaderReadsWholeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watched.txt")
	writeFile(t, path, "line one\nline two\n")

	l, err := NewLoader(path)
	require.NoError(t, err)

	data, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n", string(data))
	assert.Equal(t, "watched.txt", l.Name())
}

func TestLoaderMissingFile(t *testing.T) {
	l, err := NewLoader(filepath.Join(t.TempDir(), "absent.txt"))
	require.NoError(t, err)

	_, err = l.Load()
	require.Error(t, err)
}

func TestLoaderEmptyPath(t *testing.T) {
	_, err := NewLoader("")
	require.Error(t, err)
}

func TestWatcherDeliversWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watched.txt")
	writeFile(t, path, "v1")

	l, err := NewLoader(path)
	require.NoError(t, err)
	w, err := NewWatcher(l)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan string, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx, func(content []byte) {
			updates <- string(content)
		})
	}()

	writeFile(t, path, "v2")

	select {
	case got := <-updates:
		assert.Equal(t, "v2", got)
	case <-time.After(3 * time.Second):
		t.Fatal("no update delivered after write")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watched.txt")
	writeFile(t, path, "v1")

	l, err := NewLoader(path)
	require.NoError(t, err)
	w, err := NewWatcher(l)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan string, 8)
	go func() {
		_ = w.Run(ctx, func(content []byte) {
			updates <- string(content)
		})
	}()

	writeFile(t, filepath.Join(dir, "other.txt"), "noise")

	select {
	case got := <-updates:
		t.Fatalf("unexpected update from sibling write: %q", got)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestPageInlinesEscapedContent(t *testing.T) {
	resp := string(Page([]byte("<b>1 & 2</b>")))

	assert.True(t, strings.HasPrefix(resp, "HTTP/1.1 200 OK\r\n"))
	assert.Contains(t, resp, "Content-Type: text/html")
	assert.Contains(t, resp, "&lt;b&gt;1 &amp; 2&lt;/b&gt;")
	assert.NotContains(t, resp, "<b>1 & 2</b>")
	assert.Contains(t, resp, "new WebSocket")

	// the advertised length covers exactly the body
	parts := strings.SplitN(resp, "\r\n\r\n", 2)
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0], "Content-Length: "+strconv.Itoa(len(parts[1])))
}

