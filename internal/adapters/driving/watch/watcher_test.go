package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/askdocs/internal/core/domain"
)

// mockIngestionService records the calls the watcher makes.
type mockIngestionService struct {
	mu      sync.Mutex
	ingests []string
	removes []string
}

func (m *mockIngestionService) Ingest(context.Context, domain.IngestRequest) (*domain.IngestReport, error) {
	return &domain.IngestReport{}, nil
}

func (m *mockIngestionService) IngestFile(context.Context, domain.FileUpload) (*domain.IngestReport, error) {
	return &domain.IngestReport{}, nil
}

func (m *mockIngestionService) IngestDirectory(_ context.Context, dir string) (*domain.DirectoryReport, error) {
	return &domain.DirectoryReport{Dir: dir}, nil
}

func (m *mockIngestionService) IngestPath(_ context.Context, _, sourceID string) (*domain.IngestReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ingests = append(m.ingests, sourceID)
	return &domain.IngestReport{SourceID: sourceID}, nil
}

func (m *mockIngestionService) Remove(_ context.Context, sourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removes = append(m.removes, sourceID)
	return nil
}

func (m *mockIngestionService) ingested() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ingests...)
}

func (m *mockIngestionService) removed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.removes...)
}

func startWatcher(t *testing.T, dir string, ing *mockIngestionService) {
	t.Helper()
	w, err := New(dir, ing, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("watcher did not stop")
		}
	})

	// Give the watcher time to register the tree.
	time.Sleep(50 * time.Millisecond)
}

func TestWatcher_IngestsCreatedAndWrittenFiles(t *testing.T) {
	dir := t.TempDir()
	ing := &mockIngestionService{}
	startWatcher(t, dir, ing)

	path := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# Notes"), 0o644))

	assert.Eventually(t, func() bool {
		return len(ing.ingested()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"notes.md"}, ing.ingested())

	require.NoError(t, os.WriteFile(path, []byte("# Notes\n\nmore"), 0o644))
	assert.Eventually(t, func() bool {
		return len(ing.ingested()) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_RemovesDeletedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "old.txt")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	ing := &mockIngestionService{}
	startWatcher(t, dir, ing)

	require.NoError(t, os.Remove(path))

	assert.Eventually(t, func() bool {
		return len(ing.removed()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"old.txt"}, ing.removed())
}

func TestWatcher_NewDirectory(t *testing.T) {
	dir := t.TempDir()
	ing := &mockIngestionService{}
	startWatcher(t, dir, ing)

	sub := filepath.Join(dir, "guides")
	require.NoError(t, os.Mkdir(sub, 0o755))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "setup.txt"), []byte("setup"), 0o644))

	assert.Eventually(t, func() bool {
		for _, id := range ing.ingested() {
			if id == "guides/setup.txt" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_DebounceCoalescesWrites(t *testing.T) {
	dir := t.TempDir()
	ing := &mockIngestionService{}
	w, err := New(dir, ing, WithDebounce(200*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx) //nolint:errcheck
	time.Sleep(50 * time.Millisecond)

	path := filepath.Join(dir, "busy.md")
	for i := range 5 {
		require.NoError(t, os.WriteFile(path, []byte{byte('a' + i)}, 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	assert.Eventually(t, func() bool {
		return len(ing.ingested()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Len(t, ing.ingested(), 1)
}

func TestWatcher_HandleEvent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".askdocsignore"), []byte("drafts/\n*.tmp.md\n"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "drafts"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "docs"), 0o755))

	files := []string{"guide.md", "image.png", ".hidden.md", "drafts/wip.md", "scratch.tmp.md"}
	for _, name := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	w, err := New(dir, &mockIngestionService{})
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		op     fsnotify.Op
		wantOp Op
	}{
		{"create supported file", "guide.md", fsnotify.Create, OpIngest},
		{"write supported file", "guide.md", fsnotify.Write, OpIngest},
		{"write and chmod", "guide.md", fsnotify.Write | fsnotify.Chmod, OpIngest},
		{"chmod only", "guide.md", fsnotify.Chmod, 0},
		{"remove", "gone.txt", fsnotify.Remove, OpRemove},
		{"rename", "moved.pdf", fsnotify.Rename, OpRemove},
		{"unsupported type", "image.png", fsnotify.Create, 0},
		{"hidden file", ".hidden.md", fsnotify.Create, 0},
		{"ignored directory", "drafts/wip.md", fsnotify.Write, 0},
		{"ignored pattern", "scratch.tmp.md", fsnotify.Write, 0},
		{"directory", "docs", fsnotify.Create, 0},
		{"outside root", "../elsewhere.md", fsnotify.Create, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			change := w.handleEvent(fsnotify.Event{Name: filepath.Join(w.Root(), tt.path), Op: tt.op})

			if tt.wantOp == 0 {
				assert.Nil(t, change)
				return
			}
			require.NotNil(t, change)
			assert.Equal(t, tt.wantOp, change.Op)
			assert.Equal(t, filepath.ToSlash(filepath.Clean(tt.path)), change.SourceID)
		})
	}
}

func TestNew_Errors(t *testing.T) {
	_, err := New("/non/existent/path", &mockIngestionService{})
	assert.ErrorContains(t, err, "root path error")

	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = New(file, &mockIngestionService{})
	assert.ErrorContains(t, err, "not a directory")

	_, err = New(t.TempDir(), nil)
	assert.Error(t, err)
}

func TestWatcher_RunAfterClose(t *testing.T) {
	w, err := New(t.TempDir(), &mockIngestionService{})
	require.NoError(t, err)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	assert.ErrorIs(t, w.Run(context.Background()), ErrClosed)
}

func TestOp_String(t *testing.T) {
	assert.Equal(t, "ingest", OpIngest.String())
	assert.Equal(t, "remove", OpRemove.String())
	assert.Equal(t, "unknown", Op(0).String())
}
