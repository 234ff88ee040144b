package loader

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/coursebridge/internal/domain/entities"
	"github.com/0xcro3dile/coursebridge/internal/domain/ports"
)

func TestDefaultCourses(t *testing.T) {
	courses := DefaultCourses()
	require.Len(t, courses, 10)

	assert.Equal(t, "1", courses[0].ID)
	assert.Equal(t, "Introduction to Python Programming", courses[0].Title)
	assert.Equal(t, entities.LevelBeginner, courses[0].Level)
	assert.Equal(t, 32, courses[0].DurationHours)
	assert.Contains(t, courses[0].Keywords, "python")

	assert.Equal(t, entities.LevelExpert, courses[1].Level, "advanced maps to expert")
	assert.Equal(t, "Blockchain Development", courses[9].Title)
}

func TestLoadCourses_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"courseId":"go-1","title":"Go in Practice","level":"Intermediate","price":49.5,"keywords":["go"]}
	]`), 0o644))

	courses, err := LoadCourses(path)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "go-1", courses[0].ID)
	assert.Equal(t, entities.LevelIntermediate, courses[0].Level)
	assert.InDelta(t, 49.5, courses[0].Price, 1e-9)
}

func TestLoadCourses_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadCourses(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	txt := filepath.Join(dir, "catalog.txt")
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0o644))
	_, err = LoadCourses(txt)
	assert.Error(t, err)

	untitled := filepath.Join(dir, "untitled.yaml")
	require.NoError(t, os.WriteFile(untitled, []byte("- id: a\n"), 0o644))
	_, err = LoadCourses(untitled)
	assert.ErrorContains(t, err, "no title")
}

func TestLoadCourses_EmptyPathUsesSample(t *testing.T) {
	courses, err := LoadCourses("")
	require.NoError(t, err)
	assert.Len(t, courses, 10)
}

const carouselYAML = `cards:
  - title: Security
    header_image_id: "111"
  - title: Mobile
    header_image_id: "222"
    button_text: Mobile courses please
`

func TestCarouselCatalog_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carousel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(carouselYAML), 0o644))

	catalog, err := NewCarouselCatalog(path, nil)
	require.NoError(t, err)

	cards := catalog.Cards()
	require.Len(t, cards, 2)
	assert.Equal(t, "Show me some Security courses", cards[0].ButtonText)
	assert.Equal(t, "Mobile courses please", cards[1].ButtonText)
	assert.Equal(t, "222", cards[1].HeaderImageID)
}

func TestCarouselCatalog_MissingFileIsEmpty(t *testing.T) {
	catalog, err := NewCarouselCatalog(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.NoError(t, err)
	assert.Empty(t, catalog.Cards())
}

func TestCarouselCatalog_BadReloadKeepsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carousel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(carouselYAML), 0o644))

	catalog, err := NewCarouselCatalog(path, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("cards:\n  - title: NoImage\n"), 0o644))
	assert.Error(t, catalog.Reload())
	assert.Len(t, catalog.Cards(), 2)
}

// fakeWatcher lets tests push file events.
type fakeWatcher struct {
	mu     sync.Mutex
	dir    string
	events chan ports.FileEvent
}

func (f *fakeWatcher) Watch(_ context.Context, dir string) (<-chan ports.FileEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dir = dir
	return f.events, nil
}

func (f *fakeWatcher) Stop() error {
	close(f.events)
	return nil
}

func TestCarouselCatalog_WatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "carousel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(carouselYAML), 0o644))

	catalog, err := NewCarouselCatalog(path, nil)
	require.NoError(t, err)

	watcher := &fakeWatcher{events: make(chan ports.FileEvent, 4)}
	defer watcher.Stop()
	require.NoError(t, catalog.Watch(context.Background(), watcher))

	require.NoError(t, os.WriteFile(path, []byte("cards:\n  - title: Rust\n    header_image_id: \"333\"\n"), 0o644))
	watcher.events <- ports.FileEvent{Path: filepath.Join(dir, "other.yaml"), Operation: ports.FileModified}
	watcher.events <- ports.FileEvent{Path: path, Operation: ports.FileModified}

	assert.Eventually(t, func() bool {
		cards := catalog.Cards()
		return len(cards) == 1 && cards[0].Title == "Rust"
	}, time.Second, 10*time.Millisecond)

	abs, _ := filepath.Abs(dir)
	watcher.mu.Lock()
	assert.Equal(t, abs, watcher.dir)
	watcher.mu.Unlock()
}
