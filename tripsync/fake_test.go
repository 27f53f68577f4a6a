package tripsync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Perth00/WanderPlan-sub001/tripstore"
)

// testConfig shortens the deferred-sweep delay so tests that Drain the
// engine do not sit out the production delay.
func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.CleanupDelay = 10 * time.Millisecond
	return cfg
}

// fakeRemote is an in-memory RemoteStore with merge-set semantics and a
// change feed, enough to exercise the engine without a server.
type fakeRemote struct {
	mu       sync.Mutex
	docs     map[string]map[string]map[string]any // path -> doc id -> data
	nextID   int
	queuedID []string // Add consumes these before generating ids

	addErr    error
	setErr    error
	deleteErr error
	listErr   error

	watchers map[string][]chan ChangeEvent
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		docs:     make(map[string]map[string]map[string]any),
		watchers: make(map[string][]chan ChangeEvent),
	}
}

func (f *fakeRemote) pathDocs(path string) map[string]map[string]any {
	if f.docs[path] == nil {
		f.docs[path] = make(map[string]map[string]any)
	}
	return f.docs[path]
}

func (f *fakeRemote) Add(ctx context.Context, path string, data map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return "", f.addErr
	}
	var id string
	if len(f.queuedID) > 0 {
		id = f.queuedID[0]
		f.queuedID = f.queuedID[1:]
	} else {
		f.nextID++
		id = fmt.Sprintf("remote-%d", f.nextID)
	}
	f.pathDocs(path)[id] = cloneDoc(data)
	f.notifyLocked(path, ChangeEvent{Type: ChangeAdded, Path: path, Doc: Document{ID: id, Data: cloneDoc(data)}})
	return id, nil
}

func (f *fakeRemote) Set(ctx context.Context, path, id string, data map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	existing := f.pathDocs(path)[id]
	if existing == nil {
		existing = make(map[string]any)
	}
	for k, v := range data {
		existing[k] = v
	}
	f.pathDocs(path)[id] = existing
	f.notifyLocked(path, ChangeEvent{Type: ChangeModified, Path: path, Doc: Document{ID: id, Data: cloneDoc(existing)}})
	return nil
}

func (f *fakeRemote) Get(ctx context.Context, path, id string) (Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.pathDocs(path)[id]
	if !ok {
		return Document{}, fmt.Errorf("document %s/%s not found", path, id)
	}
	return Document{ID: id, Data: cloneDoc(data)}, nil
}

func (f *fakeRemote) Delete(ctx context.Context, path, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.pathDocs(path), id)
	f.notifyLocked(path, ChangeEvent{Type: ChangeRemoved, Path: path, Doc: Document{ID: id}})
	return nil
}

func (f *fakeRemote) List(ctx context.Context, path string) ([]Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []Document
	for id, data := range f.pathDocs(path) {
		out = append(out, Document{ID: id, Data: cloneDoc(data)})
	}
	return out, nil
}

func (f *fakeRemote) Watch(ctx context.Context, path string) (<-chan ChangeEvent, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan ChangeEvent, 64)
	f.watchers[path] = append(f.watchers[path], ch)
	var once sync.Once
	stop := func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			chans := f.watchers[path]
			for i, c := range chans {
				if c == ch {
					f.watchers[path] = append(chans[:i], chans[i+1:]...)
					break
				}
			}
			close(ch)
		})
	}
	return ch, stop, nil
}

func (f *fakeRemote) notifyLocked(path string, ev ChangeEvent) {
	for _, ch := range f.watchers[path] {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (f *fakeRemote) docCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs[path])
}

func (f *fakeRemote) doc(path, id string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneDoc(f.docs[path][id])
}

func cloneDoc(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type fakeAssets struct {
	mu       sync.Mutex
	uploaded []string
	deleted  []string
	err      error
}

func (f *fakeAssets) Upload(ctx context.Context, localPath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.uploaded = append(f.uploaded, localPath)
	return "https://assets.example.com/" + fmt.Sprintf("%d", len(f.uploaded)), nil
}

func (f *fakeAssets) Delete(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, url)
	return nil
}

// testEngine wires a fresh in-memory store, fake remote and signed-in
// identity. The returned cleanup closes the store.
func testEngine(t *testing.T) (*Engine, *tripstore.Store, *fakeRemote, *fakeAssets) {
	t.Helper()
	logger := slog.Default()
	store, err := tripstore.Open(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	remote := newFakeRemote()
	assets := &fakeAssets{}
	identity := IdentityFunc(func() (string, bool) { return "user-1", true })

	eng, err := New(store, remote, assets, identity, testConfig(), logger)
	require.NoError(t, err)
	return eng, store, remote, assets
}

// signedOutEngine is testEngine with no authenticated user.
func signedOutEngine(t *testing.T) (*Engine, *tripstore.Store, *fakeRemote) {
	t.Helper()
	logger := slog.Default()
	store, err := tripstore.Open(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	remote := newFakeRemote()
	identity := IdentityFunc(func() (string, bool) { return "", false })
	eng, err := New(store, remote, nil, identity, testConfig(), logger)
	require.NoError(t, err)
	return eng, store, remote
}
