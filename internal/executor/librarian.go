package executor

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/stagehand-ai/stagehand/pkg/models"
)

// DefaultCacheTTL bounds how long the librarian trusts a cached directory
// snapshot or file read before rebuilding it.
const DefaultCacheTTL = 300 * time.Second

// Librarian answers read-only queries about the project tree. It never
// writes files; its implement stage performs the lookup and reports what
// it found.
type Librarian struct {
	root    string
	timeout time.Duration
	ttl     time.Duration

	mu        sync.Mutex
	dirCache  map[string]cachedEntry
	fileCache map[string]cachedEntry

	watcher *fsnotify.Watcher
	done    chan struct{}
}

type cachedEntry struct {
	value   string
	fetched time.Time
}

// NewLibrarian creates a librarian rooted at the given directory. A
// filesystem watcher invalidates cached entries when files under the root
// change; if the watcher cannot be created the librarian still works with
// TTL-only expiry.
func NewLibrarian(root string, timeout, ttl time.Duration) *Librarian {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	l := &Librarian{
		root:      root,
		timeout:   timeout,
		ttl:       ttl,
		dirCache:  make(map[string]cachedEntry),
		fileCache: make(map[string]cachedEntry),
		done:      make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("[librarian] filesystem watcher unavailable: %v", err)
		return l
	}
	if err := watcher.Add(root); err != nil {
		log.Printf("[librarian] cannot watch %s: %v", root, err)
		watcher.Close()
		return l
	}
	l.watcher = watcher
	go l.watchLoop()
	return l
}

// Role returns models.RoleLibrarian.
func (l *Librarian) Role() models.Role { return models.RoleLibrarian }

// ID returns the librarian's identity.
func (l *Librarian) ID() string { return "librarian (project)" }

// Close stops the filesystem watcher. Safe to call when no watcher was
// established.
func (l *Librarian) Close() error {
	if l.watcher == nil {
		return nil
	}
	close(l.done)
	return l.watcher.Close()
}

// ProcessTask dispatches on the request description's prefix. Supported
// queries are "get_directory_structure" and "read_file"; anything else is
// an unknown task type.
func (l *Librarian) ProcessTask(ctx context.Context, req models.TaskRequest) models.Outcome {
	var outputFiles []string

	return runPipeline(ctx, l.Role(), l.timeout, []stage{
		{models.ErrKindContextGather, func(ctx context.Context) ([]string, error) {
			if _, err := os.Stat(l.root); err != nil {
				return nil, fmt.Errorf("project root unavailable: %w", err)
			}
			return nil, nil
		}},
		{models.ErrKindValidation, func(ctx context.Context) ([]string, error) {
			if strings.TrimSpace(req.Description) == "" {
				return nil, fmt.Errorf("empty task description")
			}
			return nil, nil
		}},
		{models.ErrKindUnknownTask, func(ctx context.Context) ([]string, error) {
			switch {
			case strings.HasPrefix(req.Description, "get_directory_structure"):
				if _, err := l.DirectoryStructure(); err != nil {
					return nil, err
				}
				return nil, nil
			case strings.HasPrefix(req.Description, "read_file"):
				path, err := l.readFileTarget(req)
				if err != nil {
					return nil, err
				}
				outputFiles = []string{path}
				return outputFiles, nil
			default:
				return nil, fmt.Errorf("Unknown task type: %s", req.Description)
			}
		}},
		{models.ErrKindTestFailure, func(ctx context.Context) ([]string, error) {
			// Read-only lookups have nothing to verify after the fact.
			return nil, nil
		}},
	})
}

// readFileTarget resolves the file path for a read_file request. The path
// comes from the first required-context entry.
func (l *Librarian) readFileTarget(req models.TaskRequest) (string, error) {
	if len(req.RequiredContext) == 0 {
		return "", fmt.Errorf("No file path provided")
	}
	path := req.RequiredContext[0]
	if _, err := l.ReadFile(path); err != nil {
		return "", err
	}
	return path, nil
}

// DirectoryStructure returns a newline-separated listing of the project
// tree rooted at the librarian's root, cached for the TTL.
func (l *Librarian) DirectoryStructure() (string, error) {
	l.mu.Lock()
	if entry, ok := l.dirCache[l.root]; ok && time.Since(entry.fetched) < l.ttl {
		l.mu.Unlock()
		return entry.value, nil
	}
	l.mu.Unlock()

	var paths []string
	err := filepath.WalkDir(l.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		rel, relErr := filepath.Rel(l.root, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			rel += string(os.PathSeparator)
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walk project tree: %w", err)
	}
	sort.Strings(paths)
	listing := strings.Join(paths, "\n")

	l.mu.Lock()
	l.dirCache[l.root] = cachedEntry{value: listing, fetched: time.Now()}
	l.mu.Unlock()
	return listing, nil
}

// ReadFile returns the contents of the named file, resolved against the
// project root when relative, cached for the TTL.
func (l *Librarian) ReadFile(path string) (string, error) {
	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(l.root, resolved)
	}

	l.mu.Lock()
	if entry, ok := l.fileCache[resolved]; ok && time.Since(entry.fetched) < l.ttl {
		l.mu.Unlock()
		return entry.value, nil
	}
	l.mu.Unlock()

	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	l.mu.Lock()
	l.fileCache[resolved] = cachedEntry{value: string(data), fetched: time.Now()}
	l.mu.Unlock()
	return string(data), nil
}

// Snapshot returns the current directory listing for status reporting,
// or an empty string if the tree cannot be walked.
func (l *Librarian) Snapshot() string {
	listing, err := l.DirectoryStructure()
	if err != nil {
		log.Printf("[librarian] snapshot failed: %v", err)
		return ""
	}
	return listing
}

// watchLoop drops cached entries when the watched tree changes.
func (l *Librarian) watchLoop() {
	for {
		select {
		case <-l.done:
			return
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			l.mu.Lock()
			delete(l.dirCache, l.root)
			delete(l.fileCache, event.Name)
			l.mu.Unlock()
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[librarian] watcher error: %v", err)
		}
	}
}
