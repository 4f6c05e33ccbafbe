package assets

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/phantomssr/phantom/pkg/interfaces"
	"github.com/phantomssr/phantom/pkg/logger"
	"github.com/phantomssr/phantom/pkg/types"
)

const (
	assetIndex  = "index template"
	assetBundle = "server bundle"
)

var _ interfaces.AssetProvider = (*FilesystemProvider)(nil)

// FilesystemOptions configures a FilesystemProvider
type FilesystemOptions struct {
	IndexPath  string
	BundlePath string
	Charset    string
	LiveReload bool
}

// FilesystemProvider reads assets from disk. With live reload enabled it
// reports a change when either file's modification time moves past the
// baseline, or when the watcher saw an event for either file after it.
type FilesystemProvider struct {
	indexPath  string
	bundlePath string
	charset    string
	liveReload bool
	logger     logger.Logger

	watcher    *fsnotify.Watcher
	lastChange time.Time
	isWatching bool
	done       chan struct{}
	mu         sync.RWMutex
}

// NewFilesystemProvider creates a provider for the given files
func NewFilesystemProvider(opts FilesystemOptions, log logger.Logger) *FilesystemProvider {
	if log == nil {
		log = logger.NewNopLogger()
	}
	charset := opts.Charset
	if charset == "" {
		charset = types.DefaultCharset
	}

	return &FilesystemProvider{
		indexPath:  opts.IndexPath,
		bundlePath: opts.BundlePath,
		charset:    charset,
		liveReload: opts.LiveReload,
		logger:     log.WithComponent("assets"),
	}
}

// IndexContent reads and decodes the index template
func (p *FilesystemProvider) IndexContent() (string, error) {
	data, err := os.ReadFile(p.indexPath)
	if err != nil {
		return "", &types.AssetReadError{Asset: assetIndex, Path: p.indexPath, Err: err}
	}
	content, err := Decode(data, p.charset)
	if err != nil {
		return "", &types.AssetReadError{Asset: assetIndex, Path: p.indexPath, Err: err}
	}
	return content, nil
}

// ServerBundle opens the server bundle. The caller closes it.
func (p *FilesystemProvider) ServerBundle() (io.ReadCloser, error) {
	file, err := os.Open(p.bundlePath)
	if err != nil {
		return nil, &types.AssetReadError{Asset: assetBundle, Path: p.bundlePath, Err: err}
	}
	return file, nil
}

// ServerBundleName returns the bundle file name
func (p *FilesystemProvider) ServerBundleName() string {
	return filepath.Base(p.bundlePath)
}

// LiveReloadSupported reports whether live reload was enabled
func (p *FilesystemProvider) LiveReloadSupported() bool {
	return p.liveReload
}

// LiveReloadRequired reports whether either asset changed after since.
// A missing or unreadable asset is an error.
func (p *FilesystemProvider) LiveReloadRequired(since time.Time) (bool, error) {
	p.mu.RLock()
	lastChange := p.lastChange
	p.mu.RUnlock()

	if lastChange.After(since) {
		return true, nil
	}

	for _, asset := range []struct{ name, path string }{
		{assetIndex, p.indexPath},
		{assetBundle, p.bundlePath},
	} {
		stat, err := os.Stat(asset.path)
		if err != nil {
			return false, &types.AssetReadError{Asset: asset.name, Path: asset.path, Err: err}
		}
		if stat.ModTime().After(since) {
			return true, nil
		}
	}
	return false, nil
}

// StartWatching begins watching the asset directories for changes
func (p *FilesystemProvider) StartWatching() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isWatching {
		return fmt.Errorf("already watching assets")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch parent directories so editors that replace files are seen
	dirs := map[string]bool{}
	for _, path := range []string{p.indexPath, p.bundlePath} {
		dir := filepath.Dir(path)
		if dirs[dir] {
			continue
		}
		dirs[dir] = true
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return fmt.Errorf("failed to watch asset directory %s: %w", dir, err)
		}
	}

	p.watcher = watcher
	p.done = make(chan struct{})
	p.isWatching = true

	go p.watchLoop(watcher, p.done)

	p.logger.Debug("Started watching assets",
		logger.WithField("index", p.indexPath),
		logger.WithField("bundle", p.bundlePath))

	return nil
}

// Close stops watching. It is safe to call when not watching.
func (p *FilesystemProvider) Close() error {
	p.mu.Lock()
	if !p.isWatching {
		p.mu.Unlock()
		return nil
	}
	watcher := p.watcher
	done := p.done
	p.watcher = nil
	p.isWatching = false
	p.mu.Unlock()

	err := watcher.Close()
	<-done
	return err
}

// IsWatching returns whether the provider is currently watching
func (p *FilesystemProvider) IsWatching() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isWatching
}

func (p *FilesystemProvider) watchLoop(watcher *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Asset watcher panic recovered", logger.WithField("panic", r))
		}
	}()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !p.isAssetEvent(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}

			p.logger.Debug("Asset change detected", logger.WithField("event", event.String()))

			p.mu.Lock()
			p.lastChange = time.Now()
			p.mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn("Asset watcher error", logger.WithError(err))
		}
	}
}

func (p *FilesystemProvider) isAssetEvent(name string) bool {
	clean := filepath.Clean(name)
	return clean == filepath.Clean(p.indexPath) || clean == filepath.Clean(p.bundlePath)
}
