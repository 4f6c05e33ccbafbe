package engine

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/phantomssr/phantom/pkg/assets"
	"github.com/phantomssr/phantom/pkg/engines"
	"github.com/phantomssr/phantom/pkg/interfaces"
	"github.com/phantomssr/phantom/pkg/logger"
	"github.com/phantomssr/phantom/pkg/metrics"
	"github.com/phantomssr/phantom/pkg/notifier"
	"github.com/phantomssr/phantom/pkg/state"
	"github.com/phantomssr/phantom/pkg/types"
)

// DependencyFactory creates the default collaborators of a renderer from
// its configuration
type DependencyFactory struct {
	projectRoot string
	logger      logger.Logger
	config      *types.RendererConfig
	assetsFS    fs.FS
}

// NewDependencyFactory creates a new dependency factory
func NewDependencyFactory(projectRoot string, log logger.Logger, config *types.RendererConfig) *DependencyFactory {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &DependencyFactory{
		projectRoot: projectRoot,
		logger:      log,
		config:      config,
	}
}

// WithAssetsFS sets the file system the embedded provider reads from.
// Without it the embedded provider reads the project root.
func (f *DependencyFactory) WithAssetsFS(fsys fs.FS) *DependencyFactory {
	f.assetsFS = fsys
	return f
}

// CreateDefaults creates every dependency the configuration asks for
func (f *DependencyFactory) CreateDefaults() interfaces.RendererDependencies {
	deps := interfaces.RendererDependencies{
		Provider:      f.createProvider(),
		EngineFactory: f.createEngineFactory(),
		Metrics:       f.createMetrics(),
		Status:        f.createStatus(),
	}

	if f.config.Notifications.IsEnabled() {
		deps.Notifier = f.createNotifier()
	}

	return deps
}

// CreateWithOverrides creates the defaults, then replaces every
// dependency set in overrides
func (f *DependencyFactory) CreateWithOverrides(overrides interfaces.RendererDependencies) interfaces.RendererDependencies {
	deps := f.CreateDefaults()

	if overrides.Provider != nil {
		deps.Provider = overrides.Provider
	}
	if overrides.EngineFactory != nil {
		deps.EngineFactory = overrides.EngineFactory
	}
	if overrides.Notifier != nil {
		deps.Notifier = overrides.Notifier
	}
	if overrides.Metrics != nil {
		deps.Metrics = overrides.Metrics
	}
	if overrides.Status != nil {
		deps.Status = overrides.Status
	}

	return deps
}

func (f *DependencyFactory) createProvider() interfaces.AssetProvider {
	if f.config.GetAssetSource() == types.AssetSourceEmbedded {
		fsys := f.assetsFS
		if fsys == nil {
			fsys = os.DirFS(f.projectRoot)
		}
		return assets.NewEmbeddedProvider(fsys, f.config.IndexPath, f.config.ServerBundlePath, f.config.Charset)
	}

	provider := assets.NewFilesystemProvider(assets.FilesystemOptions{
		IndexPath:  f.resolve(f.config.IndexPath),
		BundlePath: f.resolve(f.config.ServerBundlePath),
		Charset:    f.config.Charset,
		LiveReload: f.config.LiveReload,
	}, f.logger)

	if f.config.LiveReload {
		if err := provider.StartWatching(); err != nil {
			f.logger.Warn("File watching unavailable, falling back to modification times",
				logger.WithError(err))
		}
	}
	return provider
}

func (f *DependencyFactory) createEngineFactory() interfaces.EngineFactory {
	return engines.NewScriptEngineFactory(f.config.GetRenderTimeout(), f.logger)
}

func (f *DependencyFactory) createNotifier() interfaces.ReloadNotifier {
	return notifier.New(notifier.FromTypes(f.config.Notifications), f.logger)
}

func (f *DependencyFactory) createMetrics() interfaces.MetricsRecorder {
	return metrics.NewCollector()
}

func (f *DependencyFactory) createStatus() interfaces.StatusRecorder {
	return state.NewStateManager(f.projectRoot, f.logger)
}

func (f *DependencyFactory) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(f.projectRoot, path)
}
