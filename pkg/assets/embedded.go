package assets

import (
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/phantomssr/phantom/pkg/interfaces"
	"github.com/phantomssr/phantom/pkg/types"
)

var _ interfaces.AssetProvider = (*EmbeddedProvider)(nil)

// EmbeddedProvider reads assets from an fs.FS such as an embed.FS.
// Embedded assets never change, so live reload is not supported.
type EmbeddedProvider struct {
	fsys       fs.FS
	indexPath  string
	bundlePath string
	charset    string
}

// NewEmbeddedProvider creates a provider over fsys. Leading slashes in the
// paths are ignored.
func NewEmbeddedProvider(fsys fs.FS, indexPath, bundlePath, charset string) *EmbeddedProvider {
	if charset == "" {
		charset = types.DefaultCharset
	}
	return &EmbeddedProvider{
		fsys:       fsys,
		indexPath:  fsPath(indexPath),
		bundlePath: fsPath(bundlePath),
		charset:    charset,
	}
}

// IndexContent reads and decodes the index template
func (p *EmbeddedProvider) IndexContent() (string, error) {
	data, err := fs.ReadFile(p.fsys, p.indexPath)
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
func (p *EmbeddedProvider) ServerBundle() (io.ReadCloser, error) {
	file, err := p.fsys.Open(p.bundlePath)
	if err != nil {
		return nil, &types.AssetReadError{Asset: assetBundle, Path: p.bundlePath, Err: err}
	}
	return file, nil
}

// ServerBundleName returns the bundle file name
func (p *EmbeddedProvider) ServerBundleName() string {
	return path.Base(p.bundlePath)
}

// LiveReloadSupported always reports false
func (p *EmbeddedProvider) LiveReloadSupported() bool {
	return false
}

// LiveReloadRequired always reports false
func (p *EmbeddedProvider) LiveReloadRequired(time.Time) (bool, error) {
	return false, nil
}

func fsPath(p string) string {
	return path.Clean(strings.TrimPrefix(p, "/"))
}
