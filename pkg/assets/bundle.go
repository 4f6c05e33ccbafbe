package assets

import (
	"io"

	"github.com/phantomssr/phantom/pkg/interfaces"
	"github.com/phantomssr/phantom/pkg/types"
)

// LoadBundle reads the whole server bundle from provider and decodes it
func LoadBundle(provider interfaces.AssetProvider, charset string) (string, error) {
	bundle, err := provider.ServerBundle()
	if err != nil {
		return "", err
	}
	defer bundle.Close()

	data, err := io.ReadAll(bundle)
	if err != nil {
		return "", &types.AssetReadError{Asset: assetBundle, Path: provider.ServerBundleName(), Err: err}
	}
	source, err := Decode(data, charset)
	if err != nil {
		return "", &types.AssetReadError{Asset: assetBundle, Path: provider.ServerBundleName(), Err: err}
	}
	return source, nil
}
