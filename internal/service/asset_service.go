package service

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/stemsi/exstem-casebook/internal/content"
)

// ErrAssetMissing means the asset is declared but its file is not on disk.
var ErrAssetMissing = errors.New("asset file missing")

// AssetFile is a resolved, readable asset.
type AssetFile struct {
	content.Asset
	Path        string
	ContentType string
	Size        int64
}

// AssetService maps declared scenario assets to files under the asset
// directory.
type AssetService struct {
	dir     string
	content *content.Provider
}

// NewAssetService creates a new AssetService.
func NewAssetService(dir string, provider *content.Provider) *AssetService {
	return &AssetService{dir: dir, content: provider}
}

// Resolve finds the file behind a scenario asset. Undeclared assets yield
// content.ErrAssetNotFound, declared ones without a file ErrAssetMissing.
func (s *AssetService) Resolve(scenario int, name string) (*AssetFile, error) {
	a, err := s.content.Asset(scenario, name)
	if err != nil {
		return nil, err
	}

	// Clean against a rooted path so a crafted file name cannot leave dir.
	path := filepath.Join(s.dir, filepath.Clean("/"+a.File))
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrAssetMissing, a.File)
	}

	ctype := mime.TypeByExtension(filepath.Ext(path))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	return &AssetFile{Asset: a, Path: path, ContentType: ctype, Size: info.Size()}, nil
}

// AssetURL is the public path an asset is served from.
func AssetURL(scenario int, name string) string {
	return fmt.Sprintf("/api/v1/assets/scenarios/%d/%s", scenario, name)
}
