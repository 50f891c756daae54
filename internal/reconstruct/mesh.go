package reconstruct

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// USDCHeader is the signature at the start of a binary USD file.
const USDCHeader = "PXR-USDC"

// MeshExtension is the extension of cached meshes.
const MeshExtension = ".usd"

// IsValidMesh reports whether path exists and starts with USDCHeader.
func IsValidMesh(path string) bool {
	f, err := os.Open(path) //nolint:gosec // G304: mesh path under the cache root
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	header := make([]byte, len(USDCHeader))
	if _, err := io.ReadFull(f, header); err != nil {
		return false
	}
	return bytes.Equal(header, []byte(USDCHeader))
}

// meshFileName maps a dataset name to a single path element.
func meshFileName(name string) string {
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == 0 {
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		name = "_"
	}
	return filepath.Clean(name) + MeshExtension
}
