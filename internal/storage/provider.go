// Package storage defines the chain file-system abstraction.
package storage

import (
	"path/filepath"
	"strings"

	"github.com/starford/chainval/internal/models"
)

// Extensions recognised as chain files.
var Extensions = []string{".properties", ".chain"}

// IsChainFile reports whether name has a chain file extension.
func IsChainFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Provider is the interface for chain file operations.
type Provider interface {
	// List returns metadata for every chain file under dir (relative to root).
	List(dir string) ([]models.ChainFile, error)
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to root).
	Write(path string, content []byte) error
}
