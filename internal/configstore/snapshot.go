package configstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/cvm-platform/cvm-admin-api/internal/models"
	"github.com/cvm-platform/cvm-admin-api/pkg/storage"
)

// FileSnapshot persists the configuration map as one JSON blob keyed
// "configurationData", mirroring the browser-storage layout the
// dashboard used before the store moved server-side.
type FileSnapshot struct {
	store    *storage.LocalStorage
	filename string
}

type snapshotBlob struct {
	ConfigurationData map[string][]models.ReferenceItem `json:"configurationData"`
}

// NewFileSnapshot builds a snapshot bound to a file under the storage dir.
func NewFileSnapshot(store *storage.LocalStorage, filename string) *FileSnapshot {
	if filename == "" {
		filename = "configurationData.json"
	}
	return &FileSnapshot{store: store, filename: filename}
}

// Load reads and decodes the snapshot. A missing file yields nil so
// the store seeds its defaults; only unreadable or corrupt content
// fails.
func (f *FileSnapshot) Load() (map[string][]models.ReferenceItem, error) {
	data, err := f.store.Load(f.filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var blob snapshotBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, fmt.Errorf("decode reference snapshot: %w", err)
	}
	if blob.ConfigurationData == nil {
		return map[string][]models.ReferenceItem{}, nil
	}
	return blob.ConfigurationData, nil
}

// Save encodes and writes the snapshot wholesale.
func (f *FileSnapshot) Save(lists map[string][]models.ReferenceItem) error {
	data, err := json.Marshal(snapshotBlob{ConfigurationData: lists})
	if err != nil {
		return fmt.Errorf("encode reference snapshot: %w", err)
	}
	if _, err := f.store.Save(f.filename, data); err != nil {
		return err
	}
	return nil
}
