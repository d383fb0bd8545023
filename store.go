package watermark

import (
	"context"

	"github.com/yyyoichi/watermark_svd/internal/sideinfo"
)

type (
	Store        = sideinfo.Store
	Storage      = sideinfo.Storage
	Record       = sideinfo.Record
	Params       = sideinfo.Params
	Shape        = sideinfo.Shape
	WatermarkRef = sideinfo.WatermarkRef
)

// OpenStore loads the fingerprint catalog of every record in storage.
func OpenStore(ctx context.Context, storage Storage) (*Store, error) {
	return sideinfo.Open(ctx, storage)
}

// NewMemoryStorage keeps records in process memory.
func NewMemoryStorage() Storage {
	return sideinfo.NewMemoryStorage()
}

// NewFileStorage keeps one JSON file per record in dir.
func NewFileStorage(dir string) (Storage, error) {
	return sideinfo.NewFileStorage(dir)
}

// OpenSQLite keeps records in table of the SQLite database at path. Close
// the returned storage when done.
func OpenSQLite(path, table string) (*sideinfo.SQLiteStorage, error) {
	return sideinfo.OpenSQLite(path, table)
}
