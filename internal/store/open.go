package store

import (
	"log/slog"
	"path/filepath"

	"github.com/rcliao/chat-memory/internal/embedding"
)

// Files in the data directory.
const (
	MetadataFile = "metadata.json"
	IndexFile    = "vectors.gob"
)

// Options configures opening a store.
type Options struct {
	Dir      string
	Embedder embedding.Embedder // nil selects the flat-file store
	// CompressIndex gzips the index file.
	CompressIndex bool
	// MinSimilarity drops query hits below this cosine similarity. Zero
	// disables the cutoff.
	MinSimilarity float64
	Logger        *slog.Logger
}

func (o Options) metadataPath() string { return filepath.Join(o.Dir, MetadataFile) }

func (o Options) indexPath() string {
	p := filepath.Join(o.Dir, IndexFile)
	if o.CompressIndex {
		p += ".gz"
	}
	return p
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Open selects the store variant once: the vector store when an embedder
// is configured, the flat-file store otherwise.
func Open(opts Options) (Store, error) {
	if opts.Embedder == nil {
		opts.logger().Debug("no embedder configured, using flat-file store", "dir", opts.Dir)
		return OpenFlatFileStore(opts)
	}
	return OpenVectorStore(opts)
}
