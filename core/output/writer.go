package output

import (
	"fmt"
	"io"
	"strings"
)

const (
	None = "none"
	GZIP = "gzip"
	ZIP  = "zip"
	ZSTD = "zstd"
	LZ4  = "lz4"
)

// OutputConfig holds configuration for output file creation.
type OutputConfig struct {
	Path        string
	Compression string
	Format      string
}

// CreateWriter creates the output target for an export. Compressed targets
// get their canonical extension appended, so the second return value is the
// path that actually exists on disk; failure cleanup must remove that path,
// not the requested one. Parent directories are created as needed.
func CreateWriter(cfg OutputConfig) (io.WriteCloser, string, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Compression)) {
	case None:
		return newFileWriter(cfg.Path)
	case GZIP:
		return newGzipWriter(cfg.Path)
	case ZIP:
		return newZipWriter(cfg.Path, cfg.Format)
	case ZSTD:
		return newZstdWriter(cfg.Path)
	case LZ4:
		return newLz4Writer(cfg.Path)
	default:
		return nil, "", fmt.Errorf("unsupported compression type %q", cfg.Compression)
	}
}

// Compressions lists the accepted compression names.
func Compressions() []string {
	return []string{None, GZIP, ZIP, ZSTD, LZ4}
}
