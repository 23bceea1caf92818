package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tern-data/sqlport/internal/logger"
)

func newFileWriter(path string) (io.WriteCloser, string, error) {
	logger.Debug("Creating uncompressed output file: %s", path)
	file, err := createFile(path)
	if err != nil {
		return nil, "", err
	}
	// 256KB buffer keeps throughput steady for large exports
	return newBufferedWriteCloser(file, 256*1024), path, nil
}

// createFile creates (or truncates) the target, making parent directories
// first so a fresh output tree does not need to pre-exist.
func createFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("error creating output directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("error creating file: %w", err)
	}
	return file, nil
}
