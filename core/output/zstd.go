package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/tern-data/sqlport/internal/logger"
)

func newZstdWriter(path string) (io.WriteCloser, string, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".zst") {
		path += ".zst"
	}
	logger.Debug("Creating Zstandard-compressed output file: %s", path)
	file, err := createFile(path)
	if err != nil {
		return nil, "", err
	}
	zstdWriter, err := zstd.NewWriter(file)
	if err != nil {
		file.Close()
		return nil, "", fmt.Errorf("error creating zstd writer: %w", err)
	}
	return &compositeWriteCloser{
		Writer: zstdWriter,
		closeFunc: func() error {
			logger.Debug("Finalizing zstd compression for: %s", path)
			return closeBoth(zstdWriter, file)
		},
	}, path, nil
}
