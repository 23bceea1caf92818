package output

import (
	"compress/gzip"
	"io"
	"strings"

	"github.com/tern-data/sqlport/internal/logger"
)

func newGzipWriter(path string) (io.WriteCloser, string, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".gz") {
		path += ".gz"
	}
	logger.Debug("Creating gzip-compressed output file: %s", path)
	file, err := createFile(path)
	if err != nil {
		return nil, "", err
	}
	gzipWriter := gzip.NewWriter(file)
	return &compositeWriteCloser{
		Writer: gzipWriter,
		closeFunc: func() error {
			logger.Debug("Finalizing gzip compression for: %s", path)
			return closeBoth(gzipWriter, file)
		},
	}, path, nil
}
