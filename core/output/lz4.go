package output

import (
	"io"
	"strings"

	"github.com/pierrec/lz4/v4"

	"github.com/tern-data/sqlport/internal/logger"
)

func newLz4Writer(path string) (io.WriteCloser, string, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".lz4") {
		path += ".lz4"
	}
	logger.Debug("Creating lz4-compressed output file: %s", path)
	file, err := createFile(path)
	if err != nil {
		return nil, "", err
	}
	lz4Writer := lz4.NewWriter(file)
	return &compositeWriteCloser{
		Writer: lz4Writer,
		closeFunc: func() error {
			logger.Debug("Finalizing lz4 compression for: %s", path)
			return closeBoth(lz4Writer, file)
		},
	}, path, nil
}
