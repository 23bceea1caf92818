package output

import (
	"archive/zip"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/tern-data/sqlport/internal/logger"
)

func newZipWriter(path, format string) (io.WriteCloser, string, error) {
	fixedPath := fixExtension(path, ".zip")
	logger.Debug("Creating zip-compressed output file: %s", fixedPath)
	file, err := createFile(fixedPath)
	if err != nil {
		return nil, "", err
	}
	zipWriter := zip.NewWriter(file)
	entryName := zipEntryName(path, format)
	logger.Debug("Creating zip entry: %s", entryName)
	entryWriter, err := zipWriter.Create(entryName)
	if err != nil {
		zipWriter.Close()
		file.Close()
		return nil, "", fmt.Errorf("error creating zip entry: %w", err)
	}
	return &compositeWriteCloser{
		Writer: entryWriter,
		closeFunc: func() error {
			logger.Debug("Finalizing zip archive: %s", fixedPath)
			return closeBoth(zipWriter, file)
		},
	}, fixedPath, nil
}

func zipEntryName(outputPath, format string) string {
	name := strings.TrimSuffix(strings.ToLower(filepath.Base(outputPath)), ".zip")
	if name == "" {
		name = "export"
	}
	if !strings.HasSuffix(name, "."+format) {
		name = fmt.Sprintf("%s.%s", name, format)
	}
	return name
}

func fixExtension(path, extension string) string {
	ext := filepath.Ext(path)
	if strings.ToLower(ext) != extension {
		path = path[:len(path)-len(ext)] + extension
	}
	return path
}
