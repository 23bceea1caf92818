package export

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tern-data/sqlport/core/output"
	"github.com/tern-data/sqlport/internal/logger"
	"github.com/tern-data/sqlport/internal/ui"
)

// DefaultBatchSize is the batch-size hint used when the request carries none.
const DefaultBatchSize = 100000

// tokenAdvisory is appended to the success message when the metered total
// reaches the warning threshold.
const tokenAdvisory = ". Too many tokens may impair processing. Handle appropriately"

// Job describes one export: one SQL result stream, one output file, one
// terminal outcome. Jobs are never reused or resumed.
type Job struct {
	OutputPath string
	Format     string
	// Compression applies to CSV targets only; Parquet compresses
	// internally and rejects it.
	Compression        string
	Delimiter          rune
	TimeFormat         string
	TimeZone           string
	TokenWarnThreshold int
	Progress           bool
}

// Result is the single terminal outcome of a job. Message is the one text
// the caller may observe; Err carries the classified failure for diagnostics.
type Result struct {
	Message string
	Rows    int64
	Tokens  int
	Err     error
}

// SourceFunc opens the batch sequence for the job. It runs after the output
// target exists, so a backend failure still routes through file cleanup.
type SourceFunc func() (BatchSource, error)

// Run drives one export job to its terminal state: open the target, stream
// batches through the schema guard and the renderer, then finalize. On any
// failure the partially written target is deleted; a file at the output path
// is either absent or a complete, valid artifact.
func Run(open SourceFunc, job Job) Result {
	start := time.Now()

	format := strings.ToLower(strings.TrimSpace(job.Format))
	if !Supported(format) {
		return failed(Errorf(ErrFormat, "unsupported output format %q (supported: %s)",
			job.Format, strings.Join(Formats(), ", ")))
	}

	compression := strings.ToLower(strings.TrimSpace(job.Compression))
	if compression == "" {
		compression = output.None
	}
	if format == FormatParquet && compression != output.None {
		return failed(Errorf(ErrFormat, "compression %q is not supported for parquet output (parquet compresses internally)",
			job.Compression))
	}

	var meter *TokenMeter
	if format == FormatCSV && job.TokenWarnThreshold > 0 {
		m, err := NewTokenMeter(job.TokenWarnThreshold)
		if err != nil {
			return failed(err)
		}
		meter = m
		logger.Debug("Token metering enabled (threshold=%d)", job.TokenWarnThreshold)
	}

	wc, path, err := output.CreateWriter(output.OutputConfig{
		Path:        job.OutputPath,
		Compression: compression,
		Format:      format,
	})
	if err != nil {
		return failed(classify(ErrIO, err))
	}

	renderer, err := NewRenderer(format, wc, RenderOptions{
		Delimiter:  job.Delimiter,
		TimeFormat: job.TimeFormat,
		TimeZone:   job.TimeZone,
		Meter:      meter,
	})
	if err != nil {
		wc.Close()
		removeTarget(path)
		return failed(err)
	}

	// The target exists from here on: whatever exit path is taken, it is
	// either finalized or deleted.
	fail := func(err error) Result {
		renderer.Abort()
		wc.Close()
		removeTarget(path)
		return failed(err)
	}

	src, err := open()
	if err != nil {
		return fail(classify(ErrQuery, err))
	}

	var bar = newProgress(job.Progress)
	var guard SchemaGuard
	var rows int64
	var batches int

	for {
		b, err := src.Next()
		if err != nil {
			return fail(classify(ErrQuery, err))
		}
		if b == nil {
			break
		}
		if err := guard.Check(b.Schema); err != nil {
			return fail(err)
		}
		if err := renderer.WriteBatch(b); err != nil {
			return fail(err)
		}
		rows += int64(len(b.Rows))
		batches++
		if bar != nil {
			bar.Describe(fmt.Sprintf("Exporting rows... %d rows", rows))
			bar.Add(len(b.Rows))
		}
	}

	if bar != nil {
		bar.Clear()
	}

	if err := renderer.Finalize(); err != nil {
		return fail(err)
	}
	if err := wc.Close(); err != nil {
		removeTarget(path)
		return failed(classify(ErrIO, err))
	}

	logger.Debug("Export completed: %d rows in %d batches written to %s in %v",
		rows, batches, path, time.Since(start).Round(time.Millisecond))

	res := Result{Message: "OK", Rows: rows}
	if meter != nil {
		res.Tokens = meter.Total()
		res.Message = fmt.Sprintf("OK %d tokens", meter.Total())
		if meter.Exceeded() {
			res.Message += tokenAdvisory
		}
	}
	return res
}

// failed composes the terminal failure outcome. The message embeds the
// first failure's description; any cleanup trouble is logged, never
// surfaced in place of the original error.
func failed(err error) Result {
	return Result{Message: "Error: " + err.Error(), Err: err}
}

// removeTarget deletes the output target best-effort. Idempotent: a missing
// file is fine.
func removeTarget(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("Failed to remove partial output file %s: %v", path, err)
	}
}

func newProgress(enabled bool) *ui.ProgressBar {
	if !enabled {
		return nil
	}
	return ui.NewProgressBar()
}
