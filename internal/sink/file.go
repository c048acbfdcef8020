package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// File writes one JSONL file per exchange under
// <dir>/<data_type>/<exchange>_<symbol>_<run_id>.jsonl.
type File struct {
	outputDir string
}

func NewFile(outputDir string) (*File, error) {
	if outputDir == "" {
		return nil, fmt.Errorf("output_dir required for file sink")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	return &File{outputDir: outputDir}, nil
}

func (f *File) Name() string { return "file" }

func (f *File) Write(ctx context.Context, batch *Batch) error {
	dir := filepath.Join(f.outputDir, batch.DataType)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating data type directory: %w", err)
	}

	for exchange, records := range batch.ByExchange() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f.writeFile(f.Path(batch, exchange), records); err != nil {
			return err
		}
	}
	return nil
}

// Path returns the file a batch's exchange is written to.
func (f *File) Path(batch *Batch, exchange string) string {
	symbol := strings.NewReplacer("/", "", "_", "").Replace(batch.Symbol)
	name := fmt.Sprintf("%s_%s_%s.jsonl", exchange, symbol, batch.RunID)
	return filepath.Join(f.outputDir, batch.DataType, name)
}

func (f *File) writeFile(path string, records []Record) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("writing record: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	return file.Close()
}

func (f *File) Close() error { return nil }
