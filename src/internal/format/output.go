// FILE: crashwatch/src/internal/format/output.go
package format

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Stdout is the output path that writes the report to standard output
const Stdout = "-"

// WriteOutput writes an encoded report to path. A ".zst" suffix compresses the
// file with zstd.
func WriteOutput(path string, data []byte) error {
	if path == "" || path == Stdout {
		_, err := os.Stdout.Write(data)
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	if strings.HasSuffix(path, ".zst") {
		err = Compress(f, data)
	} else {
		_, err = f.Write(data)
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// Compress writes data to w as a single zstd frame
func Compress(w io.Writer, data []byte) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}
