package report

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/flate"
)

type zipEntry struct {
	name string
	data []byte
}

// AppendEntry adds one named blob to the ZIP archive at path, preserving any
// entries already present, and creating the archive when absent. ZIP files
// cannot grow in place, so append is implemented as read-then-rewrite; the
// observable behavior is accumulation, never replacement.
func AppendEntry(path, name string, data []byte) error {
	existing, err := readEntries(path)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.DefaultCompression)
	})

	for _, e := range existing {
		w, err := zw.Create(e.name)
		if err != nil {
			return fmt.Errorf("error recreating archive entry %s: %w", e.name, err)
		}
		if _, err := w.Write(e.data); err != nil {
			return fmt.Errorf("error recreating archive entry %s: %w", e.name, err)
		}
	}

	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("error creating archive entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("error writing archive entry %s: %w", name, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("error finalizing archive: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("error writing archive %s: %w", path, err)
	}
	return nil
}

// ListEntries returns the entry names of the archive at path in file order.
func ListEntries(path string) ([]string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("error opening archive %s: %w", path, err)
	}
	defer zr.Close()

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names, nil
}

func readEntries(path string) ([]zipEntry, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("error opening archive %s: %w", path, err)
	}
	defer zr.Close()

	entries := make([]zipEntry, 0, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("error opening archive entry %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close() //nolint:errcheck
		if err != nil {
			return nil, fmt.Errorf("error reading archive entry %s: %w", f.Name, err)
		}
		entries = append(entries, zipEntry{name: f.Name, data: data})
	}
	return entries, nil
}
