package outputs

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// writeFileReplace writes 'filename' through a temp file in the same
// directory and renames it into place, so the previous contents survive a
// failed write.
func writeFileReplace(filename string, writeFn func(io.Writer) error) (err error) {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	f, err := os.CreateTemp(dir, filepath.Base(filename)+".*")
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()

	bufWriter := bufio.NewWriter(f)
	if err = writeFn(bufWriter); err != nil {
		return err
	}
	if err = bufWriter.Flush(); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}

	// CreateTemp makes the file 0600.
	if err = os.Chmod(f.Name(), 0644); err != nil {
		return err
	}

	if err = os.Rename(f.Name(), filename); err != nil {
		return fmt.Errorf("failed to rename tmp file: %s -> %s: %w", f.Name(), filename, err)
	}

	return nil
}
