package stage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// CheckInput verifies that path names an existing regular file.
func CheckInput(log *zap.Logger, what, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		log.Error("input file not accessible", zap.String("file", what), zap.String("path", path), zap.Error(err))
		return InputError
	}
	if info.IsDir() {
		log.Error("input path is a directory", zap.String("file", what), zap.String("path", path))
		return InputError
	}
	log.Debug("input file found", zap.String("file", what), zap.String("path", path), zap.Int64("bytes", info.Size()))
	return Success
}

// CheckOutput verifies that path can be written. An existing file is an
// OutputError unless overwrite is set, in which case it is only a warning.
// The parent directory is created when missing.
func CheckOutput(log *zap.Logger, what, path string, overwrite bool) Result {
	_, err := os.Stat(path)
	switch {
	case err == nil && !overwrite:
		log.Error("output file exists; pass --overwrite to replace it", zap.String("file", what), zap.String("path", path))
		return OutputError
	case err == nil:
		log.Warn("output file exists and will be overwritten", zap.String("file", what), zap.String("path", path))
	case !errors.Is(err, fs.ErrNotExist):
		log.Error("output file not accessible", zap.String("file", what), zap.String("path", path), zap.Error(err))
		return OutputError
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Error("cannot create output directory", zap.String("dir", dir), zap.Error(err))
			return OutputError
		}
	}
	return Success
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// SamePath reports whether two paths refer to the same location after
// cleaning and resolving to absolute form.
func SamePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	if err1 != nil || err2 != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return aa == bb
}
