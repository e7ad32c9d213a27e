package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/DataDog/zstd"
)

// ArchiveLevel is the zstd level used for track logs.
const ArchiveLevel = zstd.DefaultCompression

// Archive compresses a run's track.log into track.log.zst and removes the
// plain log. It returns the archive path.
func (s *Store) Archive(runID string) (string, error) {
	src := s.TrackPath(runID)
	dst := filepath.Join(s.RunDir(runID), archiveFile)

	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	if err := writeCompressed(dst, in); err != nil {
		os.Remove(dst)
		return "", err
	}
	in.Close()
	if err := os.Remove(src); err != nil {
		return "", err
	}
	return dst, nil
}

func writeCompressed(dst string, r io.Reader) error {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zstd.NewWriterLevel(out, ArchiveLevel)
	if _, err := io.Copy(zw, r); err != nil {
		zw.Close()
		return fmt.Errorf("storage: compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("storage: compress: %w", err)
	}
	return out.Close()
}

// Unarchive restores track.log from track.log.zst so the run can be resumed.
// It is a no-op when the plain log already exists.
func (s *Store) Unarchive(runID string) error {
	dst := s.TrackPath(runID)
	if _, err := os.Stat(dst); err == nil {
		return nil
	}

	src := filepath.Join(s.RunDir(runID), archiveFile)
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	zr := zstd.NewReader(in)
	defer zr.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, zr); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("storage: decompress: %w", err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// OpenTrack opens a run's checkpoint log for reading, decompressing the
// archive when the plain log is gone.
func (s *Store) OpenTrack(runID string) (io.ReadCloser, error) {
	f, err := os.Open(s.TrackPath(runID))
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	af, err := os.Open(filepath.Join(s.RunDir(runID), archiveFile))
	if err != nil {
		return nil, err
	}
	return &archiveReader{ReadCloser: zstd.NewReader(af), file: af}, nil
}

type archiveReader struct {
	io.ReadCloser
	file *os.File
}

func (a *archiveReader) Close() error {
	err := a.ReadCloser.Close()
	if ferr := a.file.Close(); err == nil {
		err = ferr
	}
	return err
}
