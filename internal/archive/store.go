package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Default filename parts.
const (
	DefaultFilenamePrefix = "wggf-monthly-digest-"
	DefaultFileExtension  = ".html"
)

const (
	dirPerm  os.FileMode = 0o750
	filePerm os.FileMode = 0o644
)

// Storer persists digest content.
type Storer interface {
	StoreDigest(ref Reference, content []byte) (string, error)
}

// DirStore writes each digest to its own file in a directory.
// The directory is created on the first write, so a run that never gets
// past the login leaves no trace on disk.
type DirStore struct {
	dir   string
	namer Namer
}

// NewDirStore returns a store writing into dir.
func NewDirStore(dir string, namer Namer) *DirStore {
	return &DirStore{dir: dir, namer: namer}
}

// Dir returns the output directory.
func (d *DirStore) Dir() string {
	return d.dir
}

// StoreDigest writes content for ref and returns the file path.
// The file is written to a temporary name and renamed into place, so an
// interrupted write never leaves a truncated digest behind. An existing
// file for the same reference is replaced.
func (d *DirStore) StoreDigest(ref Reference, content []byte) (string, error) {
	name := d.namer.Filename(ref)
	if name == "" || name != filepath.Base(name) {
		return "", &IOError{Ref: ref, Path: d.dir, Err: fmt.Errorf("invalid filename %q", name)}
	}
	path := filepath.Join(d.dir, name)

	if err := os.MkdirAll(d.dir, dirPerm); err != nil {
		return "", &IOError{Ref: ref, Path: d.dir, Err: err}
	}

	tmp, err := os.CreateTemp(d.dir, "."+name+".*.tmp")
	if err != nil {
		return "", &IOError{Ref: ref, Path: path, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		return "", &IOError{Ref: ref, Path: path, Err: errors.Join(err, tmp.Close(), os.Remove(tmpName))}
	}
	if err := tmp.Close(); err != nil {
		return "", &IOError{Ref: ref, Path: path, Err: errors.Join(err, os.Remove(tmpName))}
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		return "", &IOError{Ref: ref, Path: path, Err: errors.Join(err, os.Remove(tmpName))}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", &IOError{Ref: ref, Path: path, Err: errors.Join(err, os.Remove(tmpName))}
	}
	return path, nil
}
