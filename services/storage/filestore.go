package storage

import (
	"os"
	"path/filepath"
)

// FileStore is a directory-backed BlockStorage for host builds and tests.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (fs *FileStore) Init() error {
	return os.MkdirAll(fs.dir, 0o755)
}

func (fs *FileStore) Open(name string) (File, error) {
	f, err := os.OpenFile(filepath.Join(fs.dir, name),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &osFile{f: f}, nil
}

func (fs *FileStore) Deinit() error { return nil }

type osFile struct {
	f *os.File
}

func (o *osFile) Append(p []byte) error {
	_, err := o.f.Write(p)
	return err
}

func (o *osFile) Size() (int64, error) {
	st, err := o.f.Stat()
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}

func (o *osFile) Close() error { return o.f.Close() }
