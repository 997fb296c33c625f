package storage

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"

	errs "MChat/tools/errs"
	"MChat/tools/ids"
)

// FileStore persists uploaded attachment bytes on local disk and hands back
// the generated reference name. Names are snowflake-prefixed so they stay
// collision free and roughly time ordered.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errs.New("upload dir empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.WrapMsg(err, "mkdir upload dir", "dir", dir)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Dir() string { return s.dir }

// Save writes data under a generated name and syncs before returning, so
// the reference is only handed out once the bytes are durable.
func (s *FileStore) Save(name string, data []byte) error {
	path := filepath.Join(s.dir, filepath.Base(name))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errs.WrapMsg(err, "open upload file", "path", path)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return errs.WrapMsg(err, "write upload file", "path", path)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return errs.WrapMsg(err, "sync upload file", "path", path)
	}
	return errs.Wrap(f.Close())
}

// Read returns the stored bytes for a reference name.
func (s *FileStore) Read(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, filepath.Base(name)))
	if err != nil {
		return nil, errs.WrapMsg(err, "read upload file", "name", name)
	}
	return data, nil
}

// GenerateName builds the reference name from the original filename's
// extension: <snowflake><ext>.
func GenerateName(originalName string) string {
	ext := filepath.Ext(originalName)
	return ids.GenerateString() + ext
}

// DecodeDataURL accepts "<mime>;base64,<payload>" (and tolerates a bare
// base64 payload) and returns the raw bytes.
func DecodeDataURL(data string) ([]byte, error) {
	payload := data
	if i := strings.Index(data, "base64,"); i >= 0 {
		payload = data[i+len("base64,"):]
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, errs.WrapMsg(err, "decode attachment base64")
	}
	return raw, nil
}
