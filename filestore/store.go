// Package filestore keeps SDA key material and the agent directory as one JSON
// document per id on the local filesystem.
//
// Every entry is write-once. Documents are written to a temporary file and
// hard-linked into place, so a concurrent writer of the same id in this or
// another process sees the existing entry and no reader ever sees a partial
// document.
package filestore

import (
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/sda-network/sda"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	dirMode  = 0o700
	fileMode = 0o600
	docExt   = ".json"
)

// store is a directory of JSON documents keyed by a hex id
type store struct {
	dir string
}

func newStore(root, name string) (*store, error) {
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, unavailable(errors.Wrapf(err, "create directory %s", dir))
	}
	return &store{dir: dir}, nil
}

func (s *store) path(id string) string {
	return filepath.Join(s.dir, id+docExt)
}

// put writes v under id. It fails with sda.ErrDuplicateKey if id exists.
func (s *store) put(id string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "marshal %s", id)
	}
	defer clear(data)
	return s.putRaw(id, data)
}

func (s *store) putRaw(id string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".tmp-"+id+"-*")
	if err != nil {
		return unavailable(errors.Wrap(err, "create temp file"))
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err = tmp.Write(data); err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return unavailable(errors.Wrapf(err, "write %s", tmpName))
	}
	if err := os.Chmod(tmpName, fileMode); err != nil {
		return unavailable(errors.Wrapf(err, "chmod %s", tmpName))
	}

	// link fails if the final name exists, which makes the insert atomic
	if err := os.Link(tmpName, s.path(id)); err != nil {
		if os.IsExist(err) {
			return sda.ErrDuplicateKey.WithContext("id", id)
		}
		return unavailable(errors.Wrapf(err, "link %s", id))
	}
	return nil
}

// get decodes the document under id into v and reports whether it existed
func (s *store) get(id string, v interface{}) (bool, error) {
	data, ok, err := s.getRaw(id)
	if err != nil || !ok {
		return ok, err
	}
	defer clear(data)
	if err := json.Unmarshal(data, v); err != nil {
		return false, unavailable(errors.Wrapf(err, "decode %s", id))
	}
	return true, nil
}

func (s *store) getRaw(id string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, unavailable(errors.Wrapf(err, "read %s", id))
	}
	return data, true, nil
}

// ids lists every stored id, skipping temporary files
func (s *store) ids() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, unavailable(errors.Wrapf(err, "list %s", s.dir))
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, docExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, docExt))
	}
	return ids, nil
}

func unavailable(err error) error {
	return sda.ErrStorageUnavailable.WithCause(err)
}
