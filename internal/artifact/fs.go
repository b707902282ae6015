package artifact

import (
	"fmt"
	"os"
	"path/filepath"
)

// FSStore keeps artifacts as files in one directory. Both blobs are
// written to temp files first; the encoder is renamed into place
// before the model, so a visible model key implies a durable encoder.
type FSStore struct {
	dir string
}

func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: create store dir: %w", err)
	}
	return &FSStore{dir: dir}, nil
}

func (s *FSStore) Publish(version string, modelBlob, encoderBlob []byte) (string, error) {
	modelKey := ModelKey(version)
	encoderKey := EncoderKey(modelKey)

	if err := s.writeAtomic(encoderKey, encoderBlob); err != nil {
		return "", err
	}
	if err := s.writeAtomic(modelKey, modelBlob); err != nil {
		// Model never became visible; remove the orphaned encoder.
		_ = os.Remove(filepath.Join(s.dir, encoderKey))
		return "", err
	}
	return modelKey, nil
}

func (s *FSStore) Load(modelKey string) ([]byte, []byte, error) {
	modelBlob, err := os.ReadFile(filepath.Join(s.dir, modelKey))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrArtifactLoad, err)
	}
	encoderBlob, err := os.ReadFile(filepath.Join(s.dir, EncoderKey(modelKey)))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrArtifactLoad, err)
	}
	return modelBlob, encoderBlob, nil
}

func (s *FSStore) writeAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("artifact: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("artifact: write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("artifact: close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("artifact: publish %s: %w", name, err)
	}
	return nil
}
