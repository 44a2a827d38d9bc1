package bridge

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/cvette/pmflow/internal/framework"
	"github.com/cvette/pmflow/internal/message"
)

const uploadFilePattern = "upload"

// uploadSpool spools uploaded files of one request to temp files and
// removes them again when the request is done.
type uploadSpool struct {
	dir   string
	paths []string
	log   *zap.Logger
}

func newUploadSpool(dir string, log *zap.Logger) *uploadSpool {
	return &uploadSpool{dir: dir, log: log}
}

// MapFiles walks the generic file tree, spooling every leaf, and returns
// the equivalent native tree.
func (s *uploadSpool) MapFiles(files message.Files) (framework.Files, error) {
	mapped := make(framework.Files, len(files))

	for key, node := range files {
		if node == nil {
			continue
		}

		if node.IsLeaf() {
			file, err := s.spool(node.File)
			if err != nil {
				return nil, fmt.Errorf("failed to spool upload %q: %w", key, err)
			}

			mapped[key] = &framework.FileNode{File: file}
			continue
		}

		children, err := s.MapFiles(node.Children)
		if err != nil {
			return nil, err
		}

		mapped[key] = &framework.FileNode{Children: children}
	}

	return mapped, nil
}

func (s *uploadSpool) spool(f *message.UploadedFile) (*framework.UploadedFile, error) {
	// failed uploads carry no content worth spooling
	if f.Error != message.UploadErrOK || f.Stream == nil {
		return framework.NewUploadedFile("", f.Size, f.Error, f.ClientFilename, f.ClientMediaType), nil
	}

	tmp, err := os.CreateTemp(s.dir, uploadFilePattern)
	if err != nil {
		return nil, err
	}
	defer tmp.Close()

	s.paths = append(s.paths, tmp.Name())

	if _, err := io.Copy(tmp, f.Stream); err != nil {
		return nil, err
	}

	return framework.NewUploadedFile(tmp.Name(), f.Size, f.Error, f.ClientFilename, f.ClientMediaType), nil
}

// Cleanup removes all spooled files. Files that no longer exist and
// failed removals are ignored.
func (s *uploadSpool) Cleanup() {
	for _, path := range s.paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.log.Debug("failed to remove upload", zap.String("path", path), zap.Error(err))
		}
	}

	s.paths = nil
}
