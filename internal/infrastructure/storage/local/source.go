// Package local serves elaboration sets and pose outputs from directories on
// disk, the default storage backend. Elaboration sets follow the fixed naming
// convention: one SDF per canonical selection key.
package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/molforge/fragelab/internal/domain/fragment"
	"github.com/molforge/fragelab/internal/domain/run"
	"github.com/molforge/fragelab/internal/infrastructure/monitoring/logging"
	"github.com/molforge/fragelab/pkg/errors"
	"github.com/molforge/fragelab/pkg/types/common"
)

// ElaborationDir reads elaboration sets from one directory,
// "<dir>/<key filename>".
type ElaborationDir struct {
	dir    string
	logger logging.Logger
}

var _ fragment.ElaborationSource = (*ElaborationDir)(nil)

// NewElaborationDir creates the directory-backed elaboration source.
func NewElaborationDir(dir string, logger logging.Logger) *ElaborationDir {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ElaborationDir{dir: dir, logger: logger.Named("elaborations")}
}

// Open returns the SDF file for the key. A missing file surfaces as the
// missing-data-file code, same as the bucket-backed source.
func (s *ElaborationDir) Open(_ context.Context, key fragment.ElaborationKey) (io.ReadCloser, error) {
	path := filepath.Join(s.dir, key.Filename())
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf(errors.ErrCodeElaborationNotFound,
				"no elaboration set for %s", key.String())
		}
		return nil, errors.Wrapf(err, errors.ErrCodeElaborationRead, "open %s", path)
	}
	s.logger.Debug("elaboration set opened", logging.String("path", path))
	return f, nil
}

// PoseDir writes each run's best pose under "<dir>/<runID>/".
type PoseDir struct {
	dir    string
	logger logging.Logger
}

var _ run.PoseStore = (*PoseDir)(nil)

// NewPoseDir creates the directory-backed pose store.
func NewPoseDir(dir string, logger logging.Logger) *PoseDir {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &PoseDir{dir: dir, logger: logger.Named("poses")}
}

// SavePose writes one rendered pose and returns its path.
func (s *PoseDir) SavePose(_ context.Context, runID common.ID, name string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New(errors.ErrCodeValidation, "empty pose payload")
	}

	runDir := filepath.Join(s.dir, string(runID))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", errors.Wrapf(err, errors.ErrCodeObjectStore, "create pose directory %s", runDir)
	}

	path := filepath.Join(runDir, sanitizeFileName(name)+".sdf")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrapf(err, errors.ErrCodeObjectStore, "write pose %s", path)
	}

	s.logger.Debug("pose written",
		logging.String("path", path),
		logging.Int("bytes", len(data)))
	return path, nil
}

// sanitizeFileName keeps candidate names path-safe. Titles come straight
// from SDF title lines and may hold anything.
func sanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "pose"
	}
	repl := strings.NewReplacer("/", "_", "\\", "_", " ", "_", ":", "_")
	return repl.Replace(name)
}
