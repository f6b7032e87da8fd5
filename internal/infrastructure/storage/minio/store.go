package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/molforge/fragelab/internal/domain/fragment"
	"github.com/molforge/fragelab/internal/domain/run"
	"github.com/molforge/fragelab/internal/infrastructure/monitoring/logging"
	"github.com/molforge/fragelab/pkg/errors"
	"github.com/molforge/fragelab/pkg/types/common"
)

// Object key layout inside the bucket.
const (
	elaborationPrefix = "elaborations/"
	posePrefix        = "poses/"

	sdfContentType = "chemical/x-mdl-sdfile"
)

// ─────────────────────────────────────────────────────────────────────────────
// Elaboration sets
// ─────────────────────────────────────────────────────────────────────────────

// ElaborationStore reads precomputed elaboration sets from the bucket, one
// SDF object per canonical key under elaborations/.
type ElaborationStore struct {
	client *Client
	logger logging.Logger
}

var _ fragment.ElaborationSource = (*ElaborationStore)(nil)

// NewElaborationStore creates the bucket-backed elaboration source.
func NewElaborationStore(client *Client, logger logging.Logger) *ElaborationStore {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ElaborationStore{client: client, logger: logger.Named("elaborations")}
}

// Open streams the SDF object for the key. A missing object surfaces as the
// missing-data-file code, same as the local directory source.
func (s *ElaborationStore) Open(ctx context.Context, key fragment.ElaborationKey) (io.ReadCloser, error) {
	api, err := s.client.API()
	if err != nil {
		return nil, err
	}

	object := elaborationPrefix + key.Filename()
	// GetObject defers errors to the first read, so stat up front to tell a
	// missing set apart from storage trouble.
	if _, err := api.StatObject(ctx, s.client.Bucket(), object, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, errors.Newf(errors.ErrCodeElaborationNotFound,
				"no elaboration set for %s", key.String())
		}
		return nil, errors.Wrapf(err, errors.ErrCodeObjectStore, "stat object %s", object)
	}

	rc, err := api.GetObject(ctx, s.client.Bucket(), object, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeObjectStore, "open object %s", object)
	}

	s.logger.Debug("elaboration set opened", logging.String("object", object))
	return rc, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Best poses
// ─────────────────────────────────────────────────────────────────────────────

// PoseStore persists each run's best pose under poses/<runID>/.
type PoseStore struct {
	client *Client
	logger logging.Logger
}

var _ run.PoseStore = (*PoseStore)(nil)

// NewPoseStore creates the bucket-backed pose store.
func NewPoseStore(client *Client, logger logging.Logger) *PoseStore {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &PoseStore{client: client, logger: logger.Named("poses")}
}

// SavePose stores one rendered pose and returns its bucket-qualified
// location.
func (s *PoseStore) SavePose(ctx context.Context, runID common.ID, name string, data []byte) (string, error) {
	api, err := s.client.API()
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.New(errors.ErrCodeValidation, "empty pose payload")
	}

	object := poseObjectName(runID, name)
	_, err = api.PutObject(ctx, s.client.Bucket(), object, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{
			ContentType: sdfContentType,
			UserMetadata: map[string]string{
				"run-id":    string(runID),
				"candidate": name,
			},
		})
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrCodeObjectStore, "store pose %s", object)
	}

	location := s.client.Bucket() + "/" + object
	s.logger.Debug("pose stored",
		logging.String("location", location),
		logging.Int("bytes", len(data)))
	return location, nil
}

// GetPose returns one stored pose SDF.
func (s *PoseStore) GetPose(ctx context.Context, runID common.ID, name string) ([]byte, error) {
	api, err := s.client.API()
	if err != nil {
		return nil, err
	}

	object := poseObjectName(runID, name)
	if _, err := api.StatObject(ctx, s.client.Bucket(), object, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, errors.Newf(errors.ErrCodeNotFound, "no stored pose for run %s candidate %q", runID, name)
		}
		return nil, errors.Wrapf(err, errors.ErrCodeObjectStore, "stat pose %s", object)
	}

	rc, err := api.GetObject(ctx, s.client.Bucket(), object, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeObjectStore, "open pose %s", object)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeObjectStore, "read pose %s", object)
	}
	return data, nil
}

// PresignPose returns a time-limited download URL for a stored pose.
func (s *PoseStore) PresignPose(ctx context.Context, runID common.ID, name string) (string, error) {
	api, err := s.client.API()
	if err != nil {
		return "", err
	}

	object := poseObjectName(runID, name)
	u, err := api.PresignedGetObject(ctx, s.client.Bucket(), object, s.client.cfg.PresignExpiry, nil)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrCodeObjectStore, "presign pose %s", object)
	}
	return u.String(), nil
}

func poseObjectName(runID common.ID, name string) string {
	return fmt.Sprintf("%s%s/%s.sdf", posePrefix, runID, sanitizeObjectName(name))
}

// sanitizeObjectName keeps candidate names path-safe inside the bucket.
// Titles come straight from SDF title lines and may hold anything.
func sanitizeObjectName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "pose"
	}
	repl := strings.NewReplacer("/", "_", "\\", "_", " ", "_", "#", "_", "?", "_")
	return repl.Replace(name)
}
