package syncapi

import (
	"context"
	"strconv"

	"github.com/imroc/req/v3"

	"github.com/modforge/modsync/internal/changelog"
	"github.com/modforge/modsync/internal/snapshot"
	"github.com/modforge/modsync/internal/utils"
)

const (
	v1Sequence = "/api/v1/sync/sequence"
	v1Changes  = "/api/v1/sync/changes"
	v1Snapshot = "/api/v1/sync/snapshot"
	v1Hashes   = "/api/v1/sync/hashes"
	v1File     = "/api/v1/sync/file/"
)

// SequenceResponse is the authority's current changelog position.
type SequenceResponse struct {
	Sequence int64 `json:"sequence"`
}

// ChangesResponse is the changelog suffix after the requested sequence,
// in ascending order, plus the sequence it brings the caller up to.
type ChangesResponse struct {
	Sequence int64             `json:"sequence"`
	Entries  []changelog.Entry `json:"entries"`
}

// HashesResponse maps slash-relative paths under the requested prefix to
// their fingerprints. The wire form carries per-segment percent-encoded
// keys; Hashes decodes them before returning.
type HashesResponse struct {
	Path  string            `json:"path"`
	Files map[string]string `json:"files"`
}

// SyncAPI talks to the authority's sync endpoints.
type SyncAPI struct {
	client *req.Client
}

func newSyncAPI(client *req.Client) *SyncAPI {
	return &SyncAPI{client: client}
}

// CurrentSequence returns the authority's latest changelog sequence.
func (s *SyncAPI) CurrentSequence(ctx context.Context) (int64, error) {
	var result SequenceResponse
	res, err := s.client.R().
		SetContext(ctx).
		SetSuccessResult(&result).
		Get(v1Sequence)

	if err := handleAPIError(res, err, "sync sequence"); err != nil {
		return 0, err
	}
	return result.Sequence, nil
}

// ChangesSince fetches the changelog entries recorded after since.
func (s *SyncAPI) ChangesSince(ctx context.Context, since int64) (*ChangesResponse, error) {
	var result ChangesResponse
	res, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("since", strconv.FormatInt(since, 10)).
		SetSuccessResult(&result).
		Get(v1Changes)

	if err := handleAPIError(res, err, "sync changes"); err != nil {
		return nil, err
	}
	return &result, nil
}

// Snapshot fetches the authority's full current state.
func (s *SyncAPI) Snapshot(ctx context.Context) (*snapshot.Snapshot, error) {
	var result snapshot.Snapshot
	res, err := s.client.R().
		SetContext(ctx).
		SetSuccessResult(&result).
		Get(v1Snapshot)

	if err := handleAPIError(res, err, "sync snapshot"); err != nil {
		return nil, err
	}
	return &result, nil
}

// Hashes fetches the fingerprint map under one relative path prefix.
func (s *SyncAPI) Hashes(ctx context.Context, relPath string) (*HashesResponse, error) {
	var result HashesResponse
	res, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("path", relPath).
		SetSuccessResult(&result).
		Get(v1Hashes)

	if err := handleAPIError(res, err, "sync hashes"); err != nil {
		return nil, err
	}

	decoded := make(map[string]string, len(result.Files))
	for path, fp := range result.Files {
		decoded[utils.DecodePathSegments(path)] = fp
	}
	result.Files = decoded
	return &result, nil
}

// DownloadFile streams the file at relPath into destPath. Path segments are
// percent-encoded individually, so names with spaces, '#' or '%' survive the
// URL round trip.
func (s *SyncAPI) DownloadFile(ctx context.Context, relPath, destPath string) error {
	if err := utils.EnsureParent(destPath); err != nil {
		return err
	}

	res, err := s.client.R().
		SetContext(ctx).
		SetOutputFile(destPath).
		Get(v1File + utils.EncodePathSegments(relPath))

	return handleAPIError(res, err, "sync download "+relPath)
}
