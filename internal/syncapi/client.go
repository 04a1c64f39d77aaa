// Package syncapi is the typed HTTP client for the mod authority's sync API.
package syncapi

import (
	"fmt"
	"runtime"
	"time"

	"github.com/imroc/req/v3"

	"github.com/modforge/modsync/internal/utils"
	"github.com/modforge/modsync/internal/version"
)

const (
	HeaderUserAgent     = "User-Agent"
	HeaderClientVersion = "X-ModSync-Version"
	HeaderDeviceId      = "X-ModSync-Device-Id"
)

var UserAgent = fmt.Sprintf("ModSync/%s (%s; %s; %s)", version.Version, version.Revision, runtime.GOOS, runtime.GOARCH)

// Client wraps the shared HTTP client with the sync endpoints.
type Client struct {
	http *req.Client
	Sync *SyncAPI
}

func New(baseURL string) (*Client, error) {
	if baseURL == "" {
		return nil, ErrNoServerURL
	}

	http := req.C().
		SetBaseURL(baseURL).
		SetCommonRetryCount(3).
		SetCommonRetryFixedInterval(1*time.Second).
		SetUserAgent(UserAgent).
		SetCommonHeader(HeaderClientVersion, version.Version).
		SetCommonHeader(HeaderDeviceId, utils.HWID).
		SetCommonErrorResult(&APIError{}).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	return &Client{
		http: http,
		Sync: newSyncAPI(http),
	}, nil
}
