package sync

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/modforge/modsync/internal/server/handlers/api"
	"github.com/modforge/modsync/internal/server/sync"
	"github.com/modforge/modsync/internal/utils"
)

type SyncHandler struct {
	svc *sync.SyncService
}

func New(svc *sync.SyncService) *SyncHandler {
	return &SyncHandler{svc: svc}
}

func (h *SyncHandler) GetSequence(ctx *gin.Context) {
	seq, err := h.svc.CurrentSequence()
	if err != nil {
		ctx.Error(err)
		ctx.PureJSON(http.StatusInternalServerError, api.APIError{
			Code:    api.CodeInternalError,
			Message: "failed to read sequence",
		})
		return
	}

	ctx.PureJSON(http.StatusOK, gin.H{
		"sequence": seq,
	})
}

func (h *SyncHandler) GetChanges(ctx *gin.Context) {
	since, err := strconv.ParseInt(ctx.DefaultQuery("since", "0"), 10, 64)
	if err != nil || since < 0 {
		ctx.PureJSON(http.StatusBadRequest, api.APIError{
			Code:    api.CodeInvalidRequest,
			Message: "`since` must be a non-negative integer",
		})
		return
	}

	current, entries, err := h.svc.ChangesSince(since)
	if err != nil {
		ctx.Error(err)
		ctx.PureJSON(http.StatusInternalServerError, api.APIError{
			Code:    api.CodeInternalError,
			Message: "failed to read changes",
		})
		return
	}

	ctx.PureJSON(http.StatusOK, gin.H{
		"sequence": current,
		"entries":  entries,
	})
}

func (h *SyncHandler) GetSnapshot(ctx *gin.Context) {
	snap, err := h.svc.Snapshot()
	if err != nil {
		ctx.Error(err)
		ctx.PureJSON(http.StatusInternalServerError, api.APIError{
			Code:    api.CodeInternalError,
			Message: "failed to build snapshot",
		})
		return
	}

	ctx.PureJSON(http.StatusOK, snap)
}

// GetHashes returns the fingerprint map under a path prefix. Keys are
// percent-encoded per segment, so names with spaces, '#' or '%' survive any
// consumer that treats the key as a URL path. Directories carry an empty
// fingerprint.
func (h *SyncHandler) GetHashes(ctx *gin.Context) {
	prefix := ctx.Query("path")

	records := h.svc.Hashes(prefix)
	files := make(map[string]string, len(records))
	for path, rec := range records {
		files[utils.EncodePathSegments(path)] = rec.Fingerprint
	}

	ctx.PureJSON(http.StatusOK, gin.H{
		"path":  prefix,
		"files": files,
	})
}

func (h *SyncHandler) DownloadFile(ctx *gin.Context) {
	rel := strings.TrimPrefix(ctx.Param("filepath"), "/")

	abs, err := h.svc.Resolve(rel)
	if err != nil {
		ctx.PureJSON(http.StatusBadRequest, api.APIError{
			Code:    api.CodeInvalidRequest,
			Message: err.Error(),
		})
		return
	}

	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		ctx.PureJSON(http.StatusNotFound, api.APIError{
			Code:    api.CodeNotFound,
			Message: "file not found",
		})
		return
	}

	ctx.File(abs)
}
