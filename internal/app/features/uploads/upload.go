// internal/app/features/uploads/upload.go
package uploads

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/dalemusser/questhub/internal/app/features/shared"
	"github.com/dalemusser/questhub/internal/app/system/apierr"
	"github.com/dalemusser/questhub/internal/app/system/authz"
	"github.com/dalemusser/questhub/internal/app/system/jsonutil"
	"github.com/dalemusser/questhub/internal/app/system/limits"
	"github.com/dalemusser/questhub/internal/app/system/objectstore"
	"github.com/dalemusser/questhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// sniffLen is how much of a file http.DetectContentType looks at.
const sniffLen = 512

// HandleUpload handles POST /api/uploads (multipart, field "file").
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	a, err := shared.Actor(r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	if h.Store == nil {
		jsonutil.Error(w, r, h.Log, apierr.Upstream("file storage is not configured", nil))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxUploadSize)
	if err := r.ParseMultipartForm(limits.MaxMultipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			jsonutil.Error(w, r, h.Log, apierr.Invalid("file is too large (limit 25 MB)", map[string]string{"file": "File is too large."}))
			return
		}
		jsonutil.Error(w, r, h.Log, apierr.Invalid("expected a multipart upload", nil))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonutil.Error(w, r, h.Log, apierr.Invalid("File is required.", map[string]string{"file": "File is required."}))
		return
	}
	defer file.Close()
	if header.Size == 0 {
		jsonutil.Error(w, r, h.Log, apierr.Invalid("File is empty.", map[string]string{"file": "File is empty."}))
		return
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	head = head[:n]
	ct := contentType(header.Header.Get("Content-Type"), head)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Upstream())
	defer cancel()

	obj, err := objectstore.Upload(ctx, h.Store, a.ID, header.Filename,
		io.MultiReader(bytes.NewReader(head), file),
		&objectstore.PutOptions{ContentType: ct, Size: header.Size})
	if err != nil {
		jsonutil.Error(w, r, h.Log, apierr.Upstream("storing the file failed", err))
		return
	}

	h.Log.Info("file uploaded",
		zap.String("user_id", a.ID.Hex()),
		zap.String("storage_id", obj.StorageID),
		zap.String("content_type", ct),
		zap.Int64("size", header.Size))
	jsonutil.Created(w, obj)
}

// contentType trusts a declared type unless it is missing or generic, in
// which case the bytes decide.
func contentType(declared string, head []byte) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
		return mt
	}
	sniffed := http.DetectContentType(head)
	if mt, _, err := mime.ParseMediaType(sniffed); err == nil {
		return mt
	}
	return "application/octet-stream"
}

// HandleDelete handles DELETE /api/uploads/{storageID}. Only the uploader
// or an admin may delete a file.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	a, err := shared.Actor(r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	if h.Store == nil {
		jsonutil.Error(w, r, h.Log, apierr.Upstream("file storage is not configured", nil))
		return
	}

	id := strings.TrimSpace(chi.URLParam(r, "storageID"))
	owner, err := objectstore.OwnerOf(id)
	if err != nil {
		jsonutil.Error(w, r, h.Log, apierr.Invalid("bad storage id", nil))
		return
	}
	if owner != a.ID && !authz.IsAdmin(r) {
		jsonutil.Error(w, r, h.Log, apierr.Forbidden("you can only delete your own files"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Upstream())
	defer cancel()

	if err := h.Store.Delete(ctx, id); err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			jsonutil.Error(w, r, h.Log, apierr.NotFound("file not found"))
			return
		}
		jsonutil.Error(w, r, h.Log, apierr.Upstream("deleting the file failed", err))
		return
	}
	h.Log.Info("file deleted", zap.String("user_id", a.ID.Hex()), zap.String("storage_id", id))
	w.WriteHeader(http.StatusNoContent)
}
