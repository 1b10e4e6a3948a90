// Package objectstore stores uploaded evidence files on local disk or S3.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dalemusser/questhub/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotFound is returned when deleting an object that does not exist.
	ErrNotFound = errors.New("object not found")
	// ErrBadID is returned for storage ids this package did not generate.
	ErrBadID = errors.New("invalid storage id")
)

// PutOptions describes an object being stored.
type PutOptions struct {
	ContentType string
	Size        int64
}

// Store is a flat key space of uploaded files.
type Store interface {
	Put(ctx context.Context, id string, r io.Reader, opts *PutOptions) error
	Delete(ctx context.Context, id string) error
	URL(id string) string
}

// Object is the result of an upload.
type Object struct {
	URL          string `json:"url"`
	StorageID    string `json:"storage_id"`
	ResourceType string `json:"resource_type"`
}

// NewID returns a fresh storage id owned by ownerID that keeps the
// extension of filename.
func NewID(ownerID primitive.ObjectID, filename string) string {
	return ownerID.Hex() + "-" + uuid.New().String() + cleanExt(filename)
}

// OwnerOf returns the user that uploaded id.
func OwnerOf(id string) (primitive.ObjectID, error) {
	if !ValidID(id) {
		return primitive.NilObjectID, ErrBadID
	}
	return primitive.ObjectIDFromHex(id[:24])
}

// ValidID reports whether id has the shape produced by NewID.
func ValidID(id string) bool {
	if len(id) < 24+1+36 || id[24] != '-' {
		return false
	}
	if _, err := primitive.ObjectIDFromHex(id[:24]); err != nil {
		return false
	}
	if _, err := uuid.Parse(id[25:61]); err != nil {
		return false
	}
	rest := id[61:]
	return rest == "" || rest == cleanExt("x"+rest)
}

func cleanExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for i := 1; i < len(ext); i++ {
		c := ext[i]
		if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9') {
			return ""
		}
	}
	return ext
}

// ResourceType maps a MIME type to an evidence resource type.
func ResourceType(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(ct, "image/"):
		return models.ResourceImage
	case strings.HasPrefix(ct, "video/"):
		return models.ResourceVideo
	}
	return models.ResourceRaw
}

// Upload stores r under a new id for ownerID and describes the result.
func Upload(ctx context.Context, s Store, ownerID primitive.ObjectID, filename string, r io.Reader, opts *PutOptions) (Object, error) {
	id := NewID(ownerID, filename)
	if err := s.Put(ctx, id, r, opts); err != nil {
		return Object{}, fmt.Errorf("failed to upload file: %w", err)
	}
	ct := ""
	if opts != nil {
		ct = opts.ContentType
	}
	return Object{URL: s.URL(id), StorageID: id, ResourceType: ResourceType(ct)}, nil
}
