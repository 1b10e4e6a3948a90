package jsonutil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/questhub/internal/app/system/apierr"
	"go.uber.org/zap"
)

func TestError_Classified(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/tasks/x", nil)
	Error(rec, req, zap.NewNop(), apierr.Invalid("title is required", map[string]string{"title": "title is required"}))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "title is required" || body.Fields["title"] == "" {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestError_InternalHidesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	Error(rec, req, zap.NewNop(), errors.New("mongo: connection pool closed"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "mongo") {
		t.Errorf("internal detail leaked: %s", rec.Body.String())
	}
}

func TestDecodeStrict_UnknownField(t *testing.T) {
	var v struct {
		Status string `json:"status"`
	}
	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"Done","priority":"High"}`))
	err := DecodeStrict(httptest.NewRecorder(), req, &v)
	field, ok := UnknownField(err)
	if !ok || field != "priority" {
		t.Fatalf("UnknownField = %q, %v (err %v)", field, ok, err)
	}
	if !apierr.Is(err, apierr.KindValidation) {
		t.Errorf("err = %v, want validation", err)
	}
}

func TestDecode_Empty(t *testing.T) {
	var v map[string]any
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	err := Decode(httptest.NewRecorder(), req, &v)
	if !apierr.Is(err, apierr.KindValidation) {
		t.Errorf("err = %v, want validation", err)
	}
}
