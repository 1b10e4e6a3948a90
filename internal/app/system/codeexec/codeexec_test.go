package codeexec

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLanguage(t *testing.T) {
	got, ok := Language(" Python3 ")
	assert.True(t, ok)
	assert.Equal(t, "python", got)

	got, ok = Language("cpp")
	assert.True(t, ok)
	assert.Equal(t, "c++", got)

	_, ok = Language("brainfuck")
	assert.False(t, ok)
}

func TestRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/execute", r.URL.Path)
		var req pistonRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "javascript", req.Language)
		require.Len(t, req.Files, 1)
		assert.Equal(t, "console.log(1)", req.Files[0].Content)
		w.Write([]byte(`{"run":{"stdout":"1\n","stderr":"","code":0}}`))
	}))
	defer srv.Close()

	res, err := New(srv.URL, 0).Run(context.Background(), "console.log(1)", "js")
	require.NoError(t, err)
	assert.Equal(t, Result{Stdout: "1\n", ExitCode: 0}, res)
}

func TestRun_CompileFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"compile":{"stderr":"syntax error","code":1},"run":{"stdout":"","stderr":"","code":null}}`))
	}))
	defer srv.Close()

	res, err := New(srv.URL, 0).Run(context.Background(), "int main( {", "c")
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, "syntax error", res.Stderr)
}

func TestRun_Errors(t *testing.T) {
	_, err := New("", 0).Run(context.Background(), "x", "python")
	assert.True(t, errors.Is(err, ErrDisabled))

	c := New("http://127.0.0.1:1", 0)
	_, err = c.Run(context.Background(), "x", "cobol")
	assert.True(t, errors.Is(err, ErrUnsupportedLanguage))

	_, err = c.Run(context.Background(), strings.Repeat("x", MaxCodeBytes+1), "python")
	assert.True(t, errors.Is(err, ErrTooLarge))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"runtime is unknown"}`))
	}))
	defer srv.Close()
	_, err = New(srv.URL, 0).Run(context.Background(), "x", "python")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runtime is unknown")
}
