package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uav-shift/backend/internal/models"
	"github.com/uav-shift/backend/internal/storage"
	"github.com/uav-shift/backend/internal/testutil"
)

var _ storage.Store = (*testutil.MockStorage)(nil)

func jsonContext(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func requireAPIError(t *testing.T, err error, status int) *APIError {
	t.Helper()
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "expected *APIError, got %v", err)
	assert.Equal(t, status, apiErr.Status)
	return apiErr
}

func TestHandleUploadFile_Base64(t *testing.T) {
	e := echo.New()

	tests := []struct {
		name       string
		body       string
		saveErr    error
		wantStatus int
		wantKind   models.InputKind
	}{
		{
			name:       "corrections file",
			body:       `{"name":"gcp.csv","data":"` + base64.StdEncoding.EncodeToString([]byte(testutil.CorrectionsCSV)) + `"}`,
			wantStatus: http.StatusCreated,
			wantKind:   models.InputCorrections,
		},
		{
			name:       "missing name",
			body:       `{"data":"aGVsbG8="}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid base64",
			body:       `{"name":"gcp.csv","data":"!!not base64!!"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "store failure",
			body:       `{"name":"gcp.csv","data":"aGVsbG8="}`,
			saveErr:    errors.New("disk full"),
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMockStorage(t.TempDir())
			store.SaveErr = tt.saveErr
			h := NewFileHandler(store)

			c, rec := jsonContext(e, http.MethodPost, "/api/files", tt.body)
			err := h.HandleUploadFile(c)

			if tt.wantStatus != http.StatusCreated {
				requireAPIError(t, err, tt.wantStatus)
				assert.Equal(t, 0, store.GetFileCount())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, rec.Code)

			var info models.FileInfo
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
			assert.Equal(t, tt.wantKind, info.Kind)
			assert.Equal(t, 1, store.GetFileCount())
		})
	}
}

func TestHandleListFiles_KindAndLimit(t *testing.T) {
	e := echo.New()
	store := testutil.NewMockStorage(t.TempDir())
	store.AddFile("a", "track-a.csv", []byte(testutil.PPKCSV))
	store.AddFile("b", "track-b.csv", []byte(testutil.PPKCSV))
	store.AddFile("c", "gcp.csv", []byte(testutil.CorrectionsCSV))
	h := NewFileHandler(store)

	tests := []struct {
		name      string
		query     string
		wantCount int
		wantErr   bool
	}{
		{"all files", "", 3, false},
		{"only ppk", "?kind=ppk", 2, false},
		{"limited", "?kind=ppk&limit=1", 1, false},
		{"bad limit", "?limit=zero", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := jsonContext(e, http.MethodGet, "/api/files"+tt.query, "")
			err := h.HandleListFiles(c)
			if tt.wantErr {
				requireAPIError(t, err, http.StatusBadRequest)
				return
			}
			require.NoError(t, err)

			var files []models.FileInfo
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &files))
			assert.Len(t, files, tt.wantCount)
		})
	}
}

func TestHandleGetAndDeleteFile(t *testing.T) {
	e := echo.New()
	store := testutil.NewMockStorage(t.TempDir())
	store.AddFile("known", "gcp.csv", []byte(testutil.CorrectionsCSV))
	h := NewFileHandler(store)

	c, rec := jsonContext(e, http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues("known")
	require.NoError(t, h.HandleGetFile(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, _ = jsonContext(e, http.MethodGet, "/", "")
	c.SetParamNames("id")
	c.SetParamValues("missing")
	requireAPIError(t, h.HandleGetFile(c), http.StatusNotFound)

	c, rec = jsonContext(e, http.MethodDelete, "/", "")
	c.SetParamNames("id")
	c.SetParamValues("known")
	require.NoError(t, h.HandleDeleteFile(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, store.GetFileCount())

	c, _ = jsonContext(e, http.MethodDelete, "/", "")
	c.SetParamNames("id")
	c.SetParamValues("known")
	requireAPIError(t, h.HandleDeleteFile(c), http.StatusNotFound)
}
