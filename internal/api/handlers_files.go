// handlers_files.go - Uploaded input file handlers
package api

import (
	"bytes"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/uav-shift/backend/internal/models"
	"github.com/uav-shift/backend/internal/storage"
)

// defaultListLimit caps file listings without an explicit limit
const defaultListLimit = 50

// FileHandlerImpl implements the FileHandler interface
type FileHandlerImpl struct {
	store storage.Store
}

// NewFileHandler creates a new file handler instance
func NewFileHandler(store storage.Store) FileHandler {
	return &FileHandlerImpl{store: store}
}

// HandleUploadFile accepts a multipart "file" field, or a JSON body with a
// name and base64 data, and stores it with its detected kind.
func (h *FileHandlerImpl) HandleUploadFile(c echo.Context) error {
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, err := c.FormFile("file")
		if err != nil {
			return NewValidationError("file")
		}
		src, err := fh.Open()
		if err != nil {
			return NewBadRequestError("cannot read uploaded file", err)
		}
		defer src.Close()

		info, err := h.store.Save(fh.Filename, src)
		if err != nil {
			return NewBadRequestError("failed to save file", err)
		}
		return c.JSON(http.StatusCreated, info)
	}

	var req uploadFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return NewBadRequestError("invalid base64 data", err)
	}

	info, err := h.store.Save(req.Name, bytes.NewReader(decoded))
	if err != nil {
		return NewBadRequestError("failed to save file", err)
	}
	return c.JSON(http.StatusCreated, info)
}

// HandleListFiles returns recent uploads, optionally filtered by ?kind=
func (h *FileHandlerImpl) HandleListFiles(c echo.Context) error {
	limit := defaultListLimit
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return NewValidationError("limit")
		}
		limit = n
	}

	files, err := h.store.List(models.InputKind(c.QueryParam("kind")), limit)
	if err != nil {
		return NewInternalError("failed to list files", err)
	}
	return c.JSON(http.StatusOK, files)
}

// HandleGetFile returns metadata for one upload
func (h *FileHandlerImpl) HandleGetFile(c echo.Context) error {
	id := c.Param("id")
	info, err := h.store.Get(id)
	if err != nil {
		return NewNotFoundError("file", id)
	}
	return c.JSON(http.StatusOK, info)
}

// HandleDeleteFile removes an upload
func (h *FileHandlerImpl) HandleDeleteFile(c echo.Context) error {
	id := c.Param("id")
	if err := h.store.Delete(id); err != nil {
		return FromDomainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type uploadFileRequest struct {
	Name string `json:"name"`
	Data string `json:"data"` // Base64-encoded content
}

func (r *uploadFileRequest) validate() error {
	if r.Name == "" {
		return NewValidationError("name")
	}
	if r.Data == "" {
		return NewValidationError("data")
	}
	return nil
}
