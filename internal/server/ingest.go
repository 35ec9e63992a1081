package server

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mohammad-safakhou/ragrouter/knowledge/ingest"
	kmodels "github.com/mohammad-safakhou/ragrouter/knowledge/models"
	"github.com/mohammad-safakhou/ragrouter/tools/web_fetch"
	"go.uber.org/zap"
)

const uploadBodyLimit = "32M"

// Ingester indexes documents into the local knowledge base.
type Ingester interface {
	Ingest(ctx context.Context, docs []kmodels.DocInput) (kmodels.IngestResponse, error)
}

// IngestHandler accepts uploaded files and page URLs and indexes them.
type IngestHandler struct {
	ingester Ingester
	parser   ingest.Parser
	fetcher  web_fetch.WebFetcher
	logger   *zap.Logger
}

func (h *IngestHandler) Register(g *echo.Group) {
	g.POST("/ingest", h.ingest, middleware.BodyLimit(uploadBodyLimit))
}

type ingestResponse struct {
	Status         string   `json:"status"`
	Message        string   `json:"message"`
	FilesProcessed int      `json:"files_processed"`
	ChunksCreated  int      `json:"chunks_created"`
	Skipped        []string `json:"skipped,omitempty"`
}

// ingest reads multipart "files" and a comma-separated "urls" field, stores
// uploads in a scratch directory for the attachment parser and indexes what
// could be read.
func (h *IngestHandler) ingest(c echo.Context) error {
	if h.ingester == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "knowledge base not configured")
	}
	var refs []string
	for _, u := range strings.Split(c.FormValue("urls"), ",") {
		if u = strings.TrimSpace(u); u != "" {
			refs = append(refs, u)
		}
	}

	var uploads []*multipart.FileHeader
	if form, err := c.MultipartForm(); err == nil {
		uploads = form.File["files"]
	}
	if len(refs) == 0 && len(uploads) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no files or urls provided")
	}

	names := map[string]string{}
	if len(uploads) > 0 {
		dir, err := os.MkdirTemp("", "ragrouter-upload-")
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		defer os.RemoveAll(dir)
		for i, fh := range uploads {
			path, err := saveUpload(dir, i, fh)
			if err != nil {
				h.logger.Warn("upload rejected", zap.String("filename", fh.Filename), zap.Error(err))
				continue
			}
			names[ingest.FileURL(path)] = filepath.Base(path)
			refs = append(refs, path)
		}
	}

	ctx := c.Request().Context()
	docs, skipped := ingest.Collect(ctx, refs, h.parser, h.fetcher, h.logger)
	for i, d := range docs {
		if name, ok := names[d.URL]; ok {
			docs[i].URL = "upload://" + name
		}
	}
	for i, s := range skipped {
		if name, ok := names[ingest.FileURL(s)]; ok {
			skipped[i] = name
		}
	}
	if len(docs) == 0 {
		return c.JSON(http.StatusUnprocessableEntity, ingestResponse{
			Status:  "error",
			Message: "nothing could be read from the provided files or urls",
			Skipped: skipped,
		})
	}

	resp, err := h.ingester.Ingest(ctx, docs)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.logger.Info("documents ingested",
		zap.Int("documents", resp.Documents),
		zap.Int("chunks", resp.Chunks),
		zap.Int("skipped", len(skipped)))
	return c.JSON(http.StatusOK, ingestResponse{
		Status:         "success",
		Message:        fmt.Sprintf("Successfully ingested %d file(s)", resp.Documents),
		FilesProcessed: resp.Documents,
		ChunksCreated:  resp.Chunks,
		Skipped:        skipped,
	})
}

// saveUpload copies one upload to dir/<i>/<base name>, keeping the original
// name so it becomes the document title.
func saveUpload(dir string, i int, fh *multipart.FileHeader) (string, error) {
	name := filepath.Base(filepath.Clean("/" + fh.Filename))
	if name == "/" || name == "." {
		return "", fmt.Errorf("invalid filename %q", fh.Filename)
	}
	sub := filepath.Join(dir, strconv.Itoa(i))
	if err := os.Mkdir(sub, 0o700); err != nil {
		return "", err
	}
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()
	path := filepath.Join(sub, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return "", err
	}
	return path, dst.Close()
}
