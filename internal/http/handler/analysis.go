package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noopta/situationship-ai/common/id"
	"github.com/noopta/situationship-ai/common/logger"
	"github.com/noopta/situationship-ai/internal/http/dto"
	"github.com/noopta/situationship-ai/internal/model"
	"github.com/noopta/situationship-ai/internal/service"
)

// ImagesField is the multipart field the front-end uploads screenshots under.
const ImagesField = "images"

// multipartOverhead covers boundaries and part headers on top of the file bytes.
const multipartOverhead = 1 << 20

type UploadLimits struct {
	MaxFiles     int
	MaxFileBytes int64
}

func (l UploadLimits) maxBodyBytes() int64 {
	return int64(l.MaxFiles)*l.MaxFileBytes + multipartOverhead
}

type AnalysisHandler struct {
	service service.AnalysisService
	limits  UploadLimits
}

func NewAnalysisHandler(service service.AnalysisService, limits UploadLimits) *AnalysisHandler {
	return &AnalysisHandler{
		service: service,
		limits:  limits,
	}
}

func (h *AnalysisHandler) Analyze(c *gin.Context) {
	ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{Component: "situationship.http.analysis"})

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.limits.maxBodyBytes())

	form, err := c.MultipartForm()
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			slog.WarnContext(ctx, "upload exceeds body limit", "limit_bytes", maxErr.Limit)
			c.JSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponse("Upload too large", ""))
			return
		}
		slog.WarnContext(ctx, "invalid multipart form", "error", err)
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("No images provided", ""))
		return
	}

	files := form.File[ImagesField]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("No images provided", ""))
		return
	}
	if h.limits.MaxFiles > 0 && len(files) > h.limits.MaxFiles {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(
			"Too many images",
			fmt.Sprintf("at most %d images per request", h.limits.MaxFiles)))
		return
	}

	images, err := h.readImages(files)
	if err != nil {
		h.writeError(c, err)
		return
	}

	result, err := h.service.Analyze(ctx, images)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.AnalyzeResponse{
		Success:  true,
		Analysis: result.Analysis,
		ID:       result.ID,
		Groups:   result.GroupCount,
		Cached:   result.Cached,
	})
}

func (h *AnalysisHandler) GetRun(c *gin.Context) {
	ctx := c.Request.Context()

	runID, err := id.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("invalid analysis id", ""))
		return
	}

	run, err := h.service.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, service.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, dto.NewErrorResponse("analysis not found", ""))
			return
		}
		slog.ErrorContext(ctx, "failed to load analysis run", "error", err, "analysis_id", runID)
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("failed to load analysis", ""))
		return
	}

	c.JSON(http.StatusOK, dto.ToAnalysisRunResponse(run))
}

func (h *AnalysisHandler) writeError(c *gin.Context, err error) {
	ctx := c.Request.Context()

	switch {
	case errors.Is(err, service.ErrNoImages):
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("No images provided", ""))
	case errors.Is(err, service.ErrTooManyImages):
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("Too many images", err.Error()))
	case errors.Is(err, service.ErrImageTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponse("Image too large", err.Error()))
	case errors.Is(err, service.ErrUnsupportedMediaType):
		c.JSON(http.StatusUnsupportedMediaType, dto.NewErrorResponse("Only image uploads are supported", err.Error()))
	default:
		slog.ErrorContext(ctx, "error processing images", "error", err)
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("Error processing images", err.Error()))
	}
}

// readImages loads every uploaded file into memory. Oversized files are
// rejected from the part header before any bytes are read.
func (h *AnalysisHandler) readImages(files []*multipart.FileHeader) ([]model.Image, error) {
	images := make([]model.Image, 0, len(files))
	for _, fh := range files {
		if h.limits.MaxFileBytes > 0 && fh.Size > h.limits.MaxFileBytes {
			return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", service.ErrImageTooLarge, fh.Filename, fh.Size, h.limits.MaxFileBytes)
		}

		data, err := readFile(fh)
		if err != nil {
			return nil, err
		}

		images = append(images, model.Image{
			Filename:  fh.Filename,
			MediaType: mediaType(fh, data),
			Data:      data,
		})
	}
	return images, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", fh.Filename, err)
	}
	return data, nil
}

// mediaType trusts the part's declared type unless the browser sent a
// generic one, in which case the bytes are sniffed.
func mediaType(fh *multipart.FileHeader, data []byte) string {
	declared := fh.Header.Get("Content-Type")
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = declared[:i]
	}
	declared = strings.TrimSpace(strings.ToLower(declared))
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}

	sniffed := http.DetectContentType(data)
	if i := strings.IndexByte(sniffed, ';'); i >= 0 {
		sniffed = sniffed[:i]
	}
	return sniffed
}
