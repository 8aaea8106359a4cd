package service

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/noopta/situationship-ai/common/id"
	"github.com/noopta/situationship-ai/common/llm"
	"github.com/noopta/situationship-ai/common/logger"
	"github.com/noopta/situationship-ai/internal/analysis"
	"github.com/noopta/situationship-ai/internal/model"
	"github.com/noopta/situationship-ai/internal/store"
)

var (
	ErrNoImages             = errors.New("no images provided")
	ErrTooManyImages        = errors.New("too many images")
	ErrImageTooLarge        = errors.New("image too large")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrRunNotFound          = errors.New("analysis run not found")
)

type AnalysisConfig struct {
	ChunkSize    int
	Concurrency  int
	MaxFiles     int
	MaxFileBytes int64
	MaxTokens    int
	Temperature  float64
	CacheTTL     time.Duration
}

type AnalysisResult struct {
	// Zero when the result came from the cache and no run was recorded.
	ID         int64
	Analysis   string
	GroupCount int
	Cached     bool
}

type AnalysisService interface {
	Analyze(ctx context.Context, images []model.Image) (*AnalysisResult, error)
	GetRun(ctx context.Context, id int64) (*model.AnalysisRun, error)
}

type analysisService struct {
	llm   llm.VisionClient
	runs  store.AnalysisRunStore
	cache store.ResultCache
	cfg   AnalysisConfig
}

func NewAnalysisService(client llm.VisionClient, runs store.AnalysisRunStore, cache store.ResultCache, cfg AnalysisConfig) AnalysisService {
	return &analysisService{
		llm:   client,
		runs:  runs,
		cache: cache,
		cfg:   cfg,
	}
}

func (s *analysisService) Analyze(ctx context.Context, images []model.Image) (*AnalysisResult, error) {
	if err := s.validate(images); err != nil {
		return nil, err
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ImageCount: logger.Ptr(len(images)),
		Component:  "situationship.service.analysis",
	})

	groups := analysis.Chunk(images, s.cfg.ChunkSize)

	key := s.cacheKey(images)
	if cached, ok := s.lookup(ctx, key); ok {
		return &AnalysisResult{
			Analysis:   cached,
			GroupCount: len(groups),
			Cached:     true,
		}, nil
	}

	runID := id.New()
	ctx = logger.WithLogFields(ctx, logger.LogFields{AnalysisID: logger.Ptr(runID)})

	if _, err := s.runs.Create(ctx, &model.AnalysisRun{
		ID:         runID,
		ImageCount: int32(len(images)),
		GroupCount: int32(len(groups)),
		Status:     model.AnalysisStatusRunning,
	}); err != nil {
		slog.WarnContext(ctx, "failed to record analysis run", "error", err)
	}

	slog.InfoContext(ctx, "analysis started",
		"groups", len(groups),
		"chunk_size", s.cfg.ChunkSize,
		"concurrency", s.cfg.Concurrency,
		"model", s.llm.Model())

	start := time.Now()
	analyzer := analysis.New(s.cfg.Concurrency, s.analyzeGroup, s.mergeResults)
	final, err := analyzer.Run(ctx, groups)
	if err != nil {
		slog.ErrorContext(ctx, "analysis failed",
			"error", err,
			"retryable", llm.IsRetryable(ctx, err),
			"duration_ms", time.Since(start).Milliseconds())
		s.finish(ctx, runID, model.AnalysisStatusFailed, len(groups), err)
		return nil, fmt.Errorf("analyze images: %w", err)
	}

	slog.InfoContext(ctx, "analysis completed",
		"groups", len(groups),
		"duration_ms", time.Since(start).Milliseconds(),
		"analysis_length", len(final))
	s.finish(ctx, runID, model.AnalysisStatusSucceeded, len(groups), nil)

	if err := s.cache.Set(ctx, key, final, s.cfg.CacheTTL); err != nil {
		slog.WarnContext(ctx, "failed to cache analysis", "error", err)
	}

	return &AnalysisResult{
		ID:         runID,
		Analysis:   final,
		GroupCount: len(groups),
	}, nil
}

func (s *analysisService) GetRun(ctx context.Context, runID int64) (*model.AnalysisRun, error) {
	run, err := s.runs.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("get analysis run: %w", err)
	}
	return run, nil
}

func (s *analysisService) validate(images []model.Image) error {
	if len(images) == 0 {
		return ErrNoImages
	}
	if s.cfg.MaxFiles > 0 && len(images) > s.cfg.MaxFiles {
		return fmt.Errorf("%w: got %d, limit is %d", ErrTooManyImages, len(images), s.cfg.MaxFiles)
	}
	for _, img := range images {
		if !img.IsImage() {
			return fmt.Errorf("%w: %s (%s)", ErrUnsupportedMediaType, img.Filename, img.MediaType)
		}
		if s.cfg.MaxFileBytes > 0 && img.Size() > s.cfg.MaxFileBytes {
			return fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrImageTooLarge, img.Filename, img.Size(), s.cfg.MaxFileBytes)
		}
	}
	return nil
}

func (s *analysisService) analyzeGroup(ctx context.Context, group []model.Image) (string, error) {
	images := make([]llm.Image, len(group))
	for i, img := range group {
		images[i] = llm.Image{MediaType: img.MediaType, Data: img.Data}
	}

	resp, err := s.llm.Complete(ctx, llm.VisionRequest{
		SystemPrompt: analysisSystemPrompt,
		UserPrompt:   analysisTemplate,
		Images:       images,
		MaxTokens:    s.cfg.MaxTokens,
		Temperature:  llm.Temp(s.cfg.Temperature),
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (s *analysisService) mergeResults(ctx context.Context, partials []string) (string, error) {
	resp, err := s.llm.Complete(ctx, llm.VisionRequest{
		SystemPrompt: mergeSystemPrompt,
		UserPrompt:   mergeUserPrefix + strings.Join(partials, partialSeparator),
		MaxTokens:    s.cfg.MaxTokens,
		Temperature:  llm.Temp(s.cfg.Temperature),
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (s *analysisService) lookup(ctx context.Context, key string) (string, bool) {
	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "cache lookup failed", "error", err)
		return "", false
	}
	if ok {
		slog.InfoContext(ctx, "analysis served from cache")
	}
	return cached, ok
}

func (s *analysisService) finish(ctx context.Context, runID int64, status model.AnalysisStatus, groups int, cause error) {
	var errMsg *string
	if cause != nil {
		errMsg = logger.Ptr(logger.Truncate(cause.Error(), 1000))
	}
	if err := s.runs.Finish(ctx, runID, status, int32(groups), errMsg); err != nil {
		slog.WarnContext(ctx, "failed to finish analysis run", "error", err, "status", status)
	}
}

// cacheKey identifies a request by everything that shapes the model's output:
// prompt wording, model, grouping and the exact image bytes in order.
func (s *analysisService) cacheKey(images []model.Image) string {
	h := sha256.New()
	h.Write([]byte(promptVersion))
	h.Write([]byte{0})
	h.Write([]byte(s.llm.Model()))
	h.Write([]byte{0})

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(s.cfg.ChunkSize))
	h.Write(buf[:])

	for _, img := range images {
		h.Write([]byte(img.MediaType))
		h.Write([]byte{0})
		binary.BigEndian.PutUint64(buf[:], uint64(len(img.Data)))
		h.Write(buf[:])
		h.Write(img.Data)
	}
	return "analysis:" + promptVersion + ":" + hex.EncodeToString(h.Sum(nil))
}
