package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/noopta/situationship-ai/common/llm"
	"github.com/noopta/situationship-ai/internal/model"
)

type mockVisionClient struct {
	mu         sync.Mutex
	requests   []llm.VisionRequest
	completeFn func(ctx context.Context, req llm.VisionRequest) (*llm.Response, error)
}

func (m *mockVisionClient) Complete(ctx context.Context, req llm.VisionRequest) (*llm.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.completeFn != nil {
		return m.completeFn(ctx, req)
	}
	return &llm.Response{Content: "ok"}, nil
}

func (m *mockVisionClient) Model() string {
	return "test-model"
}

func (m *mockVisionClient) calls() []llm.VisionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.VisionRequest(nil), m.requests...)
}

type finishCall struct {
	id         int64
	status     model.AnalysisStatus
	groupCount int32
	errMsg     *string
}

type mockRunStore struct {
	created   []model.AnalysisRun
	finished  []finishCall
	createFn  func(ctx context.Context, run *model.AnalysisRun) (*model.AnalysisRun, error)
	getByIDFn func(ctx context.Context, id int64) (*model.AnalysisRun, error)
}

func (m *mockRunStore) Create(ctx context.Context, run *model.AnalysisRun) (*model.AnalysisRun, error) {
	m.created = append(m.created, *run)
	if m.createFn != nil {
		return m.createFn(ctx, run)
	}
	return run, nil
}

func (m *mockRunStore) Finish(_ context.Context, id int64, status model.AnalysisStatus, groupCount int32, errMsg *string) error {
	m.finished = append(m.finished, finishCall{id: id, status: status, groupCount: groupCount, errMsg: errMsg})
	return nil
}

func (m *mockRunStore) GetByID(ctx context.Context, id int64) (*model.AnalysisRun, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

type mockCache struct {
	data   map[string]string
	sets   []string
	ttl    time.Duration
	getErr error
}

func newMockCache() *mockCache {
	return &mockCache{data: map[string]string{}}
}

func (m *mockCache) Get(_ context.Context, key string) (string, bool, error) {
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mockCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.sets = append(m.sets, key)
	m.data[key] = value
	m.ttl = ttl
	return nil
}

func png(data string) model.Image {
	return model.Image{Filename: data + ".png", MediaType: "image/png", Data: []byte(data)}
}
