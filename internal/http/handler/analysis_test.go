package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/noopta/situationship-ai/internal/analysis"
	"github.com/noopta/situationship-ai/internal/http/handler"
	"github.com/noopta/situationship-ai/internal/model"
	"github.com/noopta/situationship-ai/internal/service"
)

var _ = Describe("AnalysisHandler", func() {
	var (
		router *gin.Engine
		svc    *mockAnalysisService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		svc = &mockAnalysisService{}
		h := handler.NewAnalysisHandler(svc, handler.UploadLimits{MaxFiles: 3, MaxFileBytes: 1024})
		router.POST("/api/analyze", h.Analyze)
		router.GET("/api/analyses/:id", h.GetRun)
		router.GET("/api/health", handler.Health)
	})

	post := func(uploads ...upload) *httptest.ResponseRecorder {
		body, contentType := multipartBody(uploads...)
		req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	decode := func(w *httptest.ResponseRecorder) map[string]any {
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		return resp
	}

	Describe("Analyze", func() {
		It("returns the merged analysis on success", func() {
			svc.analyzeFn = func(_ context.Context, images []model.Image) (*service.AnalysisResult, error) {
				return &service.AnalysisResult{ID: 1234567890123, Analysis: "final text", GroupCount: 2}, nil
			}

			w := post(pngUpload("a.png"), pngUpload("b.png"), pngUpload("c.png"))

			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decode(w)
			Expect(resp["success"]).To(BeTrue())
			Expect(resp["analysis"]).To(Equal("final text"))
			Expect(resp["id"]).To(Equal("1234567890123"))
			Expect(resp["groups"]).To(BeEquivalentTo(2))
			Expect(resp["cached"]).To(BeFalse())
		})

		It("passes images to the service in upload order", func() {
			w := post(pngUpload("first.png"), pngUpload("second.png"))

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(svc.received).To(HaveLen(2))
			Expect(svc.received[0].Filename).To(Equal("first.png"))
			Expect(svc.received[1].Filename).To(Equal("second.png"))
			Expect(svc.received[0].Data).To(Equal(pngBytes))
		})

		It("sniffs the media type when the part is declared as octet-stream", func() {
			post(pngUpload("shot.png"))

			Expect(svc.received).To(HaveLen(1))
			Expect(svc.received[0].MediaType).To(Equal("image/png"))
		})

		It("keeps the declared media type without parameters", func() {
			post(upload{field: "images", filename: "shot.jpg", contentType: "Image/JPEG; q=1", data: []byte("jpeg")})

			Expect(svc.received).To(HaveLen(1))
			Expect(svc.received[0].MediaType).To(Equal("image/jpeg"))
		})

		It("omits the id for cached results", func() {
			svc.analyzeFn = func(_ context.Context, _ []model.Image) (*service.AnalysisResult, error) {
				return &service.AnalysisResult{Analysis: "cached text", GroupCount: 1, Cached: true}, nil
			}

			w := post(pngUpload("a.png"))

			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decode(w)
			Expect(resp).NotTo(HaveKey("id"))
			Expect(resp["cached"]).To(BeTrue())
		})

		It("returns 400 when no images are uploaded", func() {
			w := post(upload{field: "other", filename: "a.png", data: pngBytes})

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(decode(w)).To(Equal(map[string]any{"success": false, "error": "No images provided"}))
			Expect(svc.received).To(BeNil())
		})

		It("returns 400 when the body is not a multipart form", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{}`))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(decode(w)["error"]).To(Equal("No images provided"))
		})

		It("returns 400 when more than the allowed number of images are uploaded", func() {
			w := post(pngUpload("1.png"), pngUpload("2.png"), pngUpload("3.png"), pngUpload("4.png"))

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(decode(w)["error"]).To(Equal("Too many images"))
			Expect(svc.received).To(BeNil())
		})

		It("returns 413 when a single file exceeds the size limit", func() {
			big := upload{field: "images", filename: "big.png", data: make([]byte, 2048)}

			w := post(big)

			Expect(w.Code).To(Equal(http.StatusRequestEntityTooLarge))
			Expect(decode(w)["success"]).To(BeFalse())
			Expect(svc.received).To(BeNil())
		})

		It("returns 413 when the whole body exceeds the upload limit", func() {
			small := gin.New()
			h := handler.NewAnalysisHandler(svc, handler.UploadLimits{MaxFiles: 1, MaxFileBytes: 16})
			small.POST("/api/analyze", h.Analyze)

			body, contentType := multipartBody(upload{field: "images", filename: "huge.png", data: make([]byte, 2<<20)})
			req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
			req.Header.Set("Content-Type", contentType)
			w := httptest.NewRecorder()

			small.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusRequestEntityTooLarge))
			Expect(decode(w)).To(Equal(map[string]any{"success": false, "error": "Upload too large"}))
			Expect(svc.received).To(BeNil())
		})

		It("returns 415 when the service rejects the media type", func() {
			svc.analyzeFn = func(_ context.Context, _ []model.Image) (*service.AnalysisResult, error) {
				return nil, fmt.Errorf("%w: notes.txt (text/plain)", service.ErrUnsupportedMediaType)
			}

			w := post(upload{field: "images", filename: "notes.txt", data: []byte("hello")})

			Expect(w.Code).To(Equal(http.StatusUnsupportedMediaType))
		})

		It("returns 500 with details when the analysis fails", func() {
			svc.analyzeFn = func(_ context.Context, _ []model.Image) (*service.AnalysisResult, error) {
				return nil, fmt.Errorf("analyze images: %w", &analysis.Error{
					Stage: analysis.StageAnalyze,
					Group: 1,
					Err:   errors.New("rate limited"),
				})
			}

			w := post(pngUpload("a.png"))

			Expect(w.Code).To(Equal(http.StatusInternalServerError))
			resp := decode(w)
			Expect(resp["success"]).To(BeFalse())
			Expect(resp["error"]).To(Equal("Error processing images"))
			Expect(resp["details"]).To(ContainSubstring("rate limited"))
		})
	})

	Describe("GetRun", func() {
		It("returns the run", func() {
			started := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
			svc.getRunFn = func(_ context.Context, id int64) (*model.AnalysisRun, error) {
				return &model.AnalysisRun{
					ID:         id,
					ImageCount: 5,
					GroupCount: 3,
					Status:     model.AnalysisStatusSucceeded,
					StartedAt:  started,
				}, nil
			}

			req := httptest.NewRequest(http.MethodGet, "/api/analyses/42", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decode(w)
			Expect(resp["id"]).To(Equal("42"))
			Expect(resp["status"]).To(Equal("succeeded"))
			Expect(resp["group_count"]).To(BeEquivalentTo(3))
		})

		It("returns 400 for a malformed id", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/analyses/abc", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 404 when the run is unknown", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/analyses/7", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})

		It("returns 500 when the lookup fails", func() {
			svc.getRunFn = func(_ context.Context, _ int64) (*model.AnalysisRun, error) {
				return nil, errors.New("connection refused")
			}

			req := httptest.NewRequest(http.MethodGet, "/api/analyses/7", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusInternalServerError))
		})
	})

	It("reports health", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(decode(w)).To(Equal(map[string]any{"status": "healthy"}))
	})
})
