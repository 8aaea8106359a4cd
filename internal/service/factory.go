package service

import (
	"github.com/noopta/situationship-ai/common/llm"
	"github.com/noopta/situationship-ai/internal/store"
)

type ServicesConfig struct {
	Stores   *store.Stores
	LLM      llm.VisionClient
	Analysis AnalysisConfig
}

type Services struct {
	stores   *store.Stores
	llm      llm.VisionClient
	analysis AnalysisConfig
}

func NewServices(cfg ServicesConfig) *Services {
	return &Services{
		stores:   cfg.Stores,
		llm:      cfg.LLM,
		analysis: cfg.Analysis,
	}
}

func (s *Services) Analysis() AnalysisService {
	return NewAnalysisService(s.llm, s.stores.AnalysisRuns(), s.stores.Results(), s.analysis)
}
