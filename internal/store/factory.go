package store

import "github.com/redis/go-redis/v9"

type Stores struct {
	runs  AnalysisRunStore
	cache ResultCache
}

// NewStores wires the optional backends. A nil db or redis client selects
// the no-op implementation for that store.
func NewStores(db DBTX, redisClient redis.Cmdable) *Stores {
	s := &Stores{
		runs:  NoopAnalysisRunStore{},
		cache: NoopCache{},
	}
	if db != nil {
		s.runs = NewAnalysisRunStore(db)
	}
	if redisClient != nil {
		s.cache = NewRedisCache(redisClient, "situationship:")
	}
	return s
}

func (s *Stores) AnalysisRuns() AnalysisRunStore {
	return s.runs
}

func (s *Stores) Results() ResultCache {
	return s.cache
}
