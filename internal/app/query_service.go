package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"docqa-client/internal/api"
	"docqa-client/internal/citation"
	"docqa-client/internal/model"
	"docqa-client/internal/session"
)

type QueryGateway interface {
	SubmitQuery(ctx context.Context, text string) (*model.AnswerResult, error)
	ListQueries(ctx context.Context) ([]model.QueryRecord, error)
	GetQuery(ctx context.Context, id uint) (*model.QueryRecord, error)
}

type HistoryCache interface {
	GetHistory(ctx context.Context, owner string) ([]model.QueryRecord, bool, error)
	SetHistory(ctx context.Context, owner string, records []model.QueryRecord) error
	DeleteHistory(ctx context.Context, owner string) error
	MarkDirty(ctx context.Context, owner string) error
	IsDirty(ctx context.Context, owner string) (bool, error)
}

// Answer is a query result with its citations bound to sources.
type Answer struct {
	model.AnswerResult
	Segments []citation.Segment      `json:"segments"`
	Cited    []model.Source          `json:"cited"`
	Labels   map[string]*model.Source `json:"labels"`
}

type QueryService struct {
	gateway QueryGateway
	cache   HistoryCache
	tokens  api.TokenSource
	logger  *zap.Logger
}

// NewQueryService builds the service; cache may be nil.
func NewQueryService(gateway QueryGateway, cache HistoryCache, tokens api.TokenSource, logger *zap.Logger) *QueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryService{gateway: gateway, cache: cache, tokens: tokens, logger: logger}
}

func (s *QueryService) Ask(ctx context.Context, text string) (*Answer, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: question is empty", ErrInvalidInput)
	}

	result, err := s.gateway.SubmitQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	if owner := s.owner(); s.cache != nil && owner != "" {
		s.invalidateHistory(ctx, owner)
	}

	segments := citation.Link(result.Answer, result.Sources)
	return &Answer{
		AnswerResult: *result,
		Segments:     segments,
		Cited:        citation.Citations(segments),
		Labels:       citation.Labels(result.Sources),
	}, nil
}

// History returns past queries, served from cache unless a query was asked
// since the cache was filled.
func (s *QueryService) History(ctx context.Context) ([]model.QueryRecord, error) {
	owner := s.owner()
	if s.cache != nil && owner != "" {
		if records, ok := s.cachedHistory(ctx, owner); ok {
			return records, nil
		}
	}

	records, err := s.gateway.ListQueries(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil && owner != "" {
		if err := s.cache.SetHistory(ctx, owner, records); err != nil {
			s.logger.Warn("cache query history failed", zap.Error(err))
		}
	}
	return records, nil
}

// Record fetches a single past query from the server.
func (s *QueryService) Record(ctx context.Context, id uint) (*model.QueryRecord, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	return s.gateway.GetQuery(ctx, id)
}

// invalidateHistory drops the cached list and marks it dirty.
func (s *QueryService) invalidateHistory(ctx context.Context, owner string) {
	if err := s.cache.DeleteHistory(ctx, owner); err != nil {
		s.logger.Warn("delete cached query history failed", zap.Error(err))
	}
	if err := s.cache.MarkDirty(ctx, owner); err != nil {
		s.logger.Warn("mark query history dirty failed", zap.Error(err))
	}
}

func (s *QueryService) cachedHistory(ctx context.Context, owner string) ([]model.QueryRecord, bool) {
	dirty, err := s.cache.IsDirty(ctx, owner)
	if err != nil {
		s.logger.Warn("check query history dirty marker failed", zap.Error(err))
		return nil, false
	}
	if dirty {
		return nil, false
	}
	records, ok, err := s.cache.GetHistory(ctx, owner)
	if err != nil {
		s.logger.Warn("read cached query history failed", zap.Error(err))
		return nil, false
	}
	return records, ok
}

// owner keys the history cache by the token subject; opaque tokens are not
// cached.
func (s *QueryService) owner() string {
	if s.tokens == nil {
		return ""
	}
	token := s.tokens.Token()
	if token == "" {
		return ""
	}
	info, err := session.Describe(token, time.Now())
	if err != nil {
		return ""
	}
	return info.Subject
}
