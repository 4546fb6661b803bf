// Package service 提供了搜索相关的业务逻辑。
package service

import (
	"context"
	"fmt"
	"strings"

	"parallax-gateway/internal/model"
	"parallax-gateway/pkg/log"
)

const (
	defaultSearchSize = 20
	maxSearchSize     = 100
)

// MessageSearcher 是检索后端（Elasticsearch）的最小接口。
type MessageSearcher interface {
	Search(ctx context.Context, userID, query string, size int) ([]model.SearchHit, error)
}

// SearchService 接口定义了搜索操作。
type SearchService interface {
	SearchMessages(ctx context.Context, user *model.User, query string, size int) ([]model.SearchHit, error)
}

type searchService struct {
	searcher MessageSearcher
}

// NewSearchService 创建一个新的 SearchService 实例。searcher 为 nil 时所有查询返回 ErrFeatureDisabled。
func NewSearchService(searcher MessageSearcher) SearchService {
	return &searchService{searcher: searcher}
}

// SearchMessages 只在当前用户自己的消息中检索。
func (s *searchService) SearchMessages(ctx context.Context, user *model.User, query string, size int) ([]model.SearchHit, error) {
	if s.searcher == nil {
		return nil, ErrFeatureDisabled
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.SearchHit{}, nil
	}
	if size <= 0 {
		size = defaultSearchSize
	}
	if size > maxSearchSize {
		size = maxSearchSize
	}

	hits, err := s.searcher.Search(ctx, user.ID, query, size)
	if err != nil {
		log.Errorf("[SearchService] 消息检索失败, userId: %s, error: %v", user.ID, err)
		return nil, fmt.Errorf("search messages: %w", err)
	}
	log.Infof("[SearchService] 检索完成, userId: %s, 命中 %d 条", user.ID, len(hits))
	return hits, nil
}
