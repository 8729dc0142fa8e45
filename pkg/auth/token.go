package auth

import (
	"context"

	"github.com/harrisonrobin/fieldtask/pkg/store"
	"golang.org/x/oauth2"
)

// CacheTokenSource serves the stored backend token. It is read on every
// request so a new login takes effect without rebuilding the client. An
// empty token yields an empty access token and no Authorization header.
type CacheTokenSource struct {
	ctx   context.Context
	cache *store.Cache
}

func NewCacheTokenSource(ctx context.Context, cache *store.Cache) *CacheTokenSource {
	return &CacheTokenSource{ctx: ctx, cache: cache}
}

func (s *CacheTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.cache.Token(s.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: tok, TokenType: "Bearer"}, nil
}

var _ oauth2.TokenSource = (*CacheTokenSource)(nil)
