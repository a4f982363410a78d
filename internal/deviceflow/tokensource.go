package deviceflow

import (
	"context"

	"golang.org/x/oauth2"
)

// refreshingSource hands out the held token and refreshes it once it is no
// longer valid
type refreshingSource struct {
	ctx    context.Context
	client *Client
}

func (s *refreshingSource) Token() (*oauth2.Token, error) {
	if s.client.token.Valid(s.client.now()) {
		return s.client.token.OAuth2Token(), nil
	}

	ok, err := s.client.RefreshAccessToken(s.ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRefreshRejected
	}
	return s.client.token.OAuth2Token(), nil
}

// TokenSource returns an oauth2.TokenSource backed by the client, suitable
// for oauth2.NewClient. Calls are serialized by oauth2.ReuseTokenSource, but
// the Client itself must not be used concurrently while the source is live.
func (c *Client) TokenSource(ctx context.Context) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(c.token.OAuth2Token(), &refreshingSource{ctx: ctx, client: c})
}
