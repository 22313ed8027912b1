package creds

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"

	"hivesnaps-media/internal"
	"hivesnaps-media/internal/s3"
)

// ImageHostKeys is the OAuth1 credential set for the thumbnail image host.
type ImageHostKeys struct {
	ConsumerKey    string `json:"consumer_key"`
	ConsumerSecret string `json:"consumer_secret"`
	AccessToken    string `json:"access_token"`
	AccessSecret   string `json:"access_secret"`
}

func (k ImageHostKeys) complete() bool {
	return k.ConsumerKey != "" && k.ConsumerSecret != "" && k.AccessToken != "" && k.AccessSecret != ""
}

// Provider reads per-user credentials from the tokens/ prefix on S3, falling
// back to env-provided values. Absence is reported via the bool, not an
// error: a missing credential short-circuits the thumbnail flow without
// failing the attach.
type Provider struct {
	cfg internal.Config
	s3c s3.Client
}

func NewProvider(cfg internal.Config, s3c s3.Client) *Provider {
	return &Provider{cfg: cfg, s3c: s3c}
}

// ImageHost returns the OAuth1 keys for the given username, if any.
func (p *Provider) ImageHost(ctx context.Context, username string) (*ImageHostKeys, bool, error) {
	var keys ImageHostKeys
	found, err := p.s3c.ReadJSON(ctx, p.imageHostKey(username), &keys)
	if err != nil {
		return nil, false, fmt.Errorf("read image host keys: %w", err)
	}
	if found && keys.complete() {
		return &keys, true, nil
	}

	env := ImageHostKeys{
		ConsumerKey:    p.cfg.ImageHostConsumerKey,
		ConsumerSecret: p.cfg.ImageHostConsumerSec,
		AccessToken:    p.cfg.ImageHostAccessToken,
		AccessSecret:   p.cfg.ImageHostAccessSecret,
	}
	if env.complete() {
		return &env, true, nil
	}
	return nil, false, nil
}

// SaveImageHost stores keys for a username so subsequent attaches skip the
// env fallback.
func (p *Provider) SaveImageHost(ctx context.Context, username string, keys ImageHostKeys) error {
	return p.s3c.WriteJSON(ctx, p.imageHostKey(username), keys)
}

// VideoHostToken returns the OAuth2 token used by the video host client.
func (p *Provider) VideoHostToken(ctx context.Context) (*oauth2.Token, bool, error) {
	token := &oauth2.Token{}
	found, err := p.s3c.ReadJSON(ctx, p.cfg.TokensPrefix+"video_host.json", token)
	if err != nil {
		return nil, false, fmt.Errorf("read video host token: %w", err)
	}
	if found && token.AccessToken != "" {
		return token, true, nil
	}
	if p.cfg.VideoHostToken != "" {
		return &oauth2.Token{AccessToken: p.cfg.VideoHostToken}, true, nil
	}
	return nil, false, nil
}

// SaveVideoHostToken persists a refreshed token.
func (p *Provider) SaveVideoHostToken(ctx context.Context, token *oauth2.Token) error {
	return p.s3c.WriteJSON(ctx, p.cfg.TokensPrefix+"video_host.json", token)
}

func (p *Provider) imageHostKey(username string) string {
	return p.cfg.TokensPrefix + "imagehost/" + username + ".json"
}
