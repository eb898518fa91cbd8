// Package uploader publishes edited videos to YouTube: resumable video
// upload, caption track, thumbnail, and playlist membership, then local
// cleanup.
package uploader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/google/renameio/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/splat-replay/splat-replay/internal/config"
	"github.com/splat-replay/splat-replay/internal/httpclient"
	"github.com/splat-replay/splat-replay/internal/models"
)

// youtubeUploadScope covers video upload and caption/playlist management.
const youtubeUploadScope = "https://www.googleapis.com/auth/youtube"

// Authenticator turns the stored OAuth credentials and token into an
// authorized HTTP client. The underlying transport is the resilient client,
// so uploads get retries and circuit breaking.
type Authenticator struct {
	cfg  config.UploadConfig
	base *httpclient.Client
}

// NewAuthenticator builds the OAuth helper over the resilient HTTP client.
func NewAuthenticator(cfg config.UploadConfig, base *httpclient.Client) *Authenticator {
	if base == nil {
		base = httpclient.NewWithDefaults()
	}
	return &Authenticator{cfg: cfg, base: base}
}

func (a *Authenticator) oauthConfig() (*oauth2.Config, error) {
	data, err := os.ReadFile(a.cfg.CredentialsFile)
	if err != nil {
		return nil, models.WrapError(models.KindAuthentication,
			fmt.Sprintf("reading credentials file %s", a.cfg.CredentialsFile), err)
	}
	oc, err := google.ConfigFromJSON(data, youtubeUploadScope)
	if err != nil {
		return nil, models.WrapError(models.KindAuthentication, "parsing credentials file", err)
	}
	return oc, nil
}

func (a *Authenticator) loadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(a.cfg.TokenFile)
	if err != nil {
		return nil, models.WrapError(models.KindAuthentication,
			fmt.Sprintf("reading token file %s (run the setup flow first)", a.cfg.TokenFile), err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, models.WrapError(models.KindAuthentication, "parsing token file", err)
	}
	return &token, nil
}

func (a *Authenticator) saveToken(token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return err
	}
	return renameio.WriteFile(a.cfg.TokenFile, data, 0o600)
}

// AuthURL returns the consent URL the user visits during setup.
func (a *Authenticator) AuthURL() (string, error) {
	oc, err := a.oauthConfig()
	if err != nil {
		return "", err
	}
	return oc.AuthCodeURL("state", oauth2.AccessTypeOffline), nil
}

// Exchange redeems a consent code for a token and persists it.
func (a *Authenticator) Exchange(ctx context.Context, code string) error {
	oc, err := a.oauthConfig()
	if err != nil {
		return err
	}
	token, err := oc.Exchange(ctx, code)
	if err != nil {
		return models.WrapError(models.KindAuthentication, "exchanging auth code", err)
	}
	return a.saveToken(token)
}

// Client returns an authorized HTTP client, refreshing the token as needed.
func (a *Authenticator) Client(ctx context.Context) (*http.Client, error) {
	oc, err := a.oauthConfig()
	if err != nil {
		return nil, err
	}
	token, err := a.loadToken()
	if err != nil {
		return nil, err
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.base.StandardClient())
	source := oc.TokenSource(ctx, token)
	return oauth2.NewClient(ctx, persistingSource{inner: source, auth: a, last: token}), nil
}

// persistingSource writes refreshed tokens back to disk so the next run does
// not need a new consent flow.
type persistingSource struct {
	inner oauth2.TokenSource
	auth  *Authenticator
	last  *oauth2.Token
}

func (s persistingSource) Token() (*oauth2.Token, error) {
	token, err := s.inner.Token()
	if err != nil {
		return nil, err
	}
	if s.last == nil || token.AccessToken != s.last.AccessToken {
		if err := s.auth.saveToken(token); err != nil {
			return nil, err
		}
	}
	return token, nil
}
