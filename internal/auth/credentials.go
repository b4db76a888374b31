// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package auth produces the authenticated HTTP client used to talk to the
// cloud storage API, and guards the local status listener.
package auth

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/google/renameio/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drivev3 "google.golang.org/api/drive/v3"

	xglog "github.com/ManuGH/kiosk/internal/log"
)

// Credential modes.
const (
	ModeServiceAccount = "service_account"
	ModeOAuth          = "oauth"
	ModeADC            = "adc"
	ModeBrowser        = "browser"
)

var (
	// ErrUnsupportedMode is returned for unknown modes and for the browser login.
	ErrUnsupportedMode = errors.New("unsupported auth mode")
	// ErrNoAuthCode is returned when the OAuth flow needs a code and none was entered.
	ErrNoAuthCode = errors.New("no authorization code entered")
)

// Scope is the read-only access the kiosk requests.
const Scope = drivev3.DriveReadonlyScope

// Options configure NewHTTPClient.
type Options struct {
	Mode            string
	CredentialsFile string
	TokenFile       string

	// Prompt and PromptOut drive the one-time OAuth consent. Defaults are
	// stdin and stderr.
	Prompt    io.Reader
	PromptOut io.Writer

	// Base is the transport below the OAuth layer. It is wrapped with otelhttp.
	Base http.RoundTripper
}

// NewHTTPClient resolves credentials for opts.Mode and returns a client that
// attaches and refreshes access tokens.
func NewHTTPClient(ctx context.Context, opts Options) (*http.Client, error) {
	base := opts.Base
	if base == nil {
		base = http.DefaultTransport
	}
	// Token endpoint calls go through the same instrumented transport.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: otelhttp.NewTransport(base)})

	ts, err := tokenSource(ctx, opts)
	if err != nil {
		return nil, err
	}

	xglog.FromContext(ctx).Info().
		Str(xglog.FieldEvent, "auth.ready").
		Str("mode", opts.Mode).
		Msg("credentials loaded")

	return &http.Client{
		Transport: &oauth2.Transport{
			Source: ts,
			Base:   otelhttp.NewTransport(base),
		},
	}, nil
}

func tokenSource(ctx context.Context, opts Options) (oauth2.TokenSource, error) {
	switch opts.Mode {
	case ModeServiceAccount:
		data, err := readCredentials(opts.CredentialsFile)
		if err != nil {
			return nil, err
		}
		conf, err := google.JWTConfigFromJSON(data, Scope)
		if err != nil {
			return nil, fmt.Errorf("parse service account key: %w", err)
		}
		return conf.TokenSource(ctx), nil

	case ModeOAuth:
		data, err := readCredentials(opts.CredentialsFile)
		if err != nil {
			return nil, err
		}
		conf, err := google.ConfigFromJSON(data, Scope)
		if err != nil {
			return nil, fmt.Errorf("parse oauth client: %w", err)
		}
		return installedAppSource(ctx, conf, opts)

	case ModeADC:
		creds, err := google.FindDefaultCredentials(ctx, Scope)
		if err != nil {
			return nil, fmt.Errorf("application default credentials: %w", err)
		}
		return creds.TokenSource, nil

	case ModeBrowser:
		return nil, fmt.Errorf("%w: %q (scripted browser login is not supported; use %s, %s or %s)",
			ErrUnsupportedMode, opts.Mode, ModeServiceAccount, ModeOAuth, ModeADC)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMode, opts.Mode)
	}
}

func readCredentials(path string) ([]byte, error) {
	// #nosec G304 -- credentials path is provided by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	return data, nil
}

// installedAppSource loads the cached token or runs the consent flow once.
func installedAppSource(ctx context.Context, conf *oauth2.Config, opts Options) (oauth2.TokenSource, error) {
	tok, err := loadToken(opts.TokenFile)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		tok, err = exchangeCode(ctx, conf, opts)
		if err != nil {
			return nil, err
		}
		if err := saveToken(opts.TokenFile, tok); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	return &persistingSource{
		src:  oauth2.ReuseTokenSource(tok, conf.TokenSource(ctx, tok)),
		path: opts.TokenFile,
		last: tok.AccessToken,
	}, nil
}

func exchangeCode(ctx context.Context, conf *oauth2.Config, opts Options) (*oauth2.Token, error) {
	in, out := opts.Prompt, opts.PromptOut
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stderr
	}

	url := conf.AuthCodeURL("kiosk", oauth2.AccessTypeOffline)
	_, _ = fmt.Fprintf(out, "Open the following link, grant access and paste the code:\n%s\n> ", url)

	sc := bufio.NewScanner(in)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read authorization code: %w", err)
		}
		return nil, ErrNoAuthCode
	}
	code := strings.TrimSpace(sc.Text())
	if code == "" {
		return nil, ErrNoAuthCode
	}

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return tok, nil
}

func loadToken(path string) (*oauth2.Token, error) {
	// #nosec G304 -- token cache path is provided by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token cache: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("decode token cache %s: %w", path, err)
	}
	return &tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write token cache: %w", err)
	}
	return nil
}

// persistingSource writes refreshed tokens back to the cache file.
type persistingSource struct {
	src  oauth2.TokenSource
	path string

	mu   sync.Mutex
	last string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		if err := saveToken(s.path, tok); err != nil {
			logger := xglog.WithComponent("auth")
			logger.Warn().
				Err(err).
				Str(xglog.FieldPath, s.path).
				Msg("refreshed token could not be cached")
		} else {
			s.last = tok.AccessToken
		}
	}
	return tok, nil
}
