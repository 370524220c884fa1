package gcal

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"

	"github.com/lkschedule/schedule-sync/internal/logger"
	"github.com/lkschedule/schedule-sync/internal/storage"
)

// Authorizer obtains a new token interactively.
type Authorizer func(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error)

// LoadOAuthConfig reads the OAuth client secrets file downloaded from the Google
// console.
func LoadOAuthConfig(clientSecretsPath string) (*oauth2.Config, error) {
	data, err := os.ReadFile(clientSecretsPath)
	if err != nil {
		return nil, fmt.Errorf("reading client secrets: %w", err)
	}
	cfg, err := google.ConfigFromJSON(data, calendar.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("parsing client secrets: %w", err)
	}
	return cfg, nil
}

// TokenSource returns a token source backed by the cached token in tokenFile. When
// no usable token is cached, authorize is run and its token saved. Refreshed tokens
// are written back to the cache.
func TokenSource(ctx context.Context, cfg *oauth2.Config, st *storage.Storage, tokenFile string, authorize Authorizer) (oauth2.TokenSource, error) {
	tok, err := loadToken(st, tokenFile)
	if err != nil {
		return nil, err
	}

	if tok == nil || (!tok.Valid() && tok.RefreshToken == "") {
		if authorize == nil {
			return nil, errors.New("no cached Google token and interactive authorization is disabled")
		}
		tok, err = authorize(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("authorizing: %w", err)
		}
		if err := saveToken(st, tokenFile, tok); err != nil {
			return nil, err
		}
	}

	return &savingTokenSource{
		base:  cfg.TokenSource(ctx, tok),
		st:    st,
		file:  tokenFile,
		token: tok,
	}, nil
}

func loadToken(st *storage.Storage, name string) (*oauth2.Token, error) {
	data, err := st.ReadSealed(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		logger.Warn("ignoring unreadable token file", logger.Fields{"path": st.Path(name), "error": err.Error()})
		return nil, nil
	}
	return &tok, nil
}

func saveToken(st *storage.Storage, name string, tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	if err := st.WriteSealed(name, data); err != nil {
		return fmt.Errorf("writing token: %w", err)
	}
	return nil
}

// savingTokenSource persists every token it hands out that differs from the last one.
type savingTokenSource struct {
	base oauth2.TokenSource
	st   *storage.Storage
	file string

	mu    sync.Mutex
	token *oauth2.Token
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil || s.token.AccessToken != tok.AccessToken {
		if err := saveToken(s.st, s.file, tok); err != nil {
			logger.Warn("failed to cache refreshed token", logger.Fields{"error": err.Error()})
		}
		s.token = tok
	}
	return tok, nil
}

// LoopbackAuthorizer runs the installed-application flow: it prints the consent URL
// to out and waits for Google to redirect to a temporary listener on 127.0.0.1.
func LoopbackAuthorizer(out io.Writer) Authorizer {
	return func(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return nil, fmt.Errorf("starting callback listener: %w", err)
		}
		defer ln.Close()

		flow := *cfg
		flow.RedirectURL = fmt.Sprintf("http://%s/", ln.Addr().String())

		state, err := randomState()
		if err != nil {
			return nil, err
		}
		verifier := oauth2.GenerateVerifier()

		type result struct {
			code string
			err  error
		}
		results := make(chan result, 1)
		srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("state") != state {
				http.Error(w, "state mismatch", http.StatusBadRequest)
				return
			}
			res := result{code: q.Get("code")}
			if reason := q.Get("error"); reason != "" {
				res = result{err: fmt.Errorf("authorization denied: %s", reason)}
			}
			select {
			case results <- res:
			default:
			}
			fmt.Fprintln(w, "You can close this window.")
		})}
		go srv.Serve(ln)
		defer srv.Close()

		url := flow.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))
		fmt.Fprintf(out, "Open the following URL in a browser to authorize calendar access:\n\n%s\n\n", url)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-results:
			if res.err != nil {
				return nil, res.err
			}
			tok, err := flow.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
			if err != nil {
				return nil, fmt.Errorf("exchanging authorization code: %w", err)
			}
			return tok, nil
		}
	}
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}
	return hex.EncodeToString(b), nil
}
