// Package auth gates protected routes behind a stored session and runs the
// login, callback and logout legs of the identity-provider dance.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"warikan/internal/auth/cookie"
	"warikan/internal/auth/provider"
	"warikan/internal/auth/session"
	"warikan/internal/domain"
	"warikan/pkg/domerr"
	"warikan/pkg/requestcontext"
	"warikan/pkg/sentinel"
)

const (
	// SessionCookie carries the sealed session ID.
	SessionCookie = "warikan_session"
	// stateCookie round-trips the OAuth state parameter, sealed.
	stateCookie = "warikan_state"
	stateTTL    = 10 * time.Minute
)

// Options direct IsAuthenticated. Exactly one redirect is set per call site:
// SuccessRedirect on pages for the logged-out (bounce the logged-in away),
// FailureRedirect on protected pages. Setting both is a programming error.
type Options struct {
	SuccessRedirect string
	FailureRedirect string
}

// Redirect tells the caller to abort the handler and send the client away.
type Redirect struct {
	Location string
}

// Authenticator resolves principals from sessions and drives the provider
// strategy. The strategy is the only provider-specific piece.
type Authenticator struct {
	store      session.Store
	codec      *cookie.Codec
	strategy   provider.Strategy
	sessionTTL time.Duration
	logger     *slog.Logger
}

func NewAuthenticator(store session.Store, codec *cookie.Codec, strategy provider.Strategy, sessionTTL time.Duration, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		store:      store,
		codec:      codec,
		strategy:   strategy,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

// IsAuthenticated reads the session attached to the request.
//
// With a valid principal and SuccessRedirect set, the caller must abort and
// redirect there. Without a principal and FailureRedirect set, the caller
// must abort and redirect there. Without a principal and no FailureRedirect,
// the zero principal is returned and the caller renders an anonymous view.
func (a *Authenticator) IsAuthenticated(r *http.Request, opts Options) (domain.Principal, *Redirect, error) {
	if opts.SuccessRedirect != "" && opts.FailureRedirect != "" {
		return domain.Principal{}, nil, domerr.New(domerr.CodeInternal, "both redirects set")
	}

	principal, err := a.principalFromRequest(r)
	if err != nil {
		return domain.Principal{}, nil, err
	}

	if !principal.IsZero() {
		if opts.SuccessRedirect != "" {
			return principal, &Redirect{Location: opts.SuccessRedirect}, nil
		}
		return principal, nil, nil
	}

	if opts.FailureRedirect != "" {
		return domain.Principal{}, &Redirect{Location: opts.FailureRedirect}, nil
	}
	return domain.Principal{}, nil, nil
}

// principalFromRequest resolves the session cookie to a principal. A missing,
// unsealable, unknown or expired session is simply "no principal"; only
// infrastructure failures (session store down) surface as errors.
func (a *Authenticator) principalFromRequest(r *http.Request) (domain.Principal, error) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return domain.Principal{}, nil
	}
	id, err := a.codec.Open(c.Value)
	if err != nil {
		return domain.Principal{}, nil
	}
	sess, err := a.store.Find(r.Context(), id)
	if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrExpired) {
		return domain.Principal{}, nil
	}
	if err != nil {
		return domain.Principal{}, domerr.Wrap(domerr.CodeUnavailable, "session store unavailable", err)
	}
	principal := sess.Principal
	principal.Token = sess.Token
	return principal, nil
}

// StartLogin answers the login POST: mint a state value, seal it into a
// short-lived cookie, and redirect to the provider.
func (a *Authenticator) StartLogin(w http.ResponseWriter, r *http.Request) (string, error) {
	state, err := randomState()
	if err != nil {
		return "", err
	}
	sealed, err := a.codec.Seal(state)
	if err != nil {
		return "", domerr.Wrap(domerr.CodeInternal, "seal state", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    sealed,
		Path:     "/",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return a.strategy.AuthorizationURL(state), nil
}

// CompleteLogin answers the provider callback: verify state, exchange the
// code for a principal, persist the session, and hand back the sealed
// session cookie.
func (a *Authenticator) CompleteLogin(ctx context.Context, w http.ResponseWriter, r *http.Request) (domain.Principal, error) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		return domain.Principal{}, domerr.New(domerr.CodeUnauthenticated, "callback missing code or state")
	}

	stateCk, err := r.Cookie(stateCookie)
	if err != nil {
		return domain.Principal{}, domerr.New(domerr.CodeUnauthenticated, "login state cookie missing")
	}
	expected, err := a.codec.Open(stateCk.Value)
	if err != nil || expected != state {
		return domain.Principal{}, domerr.New(domerr.CodeUnauthenticated, "login state mismatch")
	}
	clearCookie(w, stateCookie)

	principal, err := a.strategy.Exchange(ctx, code)
	if err != nil {
		return domain.Principal{}, err
	}

	sess := session.New(principal, principal.Token,
		requestcontext.UserAgent(ctx), requestcontext.ClientIP(ctx), a.sessionTTL)
	if err := a.store.Save(ctx, sess); err != nil {
		return domain.Principal{}, domerr.Wrap(domerr.CodeUnavailable, "persist session", err)
	}

	sealed, err := a.codec.Seal(sess.ID)
	if err != nil {
		return domain.Principal{}, domerr.Wrap(domerr.CodeInternal, "seal session", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sealed,
		Path:     "/",
		MaxAge:   int(a.sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	a.logger.InfoContext(ctx, "session created",
		"user", principal.ID,
		"device", sess.Device,
	)
	return principal, nil
}

// Logout destroys the session and clears the cookie. Logging out without a
// session is a no-op.
func (a *Authenticator) Logout(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if c, err := r.Cookie(SessionCookie); err == nil {
		if id, err := a.codec.Open(c.Value); err == nil {
			if err := a.store.Delete(ctx, id); err != nil {
				return domerr.Wrap(domerr.CodeUnavailable, "delete session", err)
			}
		}
	}
	clearCookie(w, SessionCookie)
	return nil
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", domerr.Wrap(domerr.CodeInternal, "generate state", err)
	}
	return hex.EncodeToString(buf), nil
}
