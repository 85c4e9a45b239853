package realm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fadilmartias/questy/internal/apperr"
	"github.com/fadilmartias/questy/internal/config"
	"github.com/fadilmartias/questy/internal/localstore"
	"github.com/fadilmartias/questy/pkg/log"
	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"
)

// Listener receives auth state changes of one device. session is nil on sign-out.
type Listener func(ctx context.Context, store localstore.Store, event Event, session *Session)

// Client talks to one GoTrue project. Student and recruiter clients never share
// base URL, keys or storage key.
type Client struct {
	name       string
	role       string
	url        string
	anonKey    string
	serviceKey string
	jwtSecret  string
	storageKey string
	issuer     string

	http   *resty.Client
	logger log.Logger
	now    func() time.Time

	mu        sync.RWMutex
	listeners map[int]Listener
	nextID    int
}

func NewClient(cfg *config.RealmConfig, logger log.Logger) *Client {
	url := strings.TrimRight(cfg.URL, "/")
	return &Client{
		name:       cfg.Name,
		role:       cfg.Role,
		url:        url,
		anonKey:    cfg.AnonKey,
		serviceKey: cfg.ServiceRoleKey,
		jwtSecret:  cfg.JWTSecret,
		storageKey: cfg.StorageKey,
		issuer:     url + "/auth/v1",
		http: resty.New().
			SetBaseURL(url).
			SetTimeout(15*time.Second).
			SetHeader("Content-Type", "application/json"),
		logger:    log.With(logger, log.Fields{"realm": cfg.Name}),
		now:       time.Now,
		listeners: make(map[int]Listener),
	}
}

func (c *Client) Name() string       { return c.name }
func (c *Client) Role() string       { return c.role }
func (c *Client) StorageKey() string { return c.storageKey }

// HasAdmin reports whether admin calls (DeleteUser) are possible.
func (c *Client) HasAdmin() bool { return c.serviceKey != "" }

func (c *Client) configured() error {
	if c.url == "" || c.anonKey == "" {
		return apperr.ServiceConfiguration(
			fmt.Sprintf("%s authentication is not configured", c.name), nil)
	}
	return nil
}

func (c *Client) request(ctx context.Context, bearer string) *resty.Request {
	if bearer == "" {
		bearer = c.anonKey
	}
	return c.http.R().
		SetContext(ctx).
		SetHeader("apikey", c.anonKey).
		SetHeader("Authorization", "Bearer "+bearer)
}

// SignUp creates an identity. metadata.Role is forced to the realm role. When
// the project returns a session (e-mail confirmation disabled) it is stored and
// SIGNED_IN is emitted.
func (c *Client) SignUp(ctx context.Context, store localstore.Store, email, password string, metadata Metadata) (*Identity, error) {
	if err := c.configured(); err != nil {
		return nil, err
	}
	metadata.Role = c.role

	resp, err := c.request(ctx, "").
		SetBody(map[string]any{
			"email":    email,
			"password": password,
			"data":     metadata,
		}).
		Post("/auth/v1/signup")
	if err != nil {
		return nil, apperr.Network("could not reach authentication service", err)
	}
	if resp.IsError() {
		return nil, mapError(resp.StatusCode(), resp.String(), false)
	}

	body := gjson.Parse(resp.String())
	if session, ok := c.parseSession(body); ok {
		if err := c.persist(ctx, store, session); err != nil {
			return nil, err
		}
		c.emit(ctx, store, EventSignedIn, session)
		return &session.Identity, nil
	}

	user := body
	if body.Get("user").Exists() {
		user = body.Get("user")
	}
	identity := parseIdentity(user)
	if identity.ID == "" {
		return nil, apperr.Service("sign-up response did not contain a user", resp.StatusCode())
	}
	return &identity, nil
}

func (c *Client) SignIn(ctx context.Context, store localstore.Store, email, password string) (*Session, error) {
	if err := c.configured(); err != nil {
		return nil, err
	}
	resp, err := c.request(ctx, "").
		SetQueryParam("grant_type", "password").
		SetBody(map[string]string{"email": email, "password": password}).
		Post("/auth/v1/token")
	if err != nil {
		return nil, apperr.Network("could not reach authentication service", err)
	}
	if resp.IsError() {
		return nil, mapError(resp.StatusCode(), resp.String(), true)
	}
	session, ok := c.parseSession(gjson.Parse(resp.String()))
	if !ok {
		return nil, apperr.Service("sign-in response did not contain a session", resp.StatusCode())
	}
	if err := c.persist(ctx, store, session); err != nil {
		return nil, err
	}
	c.emit(ctx, store, EventSignedIn, session)
	return session, nil
}

// GetSession returns the stored session of this realm, or nil. Sessions stored
// for another realm or carrying a foreign issuer are ignored. Expired sessions
// are refreshed once; when that fails they count as absent.
func (c *Client) GetSession(ctx context.Context, store localstore.Store) (*Session, error) {
	raw, err := store.Get(ctx, c.storageKey)
	if errors.Is(err, localstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		c.logger.Warn().Err(err).Msg("discarding unreadable stored session")
		return nil, nil
	}
	if session.Realm != c.name {
		return nil, nil
	}

	if err := c.checkToken(session.AccessToken); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && session.RefreshToken != "" {
			return c.refresh(ctx, store, session.RefreshToken)
		}
		c.logger.Debug().Err(err).Msg("stored session rejected")
		return nil, nil
	}
	if session.Expired(c.now()) {
		return nil, nil
	}
	return &session, nil
}

func (c *Client) refresh(ctx context.Context, store localstore.Store, refreshToken string) (*Session, error) {
	if err := c.configured(); err != nil {
		return nil, nil
	}
	resp, err := c.request(ctx, "").
		SetQueryParam("grant_type", "refresh_token").
		SetBody(map[string]string{"refresh_token": refreshToken}).
		Post("/auth/v1/token")
	if err != nil || resp.IsError() {
		c.logger.Debug().Err(err).Msg("session refresh failed")
		return nil, nil
	}
	session, ok := c.parseSession(gjson.Parse(resp.String()))
	if !ok {
		return nil, nil
	}
	if err := c.persist(ctx, store, session); err != nil {
		return nil, err
	}
	c.emit(ctx, store, EventTokenRefreshed, session)
	return session, nil
}

// SignOut revokes the session upstream when possible and always clears the
// device copy.
func (c *Client) SignOut(ctx context.Context, store localstore.Store) error {
	raw, err := store.Get(ctx, c.storageKey)
	if err == nil && c.configured() == nil {
		var session Session
		if json.Unmarshal([]byte(raw), &session) == nil && session.AccessToken != "" {
			resp, err := c.request(ctx, session.AccessToken).Post("/auth/v1/logout")
			if err != nil {
				c.logger.Warn().Err(err).Msg("remote sign-out failed")
			} else if resp.IsError() {
				c.logger.Debug().Int("status", resp.StatusCode()).Msg("remote sign-out rejected")
			}
		}
	}
	if err := store.Delete(ctx, c.storageKey); err != nil {
		return err
	}
	c.emit(ctx, store, EventSignedOut, nil)
	return nil
}

func (c *Client) UpdateUser(ctx context.Context, store localstore.Store, metadata Metadata) (*Identity, error) {
	session, err := c.GetSession(ctx, store)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperr.Auth("not signed in")
	}
	metadata.Role = c.role

	resp, err := c.request(ctx, session.AccessToken).
		SetBody(map[string]any{"data": metadata}).
		Put("/auth/v1/user")
	if err != nil {
		return nil, apperr.Network("could not reach authentication service", err)
	}
	if resp.IsError() {
		return nil, mapError(resp.StatusCode(), resp.String(), false)
	}
	identity := parseIdentity(gjson.Parse(resp.String()))
	session.Identity = identity
	if err := c.persist(ctx, store, session); err != nil {
		return nil, err
	}
	c.emit(ctx, store, EventUserUpdated, session)
	return &identity, nil
}

// DeleteUser removes an identity through the admin API.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	if !c.HasAdmin() || c.url == "" {
		return apperr.ServiceConfiguration(
			fmt.Sprintf("%s service role key is not configured", c.name), nil)
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("apikey", c.serviceKey).
		SetHeader("Authorization", "Bearer "+c.serviceKey).
		SetPathParam("id", id).
		Delete("/auth/v1/admin/users/{id}")
	if err != nil {
		return apperr.Network("could not reach authentication service", err)
	}
	if resp.StatusCode() == 404 {
		return nil
	}
	if resp.IsError() {
		return mapError(resp.StatusCode(), resp.String(), false)
	}
	return nil
}

// OnAuthStateChange registers l and returns its unsubscribe function.
func (c *Client) OnAuthStateChange(l Listener) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = l
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Client) emit(ctx context.Context, store localstore.Store, event Event, session *Session) {
	c.mu.RLock()
	ls := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		ls = append(ls, l)
	}
	c.mu.RUnlock()

	for _, l := range ls {
		l(ctx, store, event, session)
	}
}

func (c *Client) persist(ctx context.Context, store localstore.Store, session *Session) error {
	b, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return store.Set(ctx, c.storageKey, string(b))
}

func (c *Client) parseSession(body gjson.Result) (*Session, bool) {
	token := body.Get("access_token").String()
	if token == "" {
		return nil, false
	}
	now := c.now()
	s := &Session{
		Realm:        c.name,
		AccessToken:  token,
		RefreshToken: body.Get("refresh_token").String(),
		IssuedAt:     now,
		Identity:     parseIdentity(body.Get("user")),
	}
	if exp := body.Get("expires_at").Int(); exp > 0 {
		s.ExpiresAt = time.Unix(exp, 0)
	} else if in := body.Get("expires_in").Int(); in > 0 {
		s.ExpiresAt = now.Add(time.Duration(in) * time.Second)
	}
	return s, true
}

func parseIdentity(u gjson.Result) Identity {
	return Identity{
		ID:    u.Get("id").String(),
		Email: u.Get("email").String(),
		Metadata: Metadata{
			FullName:   u.Get("user_metadata.full_name").String(),
			Role:       u.Get("user_metadata.role").String(),
			Company:    u.Get("user_metadata.company").String(),
			University: u.Get("user_metadata.university").String(),
			Phone:      u.Get("user_metadata.phone").String(),
		},
	}
}

// checkToken validates issuer and expiry, and the signature when a secret is set.
func (c *Client) checkToken(token string) error {
	claims := &jwt.RegisteredClaims{}
	if c.jwtSecret != "" {
		_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
			return []byte(c.jwtSecret), nil
		},
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(c.issuer),
			jwt.WithTimeFunc(c.now),
		)
		return err
	}

	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return err
	}
	if claims.Issuer != c.issuer {
		return jwt.ErrTokenInvalidIssuer
	}
	if claims.ExpiresAt != nil && !c.now().Before(claims.ExpiresAt.Time) {
		return jwt.ErrTokenExpired
	}
	return nil
}
