package gate

import (
	"context"
	"time"

	"github.com/fadilmartias/questy/internal/authcache"
	"github.com/fadilmartias/questy/internal/config"
	"github.com/fadilmartias/questy/internal/localstore"
	"github.com/fadilmartias/questy/internal/realm"
	"github.com/fadilmartias/questy/pkg/log"
)

type State string

const (
	StateChecking        State = "checking"
	StateAuthenticated   State = "authenticated"
	StateUnauthenticated State = "unauthenticated"
	StateWrongRole       State = "wrong-role"
)

type Decision struct {
	State    State           `json:"state"`
	Role     string          `json:"role,omitempty"`
	Redirect string          `json:"redirect,omitempty"`
	From     string          `json:"from,omitempty"`
	Identity *realm.Identity `json:"identity,omitempty"`
	// AccessToken of the session that satisfied the check.
	AccessToken string `json:"-"`
}

// WaitFunc blocks for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

type Gate struct {
	realms        map[string]*realm.Client
	maxAttempts   int
	routeAttempts int
	interval      time.Duration
	wait          WaitFunc
	logger        log.Logger
}

type Option func(*Gate)

func WithWait(w WaitFunc) Option {
	return func(g *Gate) { g.wait = w }
}

func New(clients []*realm.Client, cfg *config.GateConfig, logger log.Logger, opts ...Option) *Gate {
	g := &Gate{
		realms:        make(map[string]*realm.Client, len(clients)),
		maxAttempts:   cfg.MaxAttempts,
		routeAttempts: cfg.RouteMaxAttempts,
		interval:      cfg.Interval,
		wait:          sleep,
		logger:        logger,
	}
	if g.maxAttempts < 1 {
		g.maxAttempts = 1
	}
	if g.routeAttempts < 1 || g.routeAttempts > g.maxAttempts {
		g.routeAttempts = g.maxAttempts
	}
	for _, c := range clients {
		g.realms[c.Role()] = c
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// EntryPage is where an unauthenticated visitor of role is sent.
func EntryPage(role string) string {
	switch role {
	case realm.RoleStudent:
		return "/student"
	case realm.RoleRecruiter:
		return "/recruiter"
	}
	return "/login"
}

// CheckAccess decides whether the device may enter a page guarded for
// requiredRole. An empty requiredRole accepts any signed-in role. The session
// and the marker may land a little apart right after sign-in, so absence is
// re-checked up to maxAttempts times before giving up.
func (g *Gate) CheckAccess(ctx context.Context, store localstore.Store, requiredRole, from string) (Decision, error) {
	return g.check(ctx, store, requiredRole, from, g.maxAttempts)
}

// CheckRoute is CheckAccess with the shorter attempt budget of API routes.
func (g *Gate) CheckRoute(ctx context.Context, store localstore.Store, requiredRole, from string) (Decision, error) {
	return g.check(ctx, store, requiredRole, from, g.routeAttempts)
}

func (g *Gate) check(ctx context.Context, store localstore.Store, requiredRole, from string, maxAttempts int) (Decision, error) {
	for attempt := 1; ; attempt++ {
		d, done, err := g.evaluate(ctx, store, requiredRole)
		if err != nil {
			return Decision{State: StateChecking, From: from}, err
		}
		if done {
			if d.State == StateWrongRole {
				d.Redirect = "/"
			}
			d.From = from
			return d, nil
		}
		if attempt >= maxAttempts {
			break
		}
		if err := g.wait(ctx, g.interval); err != nil {
			return Decision{State: StateChecking, From: from}, err
		}
	}

	g.logger.Debug().Str("role", requiredRole).Int("attempts", maxAttempts).Msg("no session after polling")
	return Decision{
		State:    StateUnauthenticated,
		Role:     requiredRole,
		Redirect: EntryPage(requiredRole),
		From:     from,
	}, nil
}

func (g *Gate) evaluate(ctx context.Context, store localstore.Store, requiredRole string) (Decision, bool, error) {
	marker, err := authcache.Read(ctx, store)
	if err != nil {
		return Decision{}, false, err
	}
	if marker == nil {
		return Decision{}, false, nil
	}

	roles := []string{requiredRole}
	if requiredRole == "" || g.realms[requiredRole] == nil {
		roles = roles[:0]
		for r := range g.realms {
			roles = append(roles, r)
		}
	}
	// The marker's own realm is consulted too so a signed-in user of the
	// other role is told apart from a visitor.
	if marker.User.Role != requiredRole {
		roles = append(roles, marker.User.Role)
	}

	for _, r := range roles {
		client := g.realms[r]
		if client == nil {
			continue
		}
		session, err := client.GetSession(ctx, store)
		if err != nil {
			return Decision{}, false, err
		}
		if session == nil || session.Identity.ID != marker.User.ID {
			continue
		}
		identity := session.Identity
		if requiredRole != "" && marker.User.Role != requiredRole {
			return Decision{State: StateWrongRole, Role: marker.User.Role, Identity: &identity}, true, nil
		}
		return Decision{
			State:       StateAuthenticated,
			Role:        marker.User.Role,
			Identity:    &identity,
			AccessToken: session.AccessToken,
		}, true, nil
	}
	return Decision{}, false, nil
}
