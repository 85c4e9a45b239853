// Package authcache keeps the generic authToken/userData marker in the device
// store. The marker is derived from realm auth events only.
package authcache

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/fadilmartias/questy/internal/localstore"
	"github.com/fadilmartias/questy/internal/realm"
	"github.com/fadilmartias/questy/pkg/log"
)

const (
	KeyAuthToken = "authToken"
	KeyUserData  = "userData"
	// KeyAuthRealm names the realm whose session wrote the marker.
	KeyAuthRealm = "authRealm"
)

type UserData struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Company    string `json:"company,omitempty"`
	University string `json:"university,omitempty"`
}

type Marker struct {
	Token string
	User  UserData
}

type Projector struct {
	logger log.Logger
}

func NewProjector(logger log.Logger) *Projector {
	return &Projector{logger: logger}
}

// Attach subscribes to every client and returns a function detaching all of them.
func (p *Projector) Attach(clients ...*realm.Client) func() {
	unsubs := make([]func(), 0, len(clients))
	for _, c := range clients {
		name := c.Name()
		unsubs = append(unsubs, c.OnAuthStateChange(func(ctx context.Context, store localstore.Store, event realm.Event, session *realm.Session) {
			p.project(ctx, store, name, event, session)
		}))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// project applies one event of realmName. Sign-out of a realm leaves a marker
// written by another realm in place.
func (p *Projector) project(ctx context.Context, store localstore.Store, realmName string, event realm.Event, session *realm.Session) {
	switch event {
	case realm.EventSignedOut:
		owner, err := store.Get(ctx, KeyAuthRealm)
		if err == nil && owner != realmName {
			p.logger.Debug().Str("realm", realmName).Str("marker_realm", owner).Msg("keeping marker of other realm")
			return
		}
		if err != nil && !errors.Is(err, localstore.ErrNotFound) {
			p.logger.Error().Err(err).Msg("reading marker realm")
		}
		if err := store.Delete(ctx, KeyAuthToken, KeyUserData, KeyAuthRealm); err != nil {
			p.logger.Error().Err(err).Msg("clearing session marker")
		}
	case realm.EventSignedIn, realm.EventTokenRefreshed, realm.EventUserUpdated:
		if session == nil {
			return
		}
		if err := write(ctx, store, realmName, session); err != nil {
			p.logger.Error().Err(err).Str("event", string(event)).Msg("writing session marker")
		}
	}
}

func write(ctx context.Context, store localstore.Store, realmName string, session *realm.Session) error {
	md := session.Identity.Metadata
	role := md.Role
	if role == "" {
		role = session.Realm
	}
	b, err := json.Marshal(UserData{
		ID:         session.Identity.ID,
		Name:       md.FullName,
		Email:      session.Identity.Email,
		Role:       role,
		Company:    md.Company,
		University: md.University,
	})
	if err != nil {
		return err
	}
	if err := store.Set(ctx, KeyAuthToken, session.AccessToken); err != nil {
		return err
	}
	if err := store.Set(ctx, KeyAuthRealm, realmName); err != nil {
		return err
	}
	return store.Set(ctx, KeyUserData, string(b))
}

// Read returns the marker, or nil when either half is missing or unreadable.
func Read(ctx context.Context, store localstore.Store) (*Marker, error) {
	token, err := store.Get(ctx, KeyAuthToken)
	if errors.Is(err, localstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	raw, err := store.Get(ctx, KeyUserData)
	if errors.Is(err, localstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var user UserData
	if err := json.Unmarshal([]byte(raw), &user); err != nil || token == "" {
		return nil, nil
	}
	return &Marker{Token: token, User: user}, nil
}
