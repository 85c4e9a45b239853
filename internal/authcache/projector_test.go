package authcache_test

import (
	"context"
	"testing"

	"github.com/fadilmartias/questy/internal/authcache"
	"github.com/fadilmartias/questy/internal/localstore"
	"github.com/fadilmartias/questy/internal/realm"
	"github.com/fadilmartias/questy/internal/realm/realmtest"
	"github.com/fadilmartias/questy/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkerFollowsAuthEvents(t *testing.T) {
	srv := realmtest.New(t)
	client := realm.NewClient(srv.Config(realm.RoleStudent), log.Nop())
	detach := authcache.NewProjector(log.Nop()).Attach(client)
	defer detach()

	store := localstore.NewMemoryStore()
	ctx := context.Background()

	_, err := client.SignUp(ctx, store, "jane@mit.edu", "abc123", realm.Metadata{FullName: "Jane Doe", University: "MIT"})
	require.NoError(t, err)

	marker, err := authcache.Read(ctx, store)
	require.NoError(t, err)
	require.NotNil(t, marker)
	assert.NotEmpty(t, marker.Token)
	assert.Equal(t, "Jane Doe", marker.User.Name)
	assert.Equal(t, "jane@mit.edu", marker.User.Email)
	assert.Equal(t, realm.RoleStudent, marker.User.Role)
	assert.Equal(t, "MIT", marker.User.University)

	require.NoError(t, client.SignOut(ctx, store))
	marker, err = authcache.Read(ctx, store)
	require.NoError(t, err)
	assert.Nil(t, marker)
}

func TestSignOutOfOtherRealmKeepsMarker(t *testing.T) {
	srv := realmtest.New(t)
	student := realm.NewClient(srv.Config(realm.RoleStudent), log.Nop())
	recruiter := realm.NewClient(srv.Config(realm.RoleRecruiter), log.Nop())
	defer authcache.NewProjector(log.Nop()).Attach(student, recruiter)()

	srv.AddUser("hr@acme.io", "Secret1!", realm.Metadata{FullName: "Ann", Role: realm.RoleRecruiter})
	store := localstore.NewMemoryStore()
	ctx := context.Background()
	_, err := recruiter.SignIn(ctx, store, "hr@acme.io", "Secret1!")
	require.NoError(t, err)

	require.NoError(t, student.SignOut(ctx, store))
	marker, err := authcache.Read(ctx, store)
	require.NoError(t, err)
	require.NotNil(t, marker)
	assert.Equal(t, realm.RoleRecruiter, marker.User.Role)

	require.NoError(t, recruiter.SignOut(ctx, store))
	marker, err = authcache.Read(ctx, store)
	require.NoError(t, err)
	assert.Nil(t, marker)
}

func TestDetachedProjectorWritesNothing(t *testing.T) {
	srv := realmtest.New(t)
	client := realm.NewClient(srv.Config(realm.RoleRecruiter), log.Nop())
	authcache.NewProjector(log.Nop()).Attach(client)()

	srv.AddUser("hr@acme.io", "Secret1!", realm.Metadata{Role: realm.RoleRecruiter})
	store := localstore.NewMemoryStore()
	_, err := client.SignIn(context.Background(), store, "hr@acme.io", "Secret1!")
	require.NoError(t, err)

	marker, err := authcache.Read(context.Background(), store)
	require.NoError(t, err)
	assert.Nil(t, marker)
}

func TestReadIgnoresHalfMarker(t *testing.T) {
	store := localstore.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, authcache.KeyAuthToken, "tok"))

	marker, err := authcache.Read(ctx, store)
	require.NoError(t, err)
	assert.Nil(t, marker)

	require.NoError(t, store.Set(ctx, authcache.KeyUserData, "not json"))
	marker, err = authcache.Read(ctx, store)
	require.NoError(t, err)
	assert.Nil(t, marker)
}
