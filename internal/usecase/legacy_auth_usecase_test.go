package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/fadilmartias/questy/internal/apperr"
	"github.com/fadilmartias/questy/internal/config"
	"github.com/fadilmartias/questy/internal/realm"
	"github.com/fadilmartias/questy/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLegacyRegisterAcceptsAliases(t *testing.T) {
	f := newAuthFixture(t, nil, nil)
	ctx := context.Background()

	user, err := f.uc.LegacyRegister(ctx, []byte(`{
		"displayName": "Ann Lee",
		"companyName": "Acme",
		"mail": "ann@acme.io",
		"passwordProfile": {"password": "whatever1"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "Ann Lee", user.Name)
	assert.Equal(t, "Acme", user.Company)
	assert.Equal(t, realm.RoleRecruiter, user.Role)

	rec, err := f.profiles.FindRecruiter(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "ann@acme.io", rec.Email)
}

func TestLegacyRegisterListsMissingFields(t *testing.T) {
	f := newAuthFixture(t, nil, nil)

	_, err := f.uc.LegacyRegister(context.Background(), []byte(`{"email":"ann@acme.io","foo":1}`))
	var missing *MissingFieldsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"name", "company", "password"}, missing.Details.MissingFields)
	assert.ElementsMatch(t, []string{"email", "foo"}, missing.Details.ReceivedFields)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Zero(t, f.srv.TotalCalls())
}

func TestLegacyLoginReturnsToken(t *testing.T) {
	f := newAuthFixture(t, nil, nil)
	f.srv.AddUser("ann@acme.io", "Secret1!", realm.Metadata{Role: realm.RoleRecruiter})

	res, err := f.uc.LegacyLogin(context.Background(), "ann@acme.io", "Secret1!")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "ann", res.User.Name)
	assert.Equal(t, "N/A", res.User.Company)
	assert.False(t, res.Demo)
}

func unreachableAuth(demo bool) *AuthUsecase {
	cfg := &config.RealmConfig{Name: "recruiter", Role: "recruiter", URL: "http://127.0.0.1:1", AnonKey: "k", StorageKey: "recruiter-auth-token"}
	opts := testAuthOptions()
	opts.DemoFallback = demo
	return NewAuthUsecase([]*realm.Client{realm.NewClient(cfg, log.Nop())}, &failingProfiles{}, nil, opts, log.Nop())
}

func TestLegacyLoginDemoFallbackOnlyOnNetworkError(t *testing.T) {
	res, err := unreachableAuth(true).LegacyLogin(context.Background(), "ann@acme.io", "x")
	require.NoError(t, err)
	assert.True(t, res.Demo)
	assert.Equal(t, "Demo Company", res.User.Company)

	_, err = unreachableAuth(false).LegacyLogin(context.Background(), "ann@acme.io", "x")
	assert.True(t, apperr.Is(err, apperr.KindNetwork))

	f := newAuthFixture(t, nil, nil)
	f.uc.opts.DemoFallback = true
	_, err = f.uc.LegacyLogin(context.Background(), "ann@acme.io", "wrong")
	assert.True(t, apperr.Is(err, apperr.KindAuth), "bad credentials never fall back")
}

func TestLegacyLoginRequiresFields(t *testing.T) {
	_, err := unreachableAuth(true).LegacyLogin(context.Background(), "", "x")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
