package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fadilmartias/questy/internal/apperr"
	"github.com/fadilmartias/questy/internal/localstore"
	"github.com/fadilmartias/questy/internal/model"
	"github.com/fadilmartias/questy/internal/realm"
	"github.com/fadilmartias/questy/pkg/log"
)

type ProfileStore interface {
	SaveStudent(ctx context.Context, p *model.Profile) error
	SaveRecruiter(ctx context.Context, r *model.Recruiter) error
}

type OrphanRecorder interface {
	Record(ctx context.Context, o *model.OrphanedIdentity) error
}

type AuthOptions struct {
	SignUpAttempts   int
	SignUpRetryDelay time.Duration
	// ProfileWriteMaxElapsed bounds the retries of the profile row write.
	ProfileWriteMaxElapsed time.Duration
	DemoFallback           bool
}

func DefaultAuthOptions() AuthOptions {
	return AuthOptions{
		SignUpAttempts:         3,
		SignUpRetryDelay:       3 * time.Second,
		ProfileWriteMaxElapsed: 5 * time.Second,
	}
}

type AuthUsecase struct {
	realms   map[string]*realm.Client
	profiles ProfileStore
	orphans  OrphanRecorder
	opts     AuthOptions
	logger   log.Logger
}

func NewAuthUsecase(clients []*realm.Client, profiles ProfileStore, orphans OrphanRecorder, opts AuthOptions, logger log.Logger) *AuthUsecase {
	m := make(map[string]*realm.Client, len(clients))
	for _, c := range clients {
		m[c.Role()] = c
	}
	if opts.SignUpAttempts < 1 {
		opts.SignUpAttempts = 1
	}
	return &AuthUsecase{realms: m, profiles: profiles, orphans: orphans, opts: opts, logger: logger}
}

func (u *AuthUsecase) client(role string) (*realm.Client, error) {
	c, ok := u.realms[role]
	if !ok {
		return nil, apperr.NotFound("unknown role " + role)
	}
	return c, nil
}

// Register validates the form, creates the identity and writes the profile row.
func (u *AuthUsecase) Register(ctx context.Context, store localstore.Store, role string, in RegisterInput) (*realm.Identity, error) {
	in.normalize()
	if err := validateRegistration(role, in); err != nil {
		return nil, err
	}
	return u.register(ctx, store, role, in)
}

func (u *AuthUsecase) register(ctx context.Context, store localstore.Store, role string, in RegisterInput) (*realm.Identity, error) {
	client, err := u.client(role)
	if err != nil {
		return nil, err
	}
	md := realm.Metadata{
		FullName:   in.Name,
		Role:       role,
		Company:    in.Company,
		University: in.University,
		Phone:      in.Phone,
	}

	identity, err := u.signUp(ctx, client, store, in.Email, in.Password, md)
	if err != nil {
		return nil, err
	}

	profile := buildProfile(role, identity, in)
	if err := u.writeProfile(ctx, role, profile); err != nil {
		return nil, u.compensate(ctx, client, store, identity, profile, err)
	}
	u.logger.Info().Str("role", role).Str("identity_id", identity.ID).Msg("registration completed")
	return identity, nil
}

// signUp retries only while the realm reports rate limiting.
func (u *AuthUsecase) signUp(ctx context.Context, client *realm.Client, store localstore.Store, email, password string, md realm.Metadata) (*realm.Identity, error) {
	var identity *realm.Identity
	op := func() error {
		id, err := client.SignUp(ctx, store, email, password, md)
		if err != nil {
			if apperr.Is(err, apperr.KindRateLimited) {
				u.logger.Warn().Str("realm", client.Name()).Msg("sign-up rate limited, retrying")
				return err
			}
			return backoff.Permanent(err)
		}
		identity = id
		return nil
	}
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(u.opts.SignUpRetryDelay), uint64(u.opts.SignUpAttempts-1))
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return identity, nil
}

func buildProfile(role string, identity *realm.Identity, in RegisterInput) any {
	if role == realm.RoleRecruiter {
		return &model.Recruiter{
			UserID:      identity.ID,
			FullName:    in.Name,
			Company:     in.Company,
			Email:       in.Email,
			PhoneNumber: in.Phone,
			Role:        realm.RoleRecruiter,
		}
	}
	return &model.Profile{
		ID:         identity.ID,
		Email:      in.Email,
		FullName:   in.Name,
		University: in.University,
		Role:       realm.RoleStudent,
	}
}

func (u *AuthUsecase) saveProfile(ctx context.Context, profile any) error {
	switch p := profile.(type) {
	case *model.Recruiter:
		return u.profiles.SaveRecruiter(ctx, p)
	case *model.Profile:
		return u.profiles.SaveStudent(ctx, p)
	}
	return fmt.Errorf("unsupported profile type %T", profile)
}

func (u *AuthUsecase) writeProfile(ctx context.Context, role string, profile any) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	if step := u.opts.ProfileWriteMaxElapsed / 10; step > 0 && step < bo.InitialInterval {
		bo.InitialInterval = step
	}
	bo.MaxElapsedTime = u.opts.ProfileWriteMaxElapsed

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := u.saveProfile(ctx, profile)
		if err != nil {
			u.logger.Warn().Err(err).Str("role", role).Int("attempt", attempt).Msg("profile write failed")
		}
		return err
	}, backoff.WithContext(bo, ctx))
}

// compensate undoes a half-finished registration: the identity is deleted
// through the admin API when possible, otherwise it is queued for cleanup.
func (u *AuthUsecase) compensate(ctx context.Context, client *realm.Client, store localstore.Store, identity *realm.Identity, profile any, cause error) error {
	logger := u.logger.With().Str("realm", client.Name()).Str("identity_id", identity.ID).Logger()

	deleteErr := client.DeleteUser(ctx, identity.ID)
	if deleteErr == nil {
		logger.Warn().Err(cause).Msg("profile write failed, identity deleted")
	} else {
		raw, _ := json.Marshal(profile)
		orphan := &model.OrphanedIdentity{
			Realm:      client.Name(),
			IdentityID: identity.ID,
			Email:      identity.Email,
			Profile:    raw,
			Reason:     cause.Error(),
			LastError:  deleteErr.Error(),
		}
		if err := u.orphans.Record(ctx, orphan); err != nil {
			logger.Error().Err(err).AnErr("cause", cause).Msg("could not record orphaned identity")
		} else {
			logger.Warn().Err(cause).Msg("profile write failed, identity recorded for cleanup")
		}
	}

	if err := client.SignOut(ctx, store); err != nil {
		logger.Error().Err(err).Msg("sign-out after failed registration")
	}
	return apperr.Wrap(apperr.KindService, "Registration could not be completed, please try again", cause)
}

// Login signs in and rejects accounts registered under the other role.
func (u *AuthUsecase) Login(ctx context.Context, store localstore.Store, role string, in LoginInput) (*realm.Session, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := validateLogin(in); err != nil {
		return nil, err
	}
	client, err := u.client(role)
	if err != nil {
		return nil, err
	}
	session, err := client.SignIn(ctx, store, in.Email, in.Password)
	if err != nil {
		return nil, err
	}
	if session.Identity.Metadata.Role != role {
		if err := client.SignOut(ctx, store); err != nil {
			u.logger.Error().Err(err).Msg("sign-out after role mismatch")
		}
		return nil, apperr.Auth(fmt.Sprintf("This account is not registered as a %s.", role))
	}
	return session, nil
}

func (u *AuthUsecase) Logout(ctx context.Context, store localstore.Store, role string) error {
	client, err := u.client(role)
	if err != nil {
		return err
	}
	return client.SignOut(ctx, store)
}

// RestoreProfile retries the profile write recorded for an orphan.
func (u *AuthUsecase) RestoreProfile(ctx context.Context, o *model.OrphanedIdentity) error {
	var profile any
	switch o.Realm {
	case realm.RoleRecruiter:
		profile = &model.Recruiter{}
	case realm.RoleStudent:
		profile = &model.Profile{}
	default:
		return apperr.NotFound("unknown realm " + o.Realm)
	}
	if err := json.Unmarshal(o.Profile, profile); err != nil {
		return err
	}
	return u.saveProfile(ctx, profile)
}

func (u *AuthUsecase) DeleteIdentity(ctx context.Context, role, id string) error {
	client, err := u.client(role)
	if err != nil {
		return err
	}
	return client.DeleteUser(ctx, id)
}
