package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fadilmartias/questy/internal/apperr"
	"github.com/fadilmartias/questy/internal/localstore"
	"github.com/fadilmartias/questy/internal/realm"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

var (
	nameAliases     = []string{"name", "fullName", "full_name", "displayName", "username"}
	companyAliases  = []string{"company", "companyName", "company_name"}
	emailAliases    = []string{"email", "emailAddress", "email_address", "mail"}
	passwordAliases = []string{"password", "pwd", "pass", "passwordProfile.password"}
)

func firstOf(body gjson.Result, paths []string) string {
	for _, p := range paths {
		if v := strings.TrimSpace(body.Get(p).String()); v != "" {
			return v
		}
	}
	return ""
}

type LegacyUser struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company"`
	Role    string `json:"role"`
}

type LegacyLoginResult struct {
	User     LegacyUser `json:"user"`
	Token    string     `json:"token"`
	UserType string     `json:"userType"`
	Demo     bool       `json:"demo,omitempty"`
}

// MissingFieldsDetails is attached to the validation error of LegacyRegister.
type MissingFieldsDetails struct {
	MissingFields  []string          `json:"missingFields"`
	ReceivedFields []string          `json:"receivedFields"`
	SampleMapping  map[string]string `json:"sampleMapping"`
}

type MissingFieldsError struct {
	Details MissingFieldsDetails
	err     *apperr.Error
}

func (e *MissingFieldsError) Error() string { return e.err.Error() }
func (e *MissingFieldsError) Unwrap() error { return e.err }

// LegacyRegister creates a recruiter from loosely named fields. No session is
// kept for the caller.
func (u *AuthUsecase) LegacyRegister(ctx context.Context, body []byte) (*LegacyUser, error) {
	r := gjson.ParseBytes(body)
	in := RegisterInput{
		Name:     firstOf(r, nameAliases),
		Company:  firstOf(r, companyAliases),
		Email:    firstOf(r, emailAliases),
		Password: firstOf(r, passwordAliases),
	}

	var missing []string
	for _, f := range []struct{ name, value string }{
		{"name", in.Name}, {"company", in.Company}, {"email", in.Email}, {"password", in.Password},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		received := []string{}
		r.ForEach(func(key, _ gjson.Result) bool {
			received = append(received, key.String())
			return true
		})
		return nil, &MissingFieldsError{
			err: apperr.Validation("Missing required fields: "+strings.Join(missing, ", "), nil),
			Details: MissingFieldsDetails{
				MissingFields:  missing,
				ReceivedFields: received,
				SampleMapping: map[string]string{
					"name":     "displayName, fullName, or name",
					"company":  "companyName or company",
					"email":    "mail, emailAddress, or email",
					"password": "passwordProfile.password or password",
				},
			},
		}
	}

	identity, err := u.register(ctx, localstore.NewMemoryStore(), realm.RoleRecruiter, in)
	if err != nil {
		return nil, err
	}
	return &LegacyUser{
		ID:      identity.ID,
		Name:    in.Name,
		Email:   in.Email,
		Company: in.Company,
		Role:    realm.RoleRecruiter,
	}, nil
}

// LegacyLogin signs a recruiter in statelessly. A demo identity is issued only
// when the auth service is unreachable and the demo fallback is enabled.
func (u *AuthUsecase) LegacyLogin(ctx context.Context, email, password string) (*LegacyLoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperr.Validation("Email and password are required", nil)
	}
	client, err := u.client(realm.RoleRecruiter)
	if err != nil {
		return nil, err
	}

	session, err := client.SignIn(ctx, localstore.NewMemoryStore(), email, password)
	if err != nil {
		if u.opts.DemoFallback && apperr.Is(err, apperr.KindNetwork) {
			u.logger.Warn().Err(err).Str("email", email).Msg("auth unreachable, issuing demo login")
			return demoLogin(email), nil
		}
		return nil, err
	}

	md := session.Identity.Metadata
	name := md.FullName
	if name == "" {
		name = strings.Split(email, "@")[0]
	}
	company := md.Company
	if company == "" {
		company = "N/A"
	}
	return &LegacyLoginResult{
		User: LegacyUser{
			ID:      session.Identity.ID,
			Name:    name,
			Email:   session.Identity.Email,
			Company: company,
			Role:    realm.RoleRecruiter,
		},
		Token:    session.AccessToken,
		UserType: realm.RoleRecruiter,
	}, nil
}

func demoLogin(email string) *LegacyLoginResult {
	now := time.Now().UnixMilli()
	return &LegacyLoginResult{
		User: LegacyUser{
			ID:      fmt.Sprintf("demo-%s", uuid.NewString()),
			Name:    strings.Split(email, "@")[0],
			Email:   email,
			Company: "Demo Company",
			Role:    realm.RoleRecruiter,
		},
		Token:    fmt.Sprintf("demo-token-%d", now),
		UserType: realm.RoleRecruiter,
		Demo:     true,
	}
}
