package usecase

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/fadilmartias/questy/internal/apperr"
	"github.com/fadilmartias/questy/internal/realm"
)

var (
	studentEmailPattern   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	recruiterEmailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)
)

type RegisterInput struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	University      string `json:"university"`
	Company         string `json:"company"`
	Phone           string `json:"phone"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in *RegisterInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.University = strings.TrimSpace(in.University)
	in.Company = strings.TrimSpace(in.Company)
	in.Phone = strings.TrimSpace(in.Phone)
}

// validateRegistration runs the role's form rules. The student and recruiter
// password policies are not the same.
func validateRegistration(role string, in RegisterInput) error {
	errs := map[string]string{}
	switch role {
	case realm.RoleStudent:
		if len([]rune(in.Name)) < 2 {
			errs["name"] = "Name must be at least 2 characters"
		}
		if len([]rune(in.University)) < 2 {
			errs["university"] = "University must be at least 2 characters"
		}
		if !studentEmailPattern.MatchString(in.Email) {
			errs["email"] = "Please enter a valid email address"
		}
		if len(in.Password) < 6 {
			errs["password"] = "Password must be at least 6 characters"
		}
	case realm.RoleRecruiter:
		if in.Name == "" {
			errs["name"] = "Full name is required"
		}
		if in.Company == "" {
			errs["company"] = "Company name is required"
		}
		if in.Email == "" {
			errs["email"] = "Email is required"
		} else if !recruiterEmailPattern.MatchString(in.Email) {
			errs["email"] = "Email is invalid"
		}
		if in.Phone == "" {
			errs["phone"] = "Phone number is required"
		}
		if msg := strongPassword(in.Password); msg != "" {
			errs["password"] = msg
		}
	default:
		return apperr.NotFound("unknown role " + role)
	}
	if in.Password != in.ConfirmPassword {
		errs["confirm_password"] = "Passwords do not match"
	}
	if len(errs) > 0 {
		return apperr.Validation("Please correct the highlighted fields", errs)
	}
	return nil
}

func strongPassword(pw string) string {
	if len(pw) < 8 {
		return "Password must be at least 8 characters"
	}
	var upper, lower, digit, special bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		return "Password must contain uppercase, lowercase, number and special character"
	}
	return ""
}

func validateLogin(in LoginInput) error {
	errs := map[string]string{}
	if !studentEmailPattern.MatchString(strings.TrimSpace(in.Email)) {
		errs["email"] = "Please enter a valid email address"
	}
	if len(in.Password) < 6 {
		errs["password"] = "Password must be at least 6 characters"
	}
	if len(errs) > 0 {
		return apperr.Validation("Please correct the highlighted fields", errs)
	}
	return nil
}
