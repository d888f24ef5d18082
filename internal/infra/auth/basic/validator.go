package basic

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"gatekeeper/internal/domain"
)

// Validator checks Basic credentials against a user store and resolves the
// user's principal.
type Validator struct {
	users domain.UserStore
}

func NewValidator(users domain.UserStore) *Validator {
	return &Validator{users: users}
}

func (v *Validator) Validate(ctx context.Context, cred domain.Credential) (domain.Principal, error) {
	if cred.Username == "" {
		return domain.Principal{}, domain.ErrInvalidCredential
	}
	user, err := v.users.FindByUsername(ctx, cred.Username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Principal{}, domain.ErrInvalidCredential
		}
		return domain.Principal{}, fmt.Errorf("%w: user lookup: %v", domain.ErrStoreUnavailable, err)
	}
	if !passwordMatches(user.PasswordSHA256, cred.Password) {
		return domain.Principal{}, domain.ErrInvalidCredential
	}
	return domain.Principal{
		Name:  user.Username,
		Roles: append([]string(nil), user.Roles...),
	}, nil
}

func passwordMatches(storedHex, password string) bool {
	stored, err := hex.DecodeString(storedHex)
	if err != nil {
		return false
	}
	sum := sha256.Sum256([]byte(password))
	return subtle.ConstantTimeCompare(stored, sum[:]) == 1
}

// HashPassword produces the hex digest the user store keeps.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
