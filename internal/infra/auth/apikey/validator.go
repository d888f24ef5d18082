package apikey

import (
	"context"
	"errors"
	"fmt"

	"gatekeeper/internal/domain"
)

// ResellerRole is granted to every principal resolved from a reseller key.
const ResellerRole = "reseller"

// Validator checks API keys against the reseller-key store.
type Validator struct {
	keys domain.ResellerKeyStore
}

func NewValidator(keys domain.ResellerKeyStore) *Validator {
	return &Validator{keys: keys}
}

func (v *Validator) Validate(ctx context.Context, cred domain.Credential) (domain.Principal, error) {
	if cred.Token == "" {
		return domain.Principal{}, domain.ErrInvalidCredential
	}
	key, err := v.keys.FindByKey(ctx, cred.Token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Principal{}, domain.ErrInvalidCredential
		}
		return domain.Principal{}, fmt.Errorf("%w: reseller key lookup: %v", domain.ErrStoreUnavailable, err)
	}
	return domain.Principal{
		Name:  key.ResellerID,
		Roles: []string{ResellerRole},
	}, nil
}
