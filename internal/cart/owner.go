package cart

import (
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Owner identifies whose cart an operation targets.
type Owner struct {
	Kind enums.CartOwnerKind
	ID   string
}

// GuestOwner addresses the cart held under an anonymous guest token.
func GuestOwner(token string) Owner {
	return Owner{Kind: enums.CartOwnerGuest, ID: strings.TrimSpace(token)}
}

// UserOwner addresses an authenticated user's cart.
func UserOwner(id uuid.UUID) Owner {
	return Owner{Kind: enums.CartOwnerUser, ID: id.String()}
}

func (o Owner) IsGuest() bool { return o.Kind == enums.CartOwnerGuest }

// Validate checks the owner kind and identity.
func (o Owner) Validate() error {
	if !o.Kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart owner kind is invalid")
	}
	if o.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart owner identity is required")
	}
	if o.Kind == enums.CartOwnerUser {
		id, err := uuid.Parse(o.ID)
		if err != nil || id == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "user id is invalid")
		}
	}
	return nil
}
