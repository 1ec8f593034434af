package cart

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type actionDispatcher interface {
	Dispatch(ctx context.Context, owner cartsvc.Owner, action cartsvc.Action) (cartsvc.ActionResult, error)
}

// CartAction handles every cart mutation through the action envelope.
func CartAction(dispatcher actionDispatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if dispatcher == nil {
			writeFailure(r.Context(), logg, w, nil, nil, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		owner, err := ownerFromRequest(r)
		if err != nil {
			writeFailure(r.Context(), logg, w, nil, nil, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithCartOwner(ctx, string(owner.Kind), owner.ID)
		}

		var payload cartsvc.ActionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			writeFailure(ctx, logg, w, dispatcher, &owner, err)
			return
		}

		action, err := payload.ToAction()
		if err != nil {
			writeFailure(ctx, logg, w, dispatcher, &owner, err)
			return
		}

		result, err := dispatcher.Dispatch(ctx, owner, action)
		if err != nil {
			writeFailure(ctx, logg, w, dispatcher, &owner, err)
			return
		}

		responses.WriteJSON(w, http.StatusOK, cartsvc.NewActionResponse(result))
	}
}

// CartFetch returns the priced cart of the current owner.
func CartFetch(dispatcher actionDispatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if dispatcher == nil {
			writeFailure(r.Context(), logg, w, nil, nil, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		owner, err := ownerFromRequest(r)
		if err != nil {
			writeFailure(r.Context(), logg, w, nil, nil, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithCartOwner(ctx, string(owner.Kind), owner.ID)
		}

		result, err := dispatcher.Dispatch(ctx, owner, cartsvc.ListAction{})
		if err != nil {
			writeFailure(ctx, logg, w, dispatcher, &owner, err)
			return
		}

		responses.WriteJSON(w, http.StatusOK, cartsvc.NewActionResponse(result))
	}
}

// writeFailure answers a failed cart request in the action shape with
// success false. The cart count is read again when the owner is known; a
// failing count read leaves it at zero.
func writeFailure(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, dispatcher actionDispatcher, owner *cartsvc.Owner, err error) {
	count := 0
	if dispatcher != nil && owner != nil {
		if result, countErr := dispatcher.Dispatch(ctx, *owner, cartsvc.CountAction{}); countErr == nil {
			count = result.CartCount
		}
	}
	responses.WriteFailure(ctx, logg, w, err, func(message string) any {
		return cartsvc.NewFailureResponse(message, count)
	})
}

// ownerFromRequest prefers the signed-in user over the guest cookie.
func ownerFromRequest(r *http.Request) (cartsvc.Owner, error) {
	if userID := middleware.UserIDFromContext(r.Context()); userID != "" {
		id, err := uuid.Parse(userID)
		if err != nil {
			return cartsvc.Owner{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
		}
		return cartsvc.UserOwner(id), nil
	}
	if token := middleware.GuestTokenFromContext(r.Context()); token != "" {
		return cartsvc.GuestOwner(token), nil
	}
	return cartsvc.Owner{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "cart owner missing")
}
