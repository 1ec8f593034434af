package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/productfiles"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// ProductFiles lists the downloadable files matching the requested variant.
// Omitted or blank size and color match only generic files on that axis.
func ProductFiles(svc productfiles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product file service unavailable"))
			return
		}

		productID, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "productId")), 10, 64)
		if err != nil || productID <= 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid product id"))
			return
		}

		query := r.URL.Query()
		size := cart.NormalizeString(query.Get("size"))
		color := cart.NormalizeString(query.Get("color"))

		files, err := svc.Resolve(r.Context(), productID, size, color)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"product_id": productID,
			"files":      files,
		})
	}
}
