package responses

import (
	"context"
	"encoding/json"
	"net/http"

	zlog "github.com/rs/zerolog/log"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

const requestIDHeader = "X-Request-Id"

// WriteJSON writes payload as-is, without the data envelope. Cart reads and
// actions answer in this flat shape.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	writeJSON(w, status, payload)
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteError renders err as the error envelope. Codes without exposed
// messages get their generic public text; 5xx responses log at error level.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	typed, meta := classify(ctx, logg, err)

	var details any
	if meta.DetailsAllowed {
		details = typed.Details()
	}
	writeJSON(w, meta.HTTPStatus, types.NewErrorEnvelope(
		string(typed.Code()),
		typed.PublicMessage(),
		w.Header().Get(requestIDHeader),
		details,
	))
}

// WriteFailure logs err like WriteError but lets the route shape the body
// from the public message. The status is still the one mapped from the code.
func WriteFailure(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error, render func(message string) any) {
	typed, meta := classify(ctx, logg, err)
	writeJSON(w, meta.HTTPStatus, render(typed.PublicMessage()))
}

func classify(ctx context.Context, logg *logger.Logger, err error) (*pkgerrors.Error, pkgerrors.Metadata) {
	typed := pkgerrors.As(err)
	switch {
	case err == nil:
		typed = pkgerrors.New(pkgerrors.CodeInternal, "unknown error")
	case typed == nil:
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	if logg != nil {
		ctx = logg.WithFields(ctx, pkgerrors.Dump(typed).Fields())
		if meta.HTTPStatus >= http.StatusInternalServerError {
			logg.Error(ctx, "request.error", typed)
		} else {
			logg.Warn(ctx, "request.rejected")
		}
	}
	return typed, meta
}

// writeJSON encodes before writing headers so an unencodable payload still
// produces a well-formed 500.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		zlog.Error().Err(err).Msg("response.encode_failed")
		status = http.StatusInternalServerError
		body = []byte(`{"error":{"code":"INTERNAL_ERROR","message":"internal server error"}}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
