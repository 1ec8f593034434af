package middleware

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	guestNonceBytes  = 16
	guestTokenLength = sha256.Size * 2
)

// GuestIdentity resolves the visitor's guest cart token from its cookie and
// mints a new one when the cookie is missing or malformed. Signed-in requests
// without a cookie are left alone.
func GuestIdentity(cfg config.CartConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return guestIdentity(cfg, logg, true)
}

// ReadGuestIdentity only picks up an existing guest cookie. Sign-in routes use
// it so a visitor without a cart never gets one minted just to merge nothing.
func ReadGuestIdentity(cfg config.CartConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return guestIdentity(cfg, logg, false)
}

func guestIdentity(cfg config.CartConfig, logg *logger.Logger, mint bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := guestTokenFromCookie(r, cfg.GuestCookieName)
			if mint && token == "" && UserIDFromContext(r.Context()) == "" {
				minted, err := NewGuestToken(r)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint guest token"))
					return
				}
				token = minted
				SetGuestCookie(w, cfg, token)
			}
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := WithGuestToken(r.Context(), token)
			if logg != nil {
				ctx = logg.WithGuestToken(ctx, token)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewGuestToken returns hex(sha256(fingerprint || nonce)) where the fingerprint
// is built from the user agent and client IP.
func NewGuestToken(r *http.Request) (string, error) {
	nonce := make([]byte, guestNonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(r.UserAgent()))
	h.Write([]byte{0})
	h.Write([]byte(clientIP(r)))
	h.Write(nonce)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SetGuestCookie stores the guest token in an HTTP-only cookie for the guest TTL.
func SetGuestCookie(w http.ResponseWriter, cfg config.CartConfig, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName(cfg),
		Value:    token,
		Path:     "/",
		MaxAge:   int(cfg.GuestTTL / time.Second),
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearGuestCookie expires the guest cookie after its cart was merged.
func ClearGuestCookie(w http.ResponseWriter, cfg config.CartConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName(cfg),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func guestTokenFromCookie(r *http.Request, name string) string {
	if name == "" {
		name = defaultGuestCookie
	}
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	value := strings.TrimSpace(cookie.Value)
	if !validGuestToken(value) {
		return ""
	}
	return value
}

func validGuestToken(value string) bool {
	if len(value) != guestTokenLength {
		return false
	}
	_, err := hex.DecodeString(value)
	return err == nil
}

const defaultGuestCookie = "sf_guest"

func cookieName(cfg config.CartConfig) string {
	if cfg.GuestCookieName == "" {
		return defaultGuestCookie
	}
	return cfg.GuestCookieName
}
