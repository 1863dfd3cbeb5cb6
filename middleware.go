package onboard

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
)

var (
	// ErrJWTMissingOrMalformed reports a request without a usable token.
	ErrJWTMissingOrMalformed = goerrors.New("missing or malformed JWT", goerrors.CategoryAuth).
		WithCode(goerrors.CodeBadRequest)
	// ErrInsufficientRole reports a valid token that lacks the required role.
	ErrInsufficientRole = goerrors.New("access denied: insufficient role", goerrors.CategoryAuthz).
		WithCode(goerrors.CodeForbidden)
)

// TokenValidator is the validation side of TokenService. Declared
// separately so middleware consumers can plug alternative validators.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// AuthMiddlewareConfig configures RequireAuth.
type AuthMiddlewareConfig struct {
	// TokenValidator is required.
	TokenValidator TokenValidator

	// Filter skips the middleware when it returns true.
	Filter func(*fiber.Ctx) bool

	// ErrorHandler renders validation failures. Defaults to a JSON body
	// with 400 for missing tokens, 403 for role failures, 401 otherwise.
	ErrorHandler func(*fiber.Ctx, error) error

	// ContextKey is the Locals key the claims are stored under.
	// Defaults to "user".
	ContextKey string

	// TokenLookup is a comma separated list of extraction sources, e.g.
	// "header:Authorization,cookie:jwt,query:auth_token".
	TokenLookup string

	// AuthScheme is the expected header scheme. Defaults to "Bearer".
	AuthScheme string

	// RequiredRole gates the route to one exact role when set.
	RequiredRole string

	// RoleChecker overrides the role comparison when set.
	RoleChecker func(claims AuthClaims, role string) bool
}

const defaultTokenLookup = "header:" + fiber.HeaderAuthorization

// RequireAuth returns a handler that validates the session token and
// stores the claims in the request locals. Routes behind it can read
// them back with ClaimsFromCtx.
func RequireAuth(config ...AuthMiddlewareConfig) fiber.Handler {
	cfg := getAuthMiddlewareConfig(config...)

	extractors := getExtractors(cfg.TokenLookup, cfg.AuthScheme)

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		raw, err := extractRawToken(c, extractors)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		claims, err := cfg.TokenValidator.Validate(raw)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		if cfg.RequiredRole != "" {
			allowed := claims.HasRole(cfg.RequiredRole)
			if cfg.RoleChecker != nil {
				allowed = cfg.RoleChecker(claims, cfg.RequiredRole)
			}
			if !allowed {
				return cfg.ErrorHandler(c, ErrInsufficientRole)
			}
		}

		c.Locals(cfg.ContextKey, claims)

		return c.Next()
	}
}

// RequireRole is RequireAuth preconfigured to gate on one role.
func RequireRole(validator TokenValidator, role UserRole) fiber.Handler {
	return RequireAuth(AuthMiddlewareConfig{
		TokenValidator: validator,
		RequiredRole:   role,
	})
}

// ClaimsFromCtx reads the claims a RequireAuth middleware stored. The
// key must match the middleware's ContextKey.
func ClaimsFromCtx(c *fiber.Ctx, key ...string) (AuthClaims, bool) {
	k := "user"
	if len(key) > 0 && key[0] != "" {
		k = key[0]
	}

	claims, ok := c.Locals(k).(AuthClaims)
	return claims, ok
}

func getAuthMiddlewareConfig(config ...AuthMiddlewareConfig) AuthMiddlewareConfig {
	var cfg AuthMiddlewareConfig
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.TokenValidator == nil {
		panic("ONBOARD: auth middleware configuration: TokenValidator is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultAuthErrorHandler
	}

	return cfg
}

func defaultAuthErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusUnauthorized
	message := "Invalid or expired token"

	switch {
	case goerrors.Is(err, ErrJWTMissingOrMalformed):
		status = fiber.StatusBadRequest
		message = ErrJWTMissingOrMalformed.Message
	case goerrors.Is(err, ErrInsufficientRole):
		status = fiber.StatusForbidden
		message = ErrInsufficientRole.Message
	}

	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{"message": message},
	})
}

type jwtExtractor func(c *fiber.Ctx) (string, error)

func extractRawToken(c *fiber.Ctx, extractors []jwtExtractor) (string, error) {
	var raw string
	var err error

	for _, extractor := range extractors {
		raw, err = extractor(c)
		if raw != "" && err == nil {
			break
		}
	}

	if raw == "" && err == nil {
		err = ErrJWTMissingOrMalformed
	}

	return raw, err
}

// getExtractors parses a lookup string such as
// "header:Authorization,cookie:jwt,query:auth_token,param:token".
func getExtractors(tokenLookup string, authScheme string) []jwtExtractor {
	extractors := make([]jwtExtractor, 0)

	for _, rootPart := range strings.Split(tokenLookup, ",") {
		parts := strings.Split(strings.TrimSpace(rootPart), ":")
		if len(parts) != 2 {
			continue
		}

		source := strings.TrimSpace(parts[0])
		name := strings.TrimSpace(parts[1])

		switch source {
		case "header":
			extractors = append(extractors, jwtFromHeader(name, authScheme))
		case "query":
			extractors = append(extractors, jwtFromQuery(name))
		case "param":
			extractors = append(extractors, jwtFromParam(name))
		case "cookie":
			extractors = append(extractors, jwtFromCookie(name))
		}
	}

	return extractors
}

func jwtFromHeader(header, authScheme string) jwtExtractor {
	return func(c *fiber.Ctx) (string, error) {
		a := c.Get(header)
		l := len(authScheme)
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) {
			return strings.TrimSpace(a[l:]), nil
		}
		return "", ErrJWTMissingOrMalformed
	}
}

func jwtFromQuery(param string) jwtExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Query(param)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

func jwtFromParam(param string) jwtExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Params(param)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

func jwtFromCookie(name string) jwtExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}
