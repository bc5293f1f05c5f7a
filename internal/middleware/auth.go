package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"medsupply/internal/logger"
	"medsupply/internal/model"
	"medsupply/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const actorKey = "actor"

// Claims is the access token payload issued by the identity service
type Claims struct {
	Role             string `json:"role"`
	OrganisationID   string `json:"org_id"`
	OrganisationType string `json:"org_type"`
	jwt.RegisteredClaims
}

var (
	ErrMissingToken = errors.New("authorization is missing")
	ErrUnknownRole  = errors.New("role is not recognised")
)

// ParseActor verifies an HMAC signed token and maps its claims to an Actor.
// Legacy role names are normalised against the organisation type.
func ParseActor(secret []byte, tokenString string) (model.Actor, error) {
	if tokenString == "" {
		return model.Actor{}, ErrMissingToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return model.Actor{}, fmt.Errorf("invalid token: %w", err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.Actor{}, fmt.Errorf("invalid subject %q: %w", claims.Subject, err)
	}
	var orgID uuid.UUID
	if claims.OrganisationID != "" {
		if orgID, err = uuid.Parse(claims.OrganisationID); err != nil {
			return model.Actor{}, fmt.Errorf("invalid org_id %q: %w", claims.OrganisationID, err)
		}
	}

	role := model.NormalizeRole(claims.Role, claims.OrganisationType)
	if role == model.RoleUnknown {
		return model.Actor{}, fmt.Errorf("%w: %q", ErrUnknownRole, claims.Role)
	}

	return model.Actor{
		UserID:           userID,
		OrganisationID:   orgID,
		OrganisationType: strings.ToUpper(strings.TrimSpace(claims.OrganisationType)),
		Role:             role,
	}, nil
}

// SignToken issues an access token for actor. Used by tooling and tests; the
// identity service owns real token issuance.
func SignToken(secret []byte, actor model.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:             string(actor.Role),
		OrganisationType: actor.OrganisationType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if actor.OrganisationID != uuid.Nil {
		claims.OrganisationID = actor.OrganisationID.String()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// tokenFrom reads the access_token cookie first and falls back to the
// Authorization header
func tokenFrom(c *gin.Context) (string, error) {
	if token, err := c.Cookie("access_token"); err == nil && token != "" {
		return token, nil
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", ErrMissingToken
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("invalid authorization format, expected 'Bearer <token>'")
	}
	return parts[1], nil
}

// Authenticate validates the JWT and stores the caller's Actor on the context
func Authenticate(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := tokenFrom(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
			return
		}

		actor, err := ParseActor(secret, tokenString)
		if err != nil {
			status := http.StatusUnauthorized
			if errors.Is(err, ErrUnknownRole) {
				status = http.StatusForbidden
			}
			logger.FromContext(c.Request.Context()).Debug("request rejected", zap.Error(err))
			c.AbortWithStatusJSON(status, response.Error(status, err.Error()))
			return
		}

		c.Set(actorKey, actor)
		c.Set("userID", actor.UserID.String())
		c.Set("userRole", string(actor.Role))
		c.Next()
	}
}

// RequireRoles lets through the listed roles. Platform admins always pass.
func RequireRoles(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, ErrMissingToken.Error()))
			return
		}
		if actor.IsAdmin() {
			c.Next()
			return
		}
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
	}
}

// Role groups used by route registration
var (
	ManufacturerRoles = []model.Role{model.RoleManufacturerAdmin, model.RoleManufacturerStaff}
	BuyerRoles        = []model.Role{model.RoleClinicAdmin, model.RoleClinicStaff, model.RoleHospitalAdmin, model.RoleHospitalStaff}
	OrgAdminRoles     = []model.Role{model.RoleManufacturerAdmin, model.RoleClinicAdmin, model.RoleHospitalAdmin}
)

// ActorFrom returns the Actor stored by Authenticate
func ActorFrom(c *gin.Context) (model.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return model.Actor{}, false
	}
	actor, ok := v.(model.Actor)
	return actor, ok
}
