package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"medsupply/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func signRaw(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return token
}

func TestParseActor_NormalisesLegacyRoles(t *testing.T) {
	userID, orgID := uuid.New(), uuid.New()
	token := signRaw(t, Claims{
		Role:             "doctor",
		OrganisationID:   orgID.String(),
		OrganisationType: "hospital",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	actor, err := ParseActor(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, userID, actor.UserID)
	assert.Equal(t, orgID, actor.OrganisationID)
	assert.Equal(t, model.RoleHospitalStaff, actor.Role)
	assert.Equal(t, model.OrgTypeHospital, actor.OrganisationType)
}

func TestParseActor_Rejects(t *testing.T) {
	valid := jwt.RegisteredClaims{Subject: uuid.NewString(), ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}

	_, err := ParseActor(testSecret, "")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = ParseActor(testSecret, signRaw(t, Claims{Role: "janitor", RegisteredClaims: valid}))
	assert.ErrorIs(t, err, ErrUnknownRole)

	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	_, err = ParseActor(testSecret, signRaw(t, Claims{Role: "ADMIN", RegisteredClaims: expired}))
	assert.Error(t, err)

	_, err = ParseActor([]byte("other"), signRaw(t, Claims{Role: "ADMIN", RegisteredClaims: valid}))
	assert.Error(t, err)

	_, err = ParseActor(testSecret, signRaw(t, Claims{Role: "ADMIN", RegisteredClaims: jwt.RegisteredClaims{Subject: "not-a-uuid"}}))
	assert.Error(t, err)
}

func newAuthRouter(roles ...model.Role) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/private", Authenticate(testSecret), RequireRoles(roles...), func(c *gin.Context) {
		actor, _ := ActorFrom(c)
		c.String(http.StatusOK, string(actor.Role))
	})
	return r
}

func TestAuthenticate(t *testing.T) {
	router := newAuthRouter(ManufacturerRoles...)
	mfr := model.Actor{UserID: uuid.New(), OrganisationID: uuid.New(), OrganisationType: model.OrgTypeManufacturer, Role: model.RoleManufacturerStaff}
	clinic := model.Actor{UserID: uuid.New(), OrganisationID: uuid.New(), OrganisationType: model.OrgTypeClinic, Role: model.RoleClinicAdmin}
	admin := model.Actor{UserID: uuid.New(), Role: model.RoleAdmin}

	bearer := func(a model.Actor) string {
		token, err := SignToken(testSecret, a, time.Hour)
		require.NoError(t, err)
		return "Bearer " + token
	}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"malformed header", "Token abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc", http.StatusUnauthorized},
		{"manufacturer allowed", bearer(mfr), http.StatusOK},
		{"clinic denied", bearer(clinic), http.StatusForbidden},
		{"admin always allowed", bearer(admin), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestAuthenticate_ReadsCookie(t *testing.T) {
	router := newAuthRouter(BuyerRoles...)
	token, err := SignToken(testSecret, model.Actor{UserID: uuid.New(), OrganisationID: uuid.New(), OrganisationType: model.OrgTypeClinic, Role: model.RoleClinicStaff}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: token})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(model.RoleClinicStaff), w.Body.String())
}
