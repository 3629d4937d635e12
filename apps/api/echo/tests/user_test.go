package tests

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/fetc/proposals/apps/api/echo"
	"github.com/fetc/proposals/core/user"
	testutil "github.com/fetc/proposals/tests"
)

const testPassword = "Tr0ub4dor&3x"

func Test_userApi_login(t *testing.T) {
	f := setup(t)

	testutil.CreateUser(t, f.usrRepo, "Ann", "Jansen", "jansen", "ann@example.com", testPassword, nil)
	naughty := testutil.CreateUser(t, f.usrRepo, "Nick", "Dekker", "dekker", "nick@example.com", testPassword, nil)
	naughty.IsActive = false
	_, err := f.usrRepo.UpdateUser(context.Background(), naughty)
	require.NoError(t, err)

	login := func(uname, pwd string) []byte {
		return marchallObj(t, echoapi.LoginRequest{Username: uname, Password: pwd})
	}

	tests := []httpTest{
		{
			name:     "Credentials required",
			body:     login("", ""),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": "this field is required", "password": "this field is required"}),
		},
		{name: "Unknown user", body: login("nobody", testPassword), wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"})},
		{name: "Wrong password", body: login("jansen", "wrong"), wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"})},
		{name: "Inactive user", body: login("dekker", testPassword), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})},
		{name: "Username", body: login("Jansen ", testPassword), wantCode: http.StatusOK},
		{name: "Email", body: login("ann@example.com", testPassword), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.serve(newRequest(http.MethodPost, "/v1/users/login", tt.body))

			if tt.wantCode == http.StatusOK {
				assert.Equal(t, tt.wantCode, rec.Code)
				var resp echoapi.LoginResponse
				unmarshal(t, rec, &resp)
				assert.NotEmpty(t, resp.Token)
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_refreshToken(t *testing.T) {
	f := setup(t)

	ann := testutil.CreateUser(t, f.usrRepo, "Ann", "Jansen", "jansen", "ann@example.com", "", nil)

	now := time.Now()
	unrefreshableClaims := &echoapi.Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    f.conf.AppName,
			Subject:   ann.ID,
			ExpiresAt: now.Add(f.conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		OrigIssuedAt: now.Add(-2 * f.conf.Server.JWTRefreshExpirationDelta).Unix(), // older than threshold
		Username:     ann.Username,
		Roles:        ann.Roles,
	}
	unrefreshableToken, err := echoapi.GenerateToken(f.conf, unrefreshableClaims)
	require.NoError(t, err)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Refresh period expired", token: unrefreshableToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"})},
		{name: "Token refreshed", token: f.getToken(t, ann), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.serve(newAuthRequest(http.MethodPost, "/v1/users/token-refresh", tt.token))

			// cannot guess new token.. just check that it's not empty
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, tt.wantCode, rec.Code)
				var resp echoapi.LoginResponse
				unmarshal(t, rec, &resp)
				assert.NotEmpty(t, resp.Token)
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_me(t *testing.T) {
	f := setup(t)

	ann := testutil.CreateUser(t, f.usrRepo, "Ann", "Jansen", "jansen", "ann@example.com", "", nil)

	rec := f.serve(newAuthRequest(http.MethodGet, "/v1/users/me", f.getToken(t, ann)))
	require.Equal(t, http.StatusOK, rec.Code)

	var got user.User
	unmarshal(t, rec, &got)
	assert.Equal(t, ann.ID, got.ID)
	assert.Equal(t, "jansen", got.Username)
	assert.Equal(t, []string{user.RoleResearcher}, got.Roles)

	// tokens of deleted or unknown users are refused
	ghost := user.User{ID: "ghost", Username: "ghost"}
	rec = f.serve(newAuthRequest(http.MethodGet, "/v1/users/me", f.getToken(t, ghost)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func Test_userApi_register(t *testing.T) {
	f := setup(t)

	ann := testutil.CreateUser(t, f.usrRepo, "Ann", "Jansen", "jansen", "ann@example.com", "", nil)
	sec := testutil.CreateUser(t, f.usrRepo, "Sam", "de Vries", "devries", "sec@example.com", "", []string{user.RoleSecretary})
	member := testutil.CreateUser(t, f.usrRepo, "Mia", "Bakker", "bakker", "mia@example.com", "", []string{user.RoleMember})

	newUser := func(uname, email string, roles ...string) []byte {
		return marchallObj(t, user.NewUser{
			Username:        uname,
			Email:           email,
			FirstName:       "Kim",
			LastName:        "Mulder",
			Password:        testPassword,
			PasswordConfirm: testPassword,
			Roles:           roles,
		})
	}

	tests := []httpTest{
		{name: "Auth required", body: newUser("mulder", "kim@example.com"), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Researchers cannot register users", token: f.getToken(t, ann), body: newUser("mulder", "kim@example.com"), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})},
		{name: "Members cannot register users", token: f.getToken(t, member), body: newUser("mulder", "kim@example.com"), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})},
		{name: "Unknown role", token: f.getToken(t, sec), body: newUser("mulder", "kim@example.com", "admin"), wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"roles": "invalid roles"})},
		{name: "Username taken", token: f.getToken(t, sec), body: newUser("Jansen", "kim@example.com"), wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"username": user.ErrUsernameExists.Error()})},
		{name: "Email taken", token: f.getToken(t, sec), body: newUser("mulder", "ANN@example.com"), wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"email": user.ErrEmailExists.Error()})},
		{name: "Registered", token: f.getToken(t, sec), body: newUser("mulder", "kim@example.com", user.RoleMember), wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.serve(newAuthRequest(http.MethodPost, "/v1/users/register", tt.token, tt.body))

			if tt.wantCode == http.StatusCreated {
				require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
				var got user.User
				unmarshal(t, rec, &got)
				assert.NotEmpty(t, got.ID)
				assert.Equal(t, "mulder", got.Username)
				assert.Equal(t, []string{user.RoleMember}, got.Roles)
				assert.True(t, got.IsActive)
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("Roles", func(t *testing.T) {
		rec := f.serve(newAuthRequest(http.MethodGet, "/v1/users/roles", f.getToken(t, member)))
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, user.Roles)}, rec)
	})
}
