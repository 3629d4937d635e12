package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	echoapi "github.com/fetc/proposals/apps/api/echo"
	"github.com/fetc/proposals/core"
	"github.com/fetc/proposals/core/review"
	"github.com/fetc/proposals/core/user"
	emailsvc "github.com/fetc/proposals/services/email"
	logsvc "github.com/fetc/proposals/services/logger"
	sqlxrepos "github.com/fetc/proposals/storage/database/sqlx"
	"github.com/fetc/proposals/storage/files"
	testutil "github.com/fetc/proposals/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type fixture struct {
	app     echoapi.Server
	conf    *core.Config
	usrRepo user.Repository
	mail    *emailsvc.ConsoleService
}

func setup(t *testing.T) *fixture {
	t.Helper()

	// set up DB & repos
	db := testutil.OpenDB(t)
	usrRepo := sqlxrepos.NewUserRepository(db)

	conf := &core.Config{
		TestMode:        true,
		Env:             "TEST",
		AppName:         "FETC",
		SecretKey:       "test-secret",
		Committee:       "AK",
		FrontendBaseURL: "http://localhost:3000",
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: time.Hour,
		},
	}
	logger := logsvc.NewStdLogger(log.New(io.Discard, "", 0))
	validate, translator := testutil.NewValidator()

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	usrSvc := user.NewService(usrRepo)
	reviewSvc := review.NewService(review.Deps{
		Conf:        conf,
		Proposals:   sqlxrepos.NewProposalRepository(db),
		Attachments: sqlxrepos.NewAttachmentRepository(db),
		Users:       usrSvc,
		Files:       files.NewStore(t.TempDir()),
		Mailer:      mailSvc,
		Logger:      logger,
		Validate:    validate,
		Translator:  translator,
	})

	// set up server
	app := echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		UserSvc:    usrSvc,
		ReviewSvc:  reviewSvc,
		Validate:   validate,
		Translator: translator,
	})
	t.Cleanup(func() { _ = app.Close() })

	return &fixture{app: app, conf: conf, usrRepo: usrRepo, mail: mailSvc}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// newUploadRequest posts content as the "file" field of a multipart form with fields.
func newUploadRequest(t *testing.T, path, token, filename, content string, fields map[string]string) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("newUploadRequest() failed: %v", err)
		}
	}
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("newUploadRequest() failed: %v", err)
	}
	if _, err := io.WriteString(fw, content); err != nil {
		t.Fatalf("newUploadRequest() failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("newUploadRequest() failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req, httptest.NewRecorder()
}

func (f *fixture) getToken(t *testing.T, usr user.User) string {
	token, err := echoapi.GenerateToken(f.conf, echoapi.GetUserClaims(f.conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func (f *fixture) serve(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	f.app.ServeHTTP(rec, req)
	return rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ObjectsAreEqualValues(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
