// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-flexvault/internal/api"
	"github.com/jaycherian/gcp-go-flexvault/internal/core/model"
	"github.com/jaycherian/gcp-go-flexvault/internal/core/services"
	test "github.com/jaycherian/gcp-go-flexvault/internal/testutil"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/assert"
)

const password = "Passw0rdX"

type harness struct {
	router   *gin.Engine
	provider *test.FakeIdentityProvider
	signer   *test.StaticSigner
	files    *test.MemoryFileStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	provider := test.NewFakeIdentityProvider()
	signer := &test.StaticSigner{}
	files := test.NewMemoryFileStore()
	identity := services.NewIdentityService(provider)
	verifier := &test.FakeTokenVerifier{Identities: map[string]*model.FederatedIdentity{
		"google-token-0001": {Subject: "sub-1", Email: "g@x.com", Name: "Gina", EmailVerified: true},
	}}

	federated, err := services.NewFederatedSignIn(provider, verifier, "s3cret")
	require.NoError(t, err)

	deps := &api.Dependencies{
		Identity:  identity,
		Federated: federated,
		Files: &services.FileService{
			Signer:         signer,
			Uploads:        test.NewMemoryUploadStore(),
			Files:          files,
			UploadExpiry:   15 * time.Minute,
			DownloadExpiry: 10 * time.Minute,
			UploadTTL:      time.Hour,
		},
	}
	return &harness{router: api.NewRouter(deps, api.CORS()), provider: provider, signer: signer, files: files}
}

type response struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data"`
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	raw     map[string]interface{}
}

func (h *harness) do(t *testing.T, method string, path string, body string, token string) (int, *response) {
	t.Helper()
	var reader *bytes.Reader
	if len(body) > 0 {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if len(token) > 0 {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	out := &response{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out.raw))
	return w.Code, out
}

// signUp registers, confirms and logs in; it returns the access token.
func (h *harness) signUp(t *testing.T, email string) string {
	t.Helper()
	code, _ := h.do(t, http.MethodPost, "/api/v1/auth/register",
		`{"email":"`+email+`","password":"`+password+`","name":"Alice"}`, "")
	require.Equal(t, http.StatusCreated, code)
	code, _ = h.do(t, http.MethodPost, "/api/v1/auth/confirm",
		`{"email":"`+email+`","code":"`+test.DefaultVerificationCode+`"}`, "")
	require.Equal(t, http.StatusOK, code)
	code, res := h.do(t, http.MethodPost, "/api/v1/auth/login",
		`{"email":"`+email+`","password":"`+password+`"}`, "")
	require.Equal(t, http.StatusOK, code)
	return res.Data["accessToken"].(string)
}

func TestRegisterEnvelope(t *testing.T) {
	h := newHarness(t)

	code, res := h.do(t, http.MethodPost, "/api/v1/auth/register",
		`{"email":"a@x.com","password":"`+password+`","name":"Alice"}`, "")
	assert.Equal(t, http.StatusCreated, code)
	assert.True(t, res.Success)
	assert.Equal(t, "a@x.com", res.Data["email"])
	assert.Equal(t, "User registered successfully. Please check your email for verification code.", res.Message)
	_, hasError := res.raw["error"]
	assert.False(t, hasError)
}

func TestValidationMessagesAreJoined(t *testing.T) {
	h := newHarness(t)

	code, res := h.do(t, http.MethodPost, "/api/v1/auth/register", `{"email":"nope","password":"short"}`, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, res.Success)
	assert.Equal(t, "Validation error", res.Error)
	assert.Equal(t, "Invalid email address, "+
		"Password must be at least 8 characters and contain an uppercase letter, a lowercase letter and a number, "+
		"name is required", res.Message)
	_, hasData := res.raw["data"]
	assert.False(t, hasData)
}

func TestMalformedJSONIsValidationError(t *testing.T) {
	h := newHarness(t)

	code, res := h.do(t, http.MethodPost, "/api/v1/auth/login", `{"email":`, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Validation error", res.Error)
}

func TestStatusMapping(t *testing.T) {
	h := newHarness(t)
	register := `{"email":"a@x.com","password":"` + password + `","name":"Alice"}`

	code, _ := h.do(t, http.MethodPost, "/api/v1/auth/register", register, "")
	require.Equal(t, http.StatusCreated, code)

	code, res := h.do(t, http.MethodPost, "/api/v1/auth/register", register, "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "User already exists", res.Error)

	code, res = h.do(t, http.MethodPost, "/api/v1/auth/login", `{"email":"a@x.com","password":"`+password+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Email not verified", res.Error)

	code, _ = h.do(t, http.MethodPost, "/api/v1/auth/confirm", `{"email":"a@x.com","code":"000000"}`, "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = h.do(t, http.MethodPost, "/api/v1/auth/login", `{"email":"a@x.com","password":"Wrong1234"}`, "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = h.do(t, http.MethodPost, "/api/v1/auth/refresh", `{"refreshToken":"rt-unknown"}`, "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestForgotPasswordDoesNotRevealAccounts(t *testing.T) {
	h := newHarness(t)
	h.signUp(t, "a@x.com")

	knownCode, known := h.do(t, http.MethodPost, "/api/v1/auth/forgot-password", `{"email":"a@x.com"}`, "")
	unknownCode, unknown := h.do(t, http.MethodPost, "/api/v1/auth/forgot-password", `{"email":"ghost@x.com"}`, "")
	assert.Equal(t, http.StatusOK, knownCode)
	assert.Equal(t, knownCode, unknownCode)
	assert.Equal(t, known.Message, unknown.Message)
}

func TestMeRequiresBearer(t *testing.T) {
	h := newHarness(t)
	token := h.signUp(t, "a@x.com")

	code, res := h.do(t, http.MethodGet, "/api/v1/auth/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Unauthorized", res.Error)

	code, _ = h.do(t, http.MethodGet, "/api/v1/auth/me", "", "id-forged")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, res = h.do(t, http.MethodGet, "/api/v1/auth/me", "", token)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "a@x.com", res.Data["email"])
	assert.Equal(t, true, res.Data["emailVerified"])
}

func TestGoogleSignIn(t *testing.T) {
	h := newHarness(t)

	code, res := h.do(t, http.MethodPost, "/api/v1/auth/google", `{"idToken":"google-token-0001"}`, "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Google sign-in succeeded", res.Message)

	code, res = h.do(t, http.MethodPost, "/api/v1/auth/google", `{"idToken":"short"}`, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Validation error", res.Error)

	code, _ = h.do(t, http.MethodPost, "/api/v1/auth/google", `{"idToken":"forged-token-0001"}`, "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestUploadAndDownloadURLs(t *testing.T) {
	h := newHarness(t)
	token := h.signUp(t, "a@x.com")
	code, me := h.do(t, http.MethodGet, "/api/v1/auth/me", "", token)
	require.Equal(t, http.StatusOK, code)
	userID := me.Data["userId"].(string)

	code, res := h.do(t, http.MethodPost, "/api/v1/files/upload-url",
		`{"filename":"doc.pdf","contentType":"application/pdf","size":2048}`, token)
	require.Equal(t, http.StatusOK, code)
	key := res.Data["key"].(string)
	assert.True(t, strings.HasPrefix(key, userID+"/"))
	assert.True(t, strings.HasSuffix(key, "-doc.pdf"))
	assert.NotNil(t, res.Data["uploadUrl"])

	// Not READY yet: no record exists for the key.
	code, _ = h.do(t, http.MethodGet, "/api/v1/files/download-url?key="+key, "", token)
	assert.Equal(t, http.StatusNotFound, code)

	h.files.Put(&model.FileRecord{OwnerID: userID, Key: key, Status: model.StatusReady, Size: 2048})
	code, res = h.do(t, http.MethodGet, "/api/v1/files/download-url?key="+key, "", token)
	assert.Equal(t, http.StatusOK, code)
	assert.NotNil(t, res.Data["downloadUrl"])

	other := h.signUp(t, "b@x.com")
	code, _ = h.do(t, http.MethodGet, "/api/v1/files/download-url?key="+key, "", other)
	assert.Equal(t, http.StatusNotFound, code)

	code, res = h.do(t, http.MethodGet, "/api/v1/files/download-url", "", token)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Validation error", res.Error)
}

func TestUploadURLAllowsEmptyFiles(t *testing.T) {
	h := newHarness(t)
	token := h.signUp(t, "a@x.com")

	code, res := h.do(t, http.MethodPost, "/api/v1/files/upload-url", `{"filename":"empty.txt","size":0}`, token)
	assert.Equal(t, http.StatusOK, code)
	assert.NotNil(t, res.Data["uploadUrl"])

	code, res = h.do(t, http.MethodPost, "/api/v1/files/upload-url", `{"filename":"neg.txt","size":-1}`, token)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Validation error", res.Error)
}

func TestFileRoutesHideUpstreamErrors(t *testing.T) {
	h := newHarness(t)
	token := h.signUp(t, "a@x.com")
	h.signer.Err = errors.New("iam: permission denied on projects/p/serviceAccounts/x")

	code, res := h.do(t, http.MethodPost, "/api/v1/files/upload-url", `{"filename":"doc.pdf","size":1}`, token)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Internal error", res.Error)
}

func TestFileRoutesRequireAuth(t *testing.T) {
	h := newHarness(t)

	code, _ := h.do(t, http.MethodPost, "/api/v1/files/upload-url", `{"filename":"doc.pdf","size":1}`, "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestHealth(t *testing.T) {
	h := newHarness(t)

	code, res := h.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", res.Data["status"])
}

func TestCORSPreflightAllowsAuthorization(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/files/upload-url", nil)
	req.Header.Set("Origin", "https://app.flexvault.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "authorization,content-type")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.True(t, strings.Contains(w.Header().Get("Access-Control-Allow-Headers"), "Authorization"))
	assert.True(t, strings.Contains(w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost))
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/limited", api.RateLimit(0.001, 1), func(c *gin.Context) { api.Success(c, http.StatusOK, nil, "") })

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/limited", nil))
	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/limited", nil))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, api.StatusFor(model.KindWeakCredential, http.StatusInternalServerError))
	assert.Equal(t, http.StatusBadRequest, api.StatusFor(model.KindExpiredCode, http.StatusInternalServerError))
	assert.Equal(t, http.StatusUnauthorized, api.StatusFor(model.KindNotVerified, http.StatusInternalServerError))
	assert.Equal(t, http.StatusNotFound, api.StatusFor(model.KindNotFound, http.StatusInternalServerError))
	assert.Equal(t, http.StatusTooManyRequests, api.StatusFor(model.KindRateLimited, http.StatusInternalServerError))
	assert.Equal(t, http.StatusInternalServerError, api.StatusFor(model.KindUpstream, http.StatusInternalServerError))
	assert.Equal(t, http.StatusBadRequest, api.StatusFor(model.KindUpstream, http.StatusBadRequest))
}

func TestIsStrongPassword(t *testing.T) {
	assert.True(t, api.IsStrongPassword("Passw0rdX"))
	assert.False(t, api.IsStrongPassword("password1"))
	assert.False(t, api.IsStrongPassword("PASSWORD1"))
	assert.False(t, api.IsStrongPassword("Password"))
	assert.False(t, api.IsStrongPassword("Pa1"))
}
