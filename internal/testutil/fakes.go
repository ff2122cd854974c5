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

package test

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jaycherian/gcp-go-flexvault/internal/core/model"
)

// DefaultVerificationCode is the code FakeIdentityProvider issues unless
// VerificationCode is set.
const DefaultVerificationCode = "123456"

type fakeAccount struct {
	id       string
	email    string
	password string
	name     string
	verified bool
}

// FakeIdentityProvider is an in-memory identity backend. It follows the error
// kinds of the Identity Platform adapter.
type FakeIdentityProvider struct {
	mu               sync.Mutex
	VerificationCode string
	MinPasswordLen   int // Shorter passwords are WeakCredential; defaults to 6.
	accounts         map[string]*fakeAccount
	idTokens         map[string]string // token -> email
	refreshTokens    map[string]string // token -> email
	Calls            map[string]int
}

func NewFakeIdentityProvider() *FakeIdentityProvider {
	return &FakeIdentityProvider{
		VerificationCode: DefaultVerificationCode,
		MinPasswordLen:   6,
		accounts:         make(map[string]*fakeAccount),
		idTokens:         make(map[string]string),
		refreshTokens:    make(map[string]string),
		Calls:            make(map[string]int),
	}
}

// CallCount returns how often method was invoked.
func (f *FakeIdentityProvider) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[method]
}

// Password returns the stored password of email, for assertions.
func (f *FakeIdentityProvider) Password(email string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[email]
	if !ok {
		return "", false
	}
	return a.password, true
}

// AccountCount returns the number of accounts.
func (f *FakeIdentityProvider) AccountCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.accounts)
}

func (f *FakeIdentityProvider) record(method string) {
	f.Calls[method]++
}

func (f *FakeIdentityProvider) issue(a *fakeAccount) *model.TokenBundle {
	idToken := "id-" + uuid.NewString()
	refreshToken := "rt-" + uuid.NewString()
	f.idTokens[idToken] = a.email
	f.refreshTokens[refreshToken] = a.email
	return &model.TokenBundle{AccessToken: idToken, RefreshToken: refreshToken, IDToken: idToken, ExpiresIn: 3600}
}

func (f *FakeIdentityProvider) identity(a *fakeAccount) *model.Identity {
	return &model.Identity{ID: a.id, Email: a.email, EmailVerified: a.verified, Name: a.name}
}

func (f *FakeIdentityProvider) SignUp(_ context.Context, email string, password string, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SignUp")
	if _, ok := f.accounts[email]; ok {
		return "", model.NewError(model.KindConflict, "User already exists")
	}
	if len(password) < f.MinPasswordLen {
		return "", model.NewError(model.KindWeakCredential, "Password does not meet requirements")
	}
	a := &fakeAccount{id: uuid.NewString(), email: email, password: password, name: name}
	f.accounts[email] = a
	return a.id, nil
}

func (f *FakeIdentityProvider) ConfirmSignUp(_ context.Context, email string, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ConfirmSignUp")
	a, ok := f.accounts[email]
	if !ok || code != f.VerificationCode {
		return model.NewError(model.KindInvalidCode, "Invalid verification code")
	}
	a.verified = true
	return nil
}

func (f *FakeIdentityProvider) SignIn(_ context.Context, email string, password string) (*model.TokenBundle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SignIn")
	a, ok := f.accounts[email]
	if !ok || a.password != password {
		return nil, model.NewError(model.KindInvalidCredentials, "Invalid email or password")
	}
	return f.issue(a), nil
}

func (f *FakeIdentityProvider) Lookup(_ context.Context, idToken string) (*model.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Lookup")
	a, ok := f.accounts[f.idTokens[idToken]]
	if !ok {
		return nil, model.NewError(model.KindInvalidToken, "Invalid access token")
	}
	return f.identity(a), nil
}

func (f *FakeIdentityProvider) Refresh(_ context.Context, refreshToken string) (*model.TokenBundle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Refresh")
	a, ok := f.accounts[f.refreshTokens[refreshToken]]
	if !ok {
		return nil, model.NewError(model.KindInvalidToken, "Invalid refresh token")
	}
	tokens := f.issue(a)
	tokens.RefreshToken = refreshToken
	return tokens, nil
}

func (f *FakeIdentityProvider) SendPasswordReset(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SendPasswordReset")
	if _, ok := f.accounts[email]; !ok {
		return model.NewError(model.KindInvalidCredentials, "Invalid email or password")
	}
	return nil
}

func (f *FakeIdentityProvider) ConfirmPasswordReset(_ context.Context, email string, code string, newPassword string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ConfirmPasswordReset")
	a, ok := f.accounts[email]
	if !ok || code != f.VerificationCode {
		return model.NewError(model.KindInvalidCode, "Invalid verification code")
	}
	if len(newPassword) < f.MinPasswordLen {
		return model.NewError(model.KindWeakCredential, "Password does not meet requirements")
	}
	a.password = newPassword
	return nil
}

func (f *FakeIdentityProvider) VerifyToken(_ context.Context, idToken string) (*model.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("VerifyToken")
	a, ok := f.accounts[f.idTokens[idToken]]
	if !ok {
		return nil, model.NewError(model.KindInvalidToken, "Invalid access token")
	}
	return f.identity(a), nil
}

func (f *FakeIdentityProvider) CreateUser(_ context.Context, identity *model.FederatedIdentity, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateUser")
	if _, ok := f.accounts[identity.Email]; ok {
		return model.NewError(model.KindConflict, "User already exists")
	}
	f.accounts[identity.Email] = &fakeAccount{
		id:       uuid.NewString(),
		email:    identity.Email,
		password: password,
		name:     identity.Name,
		verified: identity.EmailVerified,
	}
	return nil
}

func (f *FakeIdentityProvider) SetPassword(_ context.Context, email string, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SetPassword")
	a, ok := f.accounts[email]
	if !ok {
		return model.NewError(model.KindNotFound, "User not found")
	}
	a.password = password
	return nil
}

// FakeTokenVerifier maps third-party tokens to identities.
type FakeTokenVerifier struct {
	Identities map[string]*model.FederatedIdentity
}

func (v *FakeTokenVerifier) Verify(_ context.Context, token string) (*model.FederatedIdentity, error) {
	identity, ok := v.Identities[token]
	if !ok {
		return nil, model.NewError(model.KindInvalidToken, "Invalid Google token")
	}
	c := *identity
	return &c, nil
}

// MemoryFileStore keeps file records in a map keyed by model.RecordKey.
type MemoryFileStore struct {
	mu      sync.Mutex
	records map[string]*model.FileRecord
	Err     error // Returned by every write when set.
}

func NewMemoryFileStore() *MemoryFileStore {
	return &MemoryFileStore{records: make(map[string]*model.FileRecord)}
}

// Put stores a copy of record.
func (s *MemoryFileStore) Put(record *model.FileRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *record
	c.PK = model.RecordKey(c.OwnerID, c.Key)
	c.Tags = append([]string(nil), record.Tags...)
	s.records[c.PK] = &c
}

func (s *MemoryFileStore) Get(_ context.Context, ownerID string, key string) (*model.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[model.RecordKey(ownerID, key)]
	if !ok {
		return nil, model.NewError(model.KindNotFound, "File not found")
	}
	c := *r
	c.Tags = append([]string(nil), r.Tags...)
	return &c, nil
}

func (s *MemoryFileStore) upsert(ownerID string, key string) *model.FileRecord {
	pk := model.RecordKey(ownerID, key)
	r, ok := s.records[pk]
	if !ok {
		r = &model.FileRecord{OwnerID: ownerID, Key: key, PK: pk}
		s.records[pk] = r
	}
	return r
}

func (s *MemoryFileStore) MarkReady(_ context.Context, ownerID string, key string, size int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	r := s.upsert(ownerID, key)
	r.Status = model.StatusReady
	r.Size = size
	r.UpdatedAt = at
	return nil
}

func (s *MemoryFileStore) AppendTags(_ context.Context, ownerID string, key string, result *model.TagResult, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	r := s.upsert(ownerID, key)
	r.Tags = append(r.Tags, result.Tags...)
	r.EmbeddingID = result.EmbeddingID
	r.UpdatedAt = at
	return nil
}

// MemoryUploadStore keeps pending uploads by ID.
type MemoryUploadStore struct {
	mu      sync.Mutex
	uploads map[string]*model.PendingUpload
	Err     error
}

func NewMemoryUploadStore() *MemoryUploadStore {
	return &MemoryUploadStore{uploads: make(map[string]*model.PendingUpload)}
}

func (s *MemoryUploadStore) Put(_ context.Context, upload *model.PendingUpload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.uploads[upload.UploadID]; ok {
		return model.NewError(model.KindConflict, "Upload already exists")
	}
	c := *upload
	s.uploads[upload.UploadID] = &c
	return nil
}

// Uploads returns all records ordered by key.
func (s *MemoryUploadStore) Uploads() []*model.PendingUpload {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.PendingUpload, 0, len(s.uploads))
	for _, u := range s.uploads {
		c := *u
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// MemoryJobQueue records published jobs.
type MemoryJobQueue struct {
	mu   sync.Mutex
	jobs []model.JobMessage
	Err  error
}

func (q *MemoryJobQueue) Publish(_ context.Context, job *model.JobMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Err != nil {
		return q.Err
	}
	q.jobs = append(q.jobs, *job)
	return nil
}

// Jobs returns the published jobs in order.
func (q *MemoryJobQueue) Jobs() []model.JobMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]model.JobMessage(nil), q.jobs...)
}

// StaticSigner returns deterministic URLs and remembers the last upload signature.
type StaticSigner struct {
	mu              sync.Mutex
	BaseURL         string
	Err             error
	LastContentType string
	LastMetadata    map[string]string
}

func (s *StaticSigner) base() string {
	if len(s.BaseURL) == 0 {
		return "https://storage.example.test/flexvault-uploads"
	}
	return s.BaseURL
}

func (s *StaticSigner) SignUpload(_ context.Context, key string, contentType string, metadata map[string]string, expires time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	s.LastContentType = contentType
	s.LastMetadata = make(map[string]string, len(metadata))
	for k, v := range metadata {
		s.LastMetadata[k] = v
	}
	return fmt.Sprintf("%s/%s?method=PUT&expires=%d", s.base(), url.PathEscape(key), int(expires.Seconds())), nil
}

func (s *StaticSigner) SignDownload(_ context.Context, key string, expires time.Duration) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	return fmt.Sprintf("%s/%s?method=GET&expires=%d", s.base(), url.PathEscape(key), int(expires.Seconds())), nil
}
