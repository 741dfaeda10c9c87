package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// fakeWechatClient is a WechatClient with canned answers and call counts.
type fakeWechatClient struct {
	mu sync.Mutex

	token    *AccessToken
	tokenErr error
	phone    *PhoneInfo
	phoneErr error
	session  *SessionInfo

	tokenCalls   int
	phoneCalls   int
	sessionCalls int
	lastToken    string
}

func newFakeWechatClient(phone string) *fakeWechatClient {
	return &fakeWechatClient{
		token: &AccessToken{Value: "ACCESS_TOKEN", ExpiresIn: 7200 * time.Second},
		phone: &PhoneInfo{
			PhoneNumber:     phone,
			PurePhoneNumber: phone[3:],
			CountryCode:     "86",
		},
		session: &SessionInfo{OpenID: "o-openid", UnionID: "u-unionid", SessionKey: "key"},
	}
}

func (f *fakeWechatClient) FetchAccessToken(context.Context) (*AccessToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenCalls++
	if f.tokenErr != nil {
		return nil, f.tokenErr
	}
	return f.token, nil
}

func (f *fakeWechatClient) GetPhoneNumber(_ context.Context, accessToken, _ string) (*PhoneInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.phoneCalls++
	f.lastToken = accessToken
	if f.phoneErr != nil {
		return nil, f.phoneErr
	}
	return f.phone, nil
}

func (f *fakeWechatClient) Code2Session(context.Context, string) (*SessionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionCalls++
	return f.session, nil
}

func (f *fakeWechatClient) remoteCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokenCalls + f.phoneCalls + f.sessionCalls
}

// memIdentityStore is an in-memory IdentityStore.
type memIdentityStore struct {
	mu          sync.Mutex
	byPhone     map[string]*AuthIdentity
	retrieveErr error
	updateErr   error
	created     int
}

func newMemIdentityStore() *memIdentityStore {
	return &memIdentityStore{byPhone: make(map[string]*AuthIdentity)}
}

func (s *memIdentityStore) Retrieve(_ context.Context, entityID string) (*AuthIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retrieveErr != nil {
		return nil, s.retrieveErr
	}
	identity, ok := s.byPhone[entityID]
	if !ok {
		return nil, ErrIdentityNotFound
	}
	out := *identity
	return &out, nil
}

func (s *memIdentityStore) Create(_ context.Context, entityID string, metadata ProviderMetadata) (*AuthIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byPhone[entityID]; ok {
		return nil, ErrIdentityExists
	}
	identity := &AuthIdentity{
		ID:               uuid.New(),
		EntityID:         entityID,
		Provider:         ProviderID,
		ProviderMetadata: metadata,
		AppMetadata:      map[string]any{},
	}
	s.byPhone[entityID] = identity
	s.created++
	out := *identity
	return &out, nil
}

func (s *memIdentityStore) UpdateAppMetadata(_ context.Context, id uuid.UUID, patch map[string]any) (*AuthIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	for _, identity := range s.byPhone {
		if identity.ID != id {
			continue
		}
		meta := make(map[string]any, len(identity.AppMetadata)+len(patch))
		for k, v := range identity.AppMetadata {
			meta[k] = v
		}
		for k, v := range patch {
			meta[k] = v
		}
		identity.AppMetadata = meta
		out := *identity
		return &out, nil
	}
	return nil, ErrIdentityNotFound
}

// memCustomerStore is an in-memory CustomerStore.
type memCustomerStore struct {
	mu        sync.Mutex
	customers []*Customer
	err       error
}

func (s *memCustomerStore) Create(_ context.Context, phone string, metadata map[string]any) (*Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	c := &Customer{ID: NewCustomerID(), Phone: phone, Metadata: metadata}
	s.customers = append(s.customers, c)
	return c, nil
}

var errStoreDown = errors.New("connection refused")
