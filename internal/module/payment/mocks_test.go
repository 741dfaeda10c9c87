package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/go-pay/crypto/aes"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testAPIKeyV3 = "0123456789abcdef0123456789abcdef"
	testNonce    = "abcdefghijkl"
	testDomain   = "https://pay.example.com"
)

// --- Mock Implementations ---

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateJSAPI(ctx context.Context, req CreateRequest) (*CreateResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CreateResponse), args.Error(1)
}

func (m *MockGateway) CreateNative(ctx context.Context, req CreateRequest) (*CreateResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CreateResponse), args.Error(1)
}

func (m *MockGateway) QueryByOutTradeNo(ctx context.Context, outTradeNo string) (*TradeQueryResult, error) {
	args := m.Called(ctx, outTradeNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*TradeQueryResult), args.Error(1)
}

func (m *MockGateway) Close(ctx context.Context, outTradeNo string) error {
	args := m.Called(ctx, outTradeNo)
	return args.Error(0)
}

func (m *MockGateway) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*RefundResult), args.Error(1)
}

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) VerifyNotification(ctx context.Context, body []byte, header http.Header) error {
	args := m.Called(ctx, body, header)
	return args.Error(0)
}

type MockObjectStorage struct {
	mock.Mock
}

func (m *MockObjectStorage) Put(ctx context.Context, key string, body []byte, contentType string) error {
	args := m.Called(ctx, key, body, contentType)
	return args.Error(0)
}

func (m *MockObjectStorage) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// memRepository is an in-memory Repository. Records are copied on the way
// in and out, like a database round-trip.
type memRepository struct {
	mu       sync.Mutex
	sessions map[string]PaymentSession
	events   map[string]PaymentWebhookEvent
}

func newMemRepository() *memRepository {
	return &memRepository{
		sessions: make(map[string]PaymentSession),
		events:   make(map[string]PaymentWebhookEvent),
	}
}

func (r *memRepository) CreateSession(_ context.Context, session *PaymentSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	session.CreatedAt, session.UpdatedAt = now, now
	stored := *session
	stored.Data = session.Data.Clone()
	r.sessions[session.ID] = stored
	return nil
}

func (r *memRepository) GetSession(_ context.Context, id string) (*PaymentSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := stored
	out.Data = stored.Data.Clone()
	return &out, nil
}

func (r *memRepository) UpdateSession(_ context.Context, session *PaymentSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session.UpdatedAt = time.Now()
	stored := *session
	stored.Data = session.Data.Clone()
	r.sessions[session.ID] = stored
	return nil
}

func (r *memRepository) CreateWebhookEvent(_ context.Context, event *PaymentWebhookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := event.Provider + "/" + event.EventID
	if _, ok := r.events[key]; ok {
		return ErrWebhookEventExists
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	r.events[key] = *event
	return nil
}

func (r *memRepository) GetWebhookEvent(_ context.Context, provider, eventID string) (*PaymentWebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[provider+"/"+eventID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &event, nil
}

func (r *memRepository) MarkWebhookEventProcessed(_ context.Context, id uuid.UUID, processErr error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, event := range r.events {
		if event.ID != id {
			continue
		}
		now := time.Now()
		event.Processed = true
		event.ProcessedAt = &now
		if processErr != nil {
			msg := processErr.Error()
			event.Error = &msg
		}
		r.events[key] = event
	}
	return nil
}

func (r *memRepository) eventCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// --- Helpers ---

func newTestProvider(v Variant, gw Gateway, opts ProviderOptions) *Provider {
	if opts.Domain == "" {
		opts.Domain = testDomain
	}
	if opts.APIKeyV3 == "" {
		opts.APIKeyV3 = testAPIKeyV3
	}
	return NewProvider(v, gw, nil, opts, zap.NewNop(), nil)
}

// encryptResource seals plaintext the way WeChat Pay does.
func encryptResource(t *testing.T, plaintext []byte, nonce, associatedData string) NotificationResource {
	t.Helper()
	sealed, err := aes.GCMEncrypt(plaintext, []byte(nonce), []byte(associatedData), []byte(testAPIKeyV3))
	require.NoError(t, err)
	return NotificationResource{
		Algorithm:      "AEAD_AES_256_GCM",
		Ciphertext:     base64.StdEncoding.EncodeToString(sealed),
		AssociatedData: associatedData,
		Nonce:          nonce,
		OriginalType:   "transaction",
	}
}

// notificationBody builds an encrypted notification envelope the way
// WeChat Pay posts it.
func notificationBody(t *testing.T, id string, n map[string]any) []byte {
	t.Helper()
	plaintext, err := json.Marshal(n)
	require.NoError(t, err)
	resource := encryptResource(t, plaintext, testNonce, "transaction")

	body, err := json.Marshal(NotificationEnvelope{
		ID:           id,
		CreateTime:   "2024-05-01T10:00:00+08:00",
		EventType:    "TRANSACTION.SUCCESS",
		ResourceType: "encrypt-resource",
		Summary:      "支付成功",
		Resource:     resource,
	})
	require.NoError(t, err)
	return body
}
