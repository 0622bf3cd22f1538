package notification

import (
	"context"
	"sync"

	"github.com/hitoshi/bptogether/internal/metrics"
	"github.com/hitoshi/bptogether/internal/model"
)

// --- モック ---

type topicCall struct {
	tokens []string
	topic  string
}

type mockProvider struct {
	mu            sync.Mutex
	subscribeFn   func(ctx context.Context, tokens []string, topic string) (*TopicResult, error)
	unsubscribeFn func(ctx context.Context, tokens []string, topic string) (*TopicResult, error)
	sendFn        func(ctx context.Context, msg *Message) error

	subscribed   []topicCall
	unsubscribed []topicCall
	sent         []*Message
}

func (m *mockProvider) SubscribeToTopic(ctx context.Context, tokens []string, topic string) (*TopicResult, error) {
	m.mu.Lock()
	m.subscribed = append(m.subscribed, topicCall{tokens: append([]string(nil), tokens...), topic: topic})
	m.mu.Unlock()
	if m.subscribeFn != nil {
		return m.subscribeFn(ctx, tokens, topic)
	}
	return &TopicResult{SuccessCount: len(tokens)}, nil
}

func (m *mockProvider) UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) (*TopicResult, error) {
	m.mu.Lock()
	m.unsubscribed = append(m.unsubscribed, topicCall{tokens: append([]string(nil), tokens...), topic: topic})
	m.mu.Unlock()
	if m.unsubscribeFn != nil {
		return m.unsubscribeFn(ctx, tokens, topic)
	}
	return &TopicResult{SuccessCount: len(tokens)}, nil
}

func (m *mockProvider) Send(ctx context.Context, msg *Message) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	if m.sendFn != nil {
		return m.sendFn(ctx, msg)
	}
	return nil
}

type mockTokenRepo struct {
	upsertFn        func(ctx context.Context, token *model.DeviceToken) error
	deleteByTokenFn func(ctx context.Context, token string) (int64, error)
	existsFn        func(ctx context.Context, token string) (bool, error)
	listFn          func(ctx context.Context, userID string) ([]string, error)

	upserted []*model.DeviceToken
	deleted  []string
}

func (m *mockTokenRepo) Upsert(ctx context.Context, token *model.DeviceToken) error {
	m.upserted = append(m.upserted, token)
	if m.upsertFn != nil {
		return m.upsertFn(ctx, token)
	}
	return nil
}

func (m *mockTokenRepo) DeleteByToken(ctx context.Context, token string) (int64, error) {
	m.deleted = append(m.deleted, token)
	if m.deleteByTokenFn != nil {
		return m.deleteByTokenFn(ctx, token)
	}
	return 1, nil
}

func (m *mockTokenRepo) Exists(ctx context.Context, token string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, token)
	}
	return false, nil
}

func (m *mockTokenRepo) ListTokensByUser(ctx context.Context, userID string) ([]string, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return nil, nil
}

type mockSharerLister struct {
	ids []string
	err error
}

func (m *mockSharerLister) ListNotifiedSharerIDs(ctx context.Context, viewerID string) ([]string, error) {
	return m.ids, m.err
}

type mockMetrics struct {
	metrics.Nop

	mu           sync.Mutex
	topicSuccess int
	topicFailure int
	topicErrors  int
	sent         map[string]int
	failed       map[string]int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{sent: map[string]int{}, failed: map[string]int{}}
}

func (m *mockMetrics) RecordTopicTokens(op string, success, failure int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topicSuccess += success
	m.topicFailure += failure
}

func (m *mockMetrics) RecordTopicError(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topicErrors++
}

func (m *mockMetrics) RecordNotificationSent(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[kind]++
}

func (m *mockMetrics) RecordNotificationFailure(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[kind]++
}
