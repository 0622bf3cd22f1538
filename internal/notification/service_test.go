package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/bptogether/internal/model"
)

func TestService_RegisterToken_SubscribesOwnAndWatchedTopics(t *testing.T) {
	p := &mockProvider{}
	repo := &mockTokenRepo{}
	sharers := &mockSharerLister{ids: []string{"alice", "carol"}}
	svc := NewService(repo, sharers, p, NewFanout(p, nil, nil), nil)

	if err := svc.RegisterToken(context.Background(), "bob", "tok-bob", "ios"); err != nil {
		t.Fatalf("RegisterToken returned error: %v", err)
	}

	if len(repo.upserted) != 1 {
		t.Fatalf("upserted = %d, want 1", len(repo.upserted))
	}
	saved := repo.upserted[0]
	if saved.UserID != "bob" || saved.Token != "tok-bob" || saved.Platform != "ios" {
		t.Errorf("unexpected token: %+v", saved)
	}

	wantTopics := []string{"topic-bob", "topic-alice", "topic-carol"}
	if len(p.subscribed) != len(wantTopics) {
		t.Fatalf("subscribe calls = %d, want %d", len(p.subscribed), len(wantTopics))
	}
	for i, want := range wantTopics {
		if p.subscribed[i].topic != want {
			t.Errorf("subscribe[%d].topic = %q, want %q", i, p.subscribed[i].topic, want)
		}
	}
}

func TestService_RegisterToken_DefaultPlatformIsWeb(t *testing.T) {
	p := &mockProvider{}
	repo := &mockTokenRepo{}
	svc := NewService(repo, &mockSharerLister{}, p, NewFanout(p, nil, nil), nil)

	if err := svc.RegisterToken(context.Background(), "u", "tok", ""); err != nil {
		t.Fatalf("RegisterToken returned error: %v", err)
	}
	if repo.upserted[0].Platform != model.DefaultPlatform {
		t.Errorf("Platform = %q, want %q", repo.upserted[0].Platform, model.DefaultPlatform)
	}
}

// 自分のトピックへの購読に1件でも失敗した場合は保存せず、古い登録を削除することを検証
func TestService_RegisterToken_SubscribeFailureRejectsToken(t *testing.T) {
	tests := []struct {
		name string
		fn   func(ctx context.Context, tokens []string, topic string) (*TopicResult, error)
	}{
		{
			name: "トークン単位の失敗",
			fn: func(ctx context.Context, tokens []string, topic string) (*TopicResult, error) {
				return &TopicResult{FailureCount: 1, Errors: []TopicError{{Index: 0, Reason: "registration-token-not-registered"}}}, nil
			},
		},
		{
			name: "呼び出し自体の失敗",
			fn: func(ctx context.Context, tokens []string, topic string) (*TopicResult, error) {
				return nil, errors.New("network down")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &mockProvider{subscribeFn: tt.fn}
			repo := &mockTokenRepo{}
			sharers := &mockSharerLister{ids: []string{"alice"}}
			svc := NewService(repo, sharers, p, NewFanout(p, nil, nil), nil)

			err := svc.RegisterToken(context.Background(), "bob", "stale", "web")
			if !model.IsCode(err, model.ErrCodeInvalidToken) {
				t.Fatalf("err = %v, want INVALID_TOKEN", err)
			}
			if len(repo.upserted) != 0 {
				t.Error("購読失敗時にトークンを保存すべきではない")
			}
			if len(repo.deleted) != 1 || repo.deleted[0] != "stale" {
				t.Errorf("deleted = %v, want [stale]", repo.deleted)
			}
			if len(p.subscribed) != 1 {
				t.Errorf("共有者のトピックへの購読は行わないべき: calls=%d", len(p.subscribed))
			}
		})
	}
}

func TestService_RegisterToken_UpsertError(t *testing.T) {
	p := &mockProvider{}
	repo := &mockTokenRepo{
		upsertFn: func(ctx context.Context, token *model.DeviceToken) error {
			return errors.New("db down")
		},
	}
	svc := NewService(repo, &mockSharerLister{}, p, NewFanout(p, nil, nil), nil)

	err := svc.RegisterToken(context.Background(), "u", "tok", "web")
	if err == nil {
		t.Fatal("expected error")
	}
	if model.IsCode(err, model.ErrCodeInvalidToken) {
		t.Error("保存失敗はINVALID_TOKENとして扱うべきではない")
	}
}

// 保存後の共有者一覧の取得失敗は登録を失敗させないことを検証
func TestService_RegisterToken_SharerListErrorIsBestEffort(t *testing.T) {
	p := &mockProvider{}
	repo := &mockTokenRepo{}
	sharers := &mockSharerLister{err: errors.New("db down")}
	svc := NewService(repo, sharers, p, NewFanout(p, nil, nil), nil)

	if err := svc.RegisterToken(context.Background(), "bob", "tok-bob", "web"); err != nil {
		t.Fatalf("RegisterToken returned error: %v", err)
	}
	if len(repo.upserted) != 1 {
		t.Errorf("upserted = %d, want 1", len(repo.upserted))
	}
	if len(p.subscribed) != 1 || p.subscribed[0].topic != "topic-bob" {
		t.Errorf("subscribed = %+v, want only topic-bob", p.subscribed)
	}
}

func TestService_UnregisterToken_DoesNotUnsubscribe(t *testing.T) {
	p := &mockProvider{}
	repo := &mockTokenRepo{}
	svc := NewService(repo, &mockSharerLister{}, p, NewFanout(p, nil, nil), nil)

	if err := svc.UnregisterToken(context.Background(), "tok"); err != nil {
		t.Fatalf("UnregisterToken returned error: %v", err)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != "tok" {
		t.Errorf("deleted = %v, want [tok]", repo.deleted)
	}
	if len(p.unsubscribed) != 0 {
		t.Errorf("unsubscribe calls = %d, want 0", len(p.unsubscribed))
	}
}

func TestService_IsTokenRegistered(t *testing.T) {
	repo := &mockTokenRepo{
		existsFn: func(ctx context.Context, token string) (bool, error) {
			return token == "known", nil
		},
	}
	svc := NewService(repo, &mockSharerLister{}, &mockProvider{}, nil, nil)

	ok, err := svc.IsTokenRegistered(context.Background(), "known")
	if err != nil || !ok {
		t.Errorf("IsTokenRegistered(known) = %v, %v; want true, nil", ok, err)
	}
	ok, err = svc.IsTokenRegistered(context.Background(), "unknown")
	if err != nil || ok {
		t.Errorf("IsTokenRegistered(unknown) = %v, %v; want false, nil", ok, err)
	}
}

func TestLogProvider_AlwaysSucceeds(t *testing.T) {
	p := &LogProvider{}
	res, err := p.SubscribeToTopic(context.Background(), []string{"a", "b"}, "topic-x")
	if err != nil || res.SuccessCount != 2 || res.FailureCount != 0 {
		t.Errorf("SubscribeToTopic = %+v, %v", res, err)
	}
	if err := p.Send(context.Background(), &Message{Topic: "topic-x"}); err != nil {
		t.Errorf("Send returned error: %v", err)
	}
}
