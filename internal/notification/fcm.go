package notification

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"
)

// FCMProvider はFirebase Cloud Messagingを使ったPushProvider実装。
type FCMProvider struct {
	client *messaging.Client
}

// NewFCMProvider はFCMProviderを生成する。
func NewFCMProvider(client *messaging.Client) *FCMProvider {
	return &FCMProvider{client: client}
}

// SubscribeToTopic はトークンをトピックに購読させる。
func (p *FCMProvider) SubscribeToTopic(ctx context.Context, tokens []string, topic string) (*TopicResult, error) {
	resp, err := p.client.SubscribeToTopic(ctx, tokens, topic)
	if err != nil {
		return nil, fmt.Errorf("FCMトピック購読に失敗しました: %w", err)
	}
	return convertTopicResponse(resp), nil
}

// UnsubscribeFromTopic はトークンのトピック購読を解除する。
func (p *FCMProvider) UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) (*TopicResult, error) {
	resp, err := p.client.UnsubscribeFromTopic(ctx, tokens, topic)
	if err != nil {
		return nil, fmt.Errorf("FCMトピック購読解除に失敗しました: %w", err)
	}
	return convertTopicResponse(resp), nil
}

// Send はトピック宛てに通知を送信する。
func (p *FCMProvider) Send(ctx context.Context, msg *Message) error {
	_, err := p.client.Send(ctx, &messaging.Message{
		Topic: msg.Topic,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
	})
	if err != nil {
		return fmt.Errorf("FCM通知の送信に失敗しました: %w", err)
	}
	return nil
}

func convertTopicResponse(resp *messaging.TopicManagementResponse) *TopicResult {
	if resp == nil {
		return &TopicResult{}
	}
	result := &TopicResult{
		SuccessCount: resp.SuccessCount,
		FailureCount: resp.FailureCount,
	}
	for _, e := range resp.Errors {
		if e == nil {
			continue
		}
		result.Errors = append(result.Errors, TopicError{Index: e.Index, Reason: e.Reason})
	}
	return result
}

// compile-time interface check
var _ PushProvider = (*FCMProvider)(nil)
