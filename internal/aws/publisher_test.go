package aws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSQS struct {
	last *sqs.SendMessageInput
	err  error
}

func (m *mockSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.last = params
	if m.err != nil {
		return nil, m.err
	}
	return &sqs.SendMessageOutput{}, nil
}

func TestPublisher_Publish(t *testing.T) {
	m := &mockSQS{}
	p := NewPublisher(m, "https://sqs.local/queue")

	err := p.Publish(context.Background(), Message{Type: MessageEventClosed, EventID: "ev-1"})
	require.NoError(t, err)
	require.NotNil(t, m.last)

	assert.Equal(t, "https://sqs.local/queue", *m.last.QueueUrl)

	var got Message
	require.NoError(t, json.Unmarshal([]byte(*m.last.MessageBody), &got))
	assert.Equal(t, MessageEventClosed, got.Type)
	assert.Equal(t, "ev-1", got.EventID)

	assert.Equal(t, MessageEventClosed, *m.last.MessageAttributes["type"].StringValue)
	_, hasCorr := m.last.MessageAttributes["correlation_id"]
	assert.False(t, hasCorr, "empty attributes are not sent")
}

func TestPublisher_SendError(t *testing.T) {
	p := NewPublisher(&mockSQS{err: errors.New("throttled")}, "q")
	err := p.Publish(context.Background(), Message{Type: MessagePhotoConfirmed, EventID: "ev-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send message")
}
