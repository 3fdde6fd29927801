package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/crm-backend/internal/model"
)

func TestLogSinkSend(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(5*time.Millisecond, zerolog.New(&buf))
	msg := model.NewEmail("crm@acme.io", []string{"a@x.io", "b@x.io"}, "Welcome", "hi")

	start := time.Now()
	require.NoError(t, sink.Send(context.Background(), msg))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, msg.ID(), entry["message_id"])
	assert.Equal(t, "a@x.io,b@x.io", entry["recipients"])
}

func TestLogSinkCanceled(t *testing.T) {
	sink := NewLogSink(time.Second, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sink.Send(ctx, model.NewInApp("u-1", "t", "b"))
	assert.ErrorIs(t, err, context.Canceled)
}

type fakePublisher struct {
	key string
	pub amqp.Publishing
	err error
}

func (f *fakePublisher) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.key = key
	f.pub = msg
	return f.err
}

func TestAMQPSinkPublishesEnvelope(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewAMQPSink(pub, "notification_sends")
	msg := model.NewSms("ACME", []string{"+254700000000"}, "code 1234")

	require.NoError(t, sink.Send(context.Background(), msg))
	assert.Equal(t, "notification_sends", pub.key)
	assert.Equal(t, msg.ID(), pub.pub.MessageId)
	assert.Equal(t, amqp.Persistent, pub.pub.DeliveryMode)

	req, err := model.UnmarshalSendRequest(pub.pub.Body)
	require.NoError(t, err)
	require.NotNil(t, req.Msg)
	assert.Equal(t, msg.ID(), req.Msg.ID())
}

func TestAMQPSinkPublishError(t *testing.T) {
	sink := NewAMQPSink(&fakePublisher{err: amqp.ErrClosed}, "q")
	err := sink.Send(context.Background(), model.NewInApp("u-1", "t", "b"))
	assert.ErrorIs(t, err, amqp.ErrClosed)
}

type fakeSES struct {
	calls []*sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.calls = append(f.calls, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-1")}, nil
}

func TestSESSinkSendsEmail(t *testing.T) {
	client := &fakeSES{}
	sink := &SESSink{Client: client, Log: zerolog.Nop()}
	msg := model.NewEmail("crm@acme.io", []string{"a@x.io"}, "Welcome", "hello")

	require.NoError(t, sink.Send(context.Background(), msg))
	require.Len(t, client.calls, 1)
	in := client.calls[0]
	assert.Equal(t, "crm@acme.io", aws.ToString(in.FromEmailAddress))
	assert.Equal(t, []string{"a@x.io"}, in.Destination.ToAddresses)
	assert.Equal(t, "Welcome", aws.ToString(in.Content.Simple.Subject.Data))
}

func TestSESSinkSkipsOtherChannels(t *testing.T) {
	client := &fakeSES{}
	var buf bytes.Buffer
	sink := &SESSink{Client: client, Log: zerolog.New(&buf)}

	require.NoError(t, sink.Send(context.Background(), model.NewSms("ACME", []string{"+1"}, "x")))
	assert.Empty(t, client.calls)
	assert.True(t, strings.Contains(buf.String(), "skipping"))
}

func TestSESSinkError(t *testing.T) {
	sink := &SESSink{Client: &fakeSES{err: errors.New("throttled")}, Log: zerolog.Nop()}
	err := sink.Send(context.Background(), model.NewEmail("a@b.c", []string{"x@y.z"}, "s", "b"))
	assert.ErrorContains(t, err, "throttled")
}
