package deadletter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/landing-leads/internal/leads"
	"github.com/wolfman30/landing-leads/internal/submission"
	"github.com/wolfman30/landing-leads/internal/webhook"
	"github.com/wolfman30/landing-leads/pkg/logging"
)

// fakeSQS hands every message out once, like a queue with a long visibility
// timeout. With redeliver set, undeleted messages become visible again on the
// next receive, like a visibility timeout that has lapsed.
type fakeSQS struct {
	mu         sync.Mutex
	redeliver  bool
	visibility []int32
	seq        int
	messages []types.Message
	inFlight map[string]types.Message
	sent     []*sqs.SendMessageInput
	deleted  []string
	sendErr  error
}

func newFakeSQS() *fakeSQS {
	return &fakeSQS{inFlight: map[string]types.Message{}}
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.seq++
	id := fmt.Sprintf("msg-%d", f.seq)
	f.sent = append(f.sent, in)
	f.messages = append(f.messages, types.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String("rh-" + id),
		Body:          in.MessageBody,
	})
	return &sqs.SendMessageOutput{MessageId: aws.String(id)}, nil
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visibility = append(f.visibility, in.VisibilityTimeout)
	if f.redeliver {
		for rh, m := range f.inFlight {
			f.messages = append(f.messages, m)
			delete(f.inFlight, rh)
		}
	}
	n := int(in.MaxNumberOfMessages)
	if n > len(f.messages) {
		n = len(f.messages)
	}
	out := append([]types.Message(nil), f.messages[:n]...)
	f.messages = f.messages[n:]
	for _, m := range out {
		f.inFlight[aws.ToString(m.ReceiptHandle)] = m
	}
	return &sqs.ReceiveMessageOutput{Messages: out}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rh := aws.ToString(in.ReceiptHandle)
	delete(f.inFlight, rh)
	f.deleted = append(f.deleted, rh)
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeSQS) push(body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := fmt.Sprintf("raw-%d", f.seq)
	f.messages = append(f.messages, types.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String("rh-" + id),
		Body:          aws.String(body),
	})
}

func testEntry(name string) submission.DeadLetterEntry {
	rec := leads.BuildPayload(leads.FormValues{Name: name, Email: "lead@example.com"}, leads.PageContext{Page: "/"})
	return submission.DeadLetterEntry{
		SubmissionID: "sub-" + name,
		FailedAt:     time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
		Kind:         submission.ErrorKind(webhook.KindNetwork),
		Error:        "webhook: network",
		Body:         rec.Encode(),
		Attempts:     []submission.Attempt{{Number: 1, Mode: webhook.ModePrimary, Outcome: submission.OutcomeRetryable}},
	}
}

func TestNewSQSQueueValidates(t *testing.T) {
	_, err := NewSQSQueue(nil, "url")
	assert.Error(t, err)
	_, err = NewSQSQueue(newFakeSQS(), "")
	assert.ErrorIs(t, err, errEmptyQueueURL)
}

func TestPublishSendsJSONEntry(t *testing.T) {
	client := newFakeSQS()
	q, err := NewSQSQueue(client, "https://sqs.local/leads-dlq")
	require.NoError(t, err)

	entry := testEntry("Ann")
	require.NoError(t, q.Publish(context.Background(), entry))

	require.Len(t, client.sent, 1)
	in := client.sent[0]
	assert.Equal(t, "https://sqs.local/leads-dlq", aws.ToString(in.QueueUrl))
	assert.Equal(t, "network", aws.ToString(in.MessageAttributes[attrKind].StringValue))

	var got submission.DeadLetterEntry
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(in.MessageBody)), &got))
	assert.Equal(t, entry.SubmissionID, got.SubmissionID)
	assert.Equal(t, entry.Body, got.Body)
	assert.True(t, entry.FailedAt.Equal(got.FailedAt))
}

func TestPublishWrapsSendError(t *testing.T) {
	client := newFakeSQS()
	client.sendErr = errors.New("throttled")
	q, err := NewSQSQueue(client, "https://sqs.local/leads-dlq")
	require.NoError(t, err)

	err = q.Publish(context.Background(), testEntry("Ann"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestReceiveFlagsMalformedBodies(t *testing.T) {
	client := newFakeSQS()
	q, err := NewSQSQueue(client, "https://sqs.local/leads-dlq")
	require.NoError(t, err)
	require.NoError(t, q.Publish(context.Background(), testEntry("Ann")))
	client.push("not json")

	messages, err := q.Receive(context.Background(), 10, 0, 90*time.Second)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.NoError(t, messages[0].DecodeErr)
	assert.Equal(t, "sub-Ann", messages[0].Entry.SubmissionID)
	assert.NotEmpty(t, messages[0].ReceiptHandle)
	assert.Error(t, messages[1].DecodeErr)
	assert.Empty(t, messages[1].Entry.SubmissionID)
	assert.Equal(t, []int32{90}, client.visibility)
}

type stubResubmitter struct {
	mu   sync.Mutex
	seen []leads.Record
	fail map[string]bool
}

func (s *stubResubmitter) Resubmit(_ context.Context, rec leads.Record) submission.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, rec)
	if s.fail[rec[leads.KeyName]] {
		return submission.Result{Kind: submission.ErrorKind(webhook.KindTimeout), Detail: "timeout"}
	}
	return submission.Result{Success: true, Confirmed: true, Mode: webhook.ModePrimary}
}

func TestReplay(t *testing.T) {
	client := newFakeSQS()
	q, err := NewSQSQueue(client, "https://sqs.local/leads-dlq")
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, q.Publish(ctx, testEntry("Ann")))
	require.NoError(t, q.Publish(ctx, testEntry("Bob")))
	empty := testEntry("Eve")
	empty.Body = ""
	require.NoError(t, q.Publish(ctx, empty))

	r := &stubResubmitter{fail: map[string]bool{"Bob": true}}
	stats, err := Replay(ctx, q, r, ReplayOptions{}, logging.Discard())
	require.NoError(t, err)

	assert.Equal(t, ReplayStats{Received: 3, Delivered: 1, Failed: 1, Skipped: 1}, stats)
	require.Len(t, r.seen, 2)
	assert.Equal(t, "Ann", r.seen[0][leads.KeyName])
	assert.Equal(t, "lead@example.com", r.seen[0][leads.KeyEmail])
	assert.Equal(t, []string{"rh-msg-1"}, client.deleted)
	assert.Len(t, client.inFlight, 2, "failed and skipped entries stay on the queue")
}

func TestReplayHonoursLimit(t *testing.T) {
	client := newFakeSQS()
	q, err := NewSQSQueue(client, "https://sqs.local/leads-dlq")
	require.NoError(t, err)
	ctx := context.Background()
	for _, name := range []string{"Ann", "Bob", "Cid"} {
		require.NoError(t, q.Publish(ctx, testEntry(name)))
	}

	stats, err := Replay(ctx, q, &stubResubmitter{}, ReplayOptions{Limit: 2}, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Received)
	assert.Equal(t, 2, stats.Delivered)
	assert.Len(t, client.messages, 1)
}

func TestReplayPassesMalformedBatch(t *testing.T) {
	client := newFakeSQS()
	q, err := NewSQSQueue(client, "https://sqs.local/leads-dlq")
	require.NoError(t, err)
	ctx := context.Background()
	for i := 0; i < replayBatchSize; i++ {
		client.push("not json")
	}
	require.NoError(t, q.Publish(ctx, testEntry("Ann")))

	r := &stubResubmitter{}
	stats, err := Replay(ctx, q, r, ReplayOptions{}, logging.Discard())
	require.NoError(t, err)

	assert.Equal(t, ReplayStats{Received: 11, Delivered: 1, Skipped: 10}, stats)
	require.Len(t, r.seen, 1)
	assert.Equal(t, "Ann", r.seen[0][leads.KeyName])
	assert.Empty(t, client.messages)
	assert.Len(t, client.inFlight, 10, "malformed messages stay on the queue")
}

func TestReplayStopsWhenFailuresComeBack(t *testing.T) {
	client := newFakeSQS()
	client.redeliver = true
	q, err := NewSQSQueue(client, "https://sqs.local/leads-dlq")
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Publish(ctx, testEntry("Bob")))
	require.NoError(t, q.Publish(ctx, testEntry("Ann")))

	r := &stubResubmitter{fail: map[string]bool{"Bob": true}}
	stats, err := Replay(ctx, q, r, ReplayOptions{Visibility: time.Minute}, logging.Discard())
	require.NoError(t, err)

	assert.Equal(t, ReplayStats{Received: 2, Delivered: 1, Failed: 1}, stats)
	assert.Len(t, r.seen, 2, "each lead is resubmitted once per run")
	assert.Equal(t, []string{"rh-msg-2"}, client.deleted)
	for _, v := range client.visibility {
		assert.Equal(t, int32(60), v)
	}
}
