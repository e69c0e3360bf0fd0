package deadletter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/wolfman30/landing-leads/internal/submission"
)

const attrKind = "kind"

var errEmptyQueueURL = errors.New("deadletter: SQS queue URL cannot be empty")

// sqsAPI is the subset of *sqs.Client the queue needs.
type sqsAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

var _ sqsAPI = (*sqs.Client)(nil)

// Message is a dead-lettered lead read back from the queue. DecodeErr is set
// when the body is not a valid entry; Entry is then zero.
type Message struct {
	ID            string
	ReceiptHandle string
	Entry         submission.DeadLetterEntry
	DecodeErr     error
}

// SQSQueue keeps undeliverable leads in an SQS queue.
type SQSQueue struct {
	client   sqsAPI
	queueURL string
}

var _ submission.DeadLetter = (*SQSQueue)(nil)

// NewSQSQueue wraps client for queueURL.
func NewSQSQueue(client sqsAPI, queueURL string) (*SQSQueue, error) {
	if client == nil {
		return nil, errors.New("deadletter: SQS client cannot be nil")
	}
	if queueURL == "" {
		return nil, errEmptyQueueURL
	}
	return &SQSQueue{client: client, queueURL: queueURL}, nil
}

// Publish stores entry as a JSON message.
func (q *SQSQueue) Publish(ctx context.Context, entry submission.DeadLetterEntry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("deadletter: encode entry: %w", err)
	}
	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			attrKind: {DataType: aws.String("String"), StringValue: aws.String(string(entry.Kind))},
		},
	})
	if err != nil {
		return fmt.Errorf("deadletter: failed to send SQS message: %w", err)
	}
	return nil
}

// Receive long-polls for up to maxMessages entries, hiding them from other
// receivers for visibility (the queue default when zero). Every received
// message is returned; malformed ones carry DecodeErr.
func (q *SQSQueue) Receive(ctx context.Context, maxMessages, waitSeconds int, visibility time.Duration) ([]Message, error) {
	in := &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: int32(maxMessages),
		WaitTimeSeconds:     int32(waitSeconds),
	}
	if visibility > 0 {
		in.VisibilityTimeout = int32(visibility.Round(time.Second) / time.Second)
	}
	out, err := q.client.ReceiveMessage(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("deadletter: failed to receive SQS messages: %w", err)
	}
	messages := make([]Message, 0, len(out.Messages))
	for _, msg := range out.Messages {
		m := Message{
			ID:            aws.ToString(msg.MessageId),
			ReceiptHandle: aws.ToString(msg.ReceiptHandle),
		}
		if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &m.Entry); err != nil {
			m.Entry = submission.DeadLetterEntry{}
			m.DecodeErr = fmt.Errorf("deadletter: decode message %s: %w", m.ID, err)
		}
		messages = append(messages, m)
	}
	return messages, nil
}

// Delete acknowledges a message after it was re-delivered.
func (q *SQSQueue) Delete(ctx context.Context, receiptHandle string) error {
	if receiptHandle == "" {
		return nil
	}
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("deadletter: failed to delete SQS message: %w", err)
	}
	return nil
}
