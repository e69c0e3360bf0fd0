package mainconfig

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/landing-leads/internal/config"
	"github.com/wolfman30/landing-leads/internal/notify"
	"github.com/wolfman30/landing-leads/pkg/logging"
)

func TestLoadAWSConfigEndpointOverride(t *testing.T) {
	cfg := &appconfig.Config{
		AWSRegion:           "eu-central-1",
		AWSAccessKeyID:      "test",
		AWSSecretAccessKey:  "test",
		AWSEndpointOverride: "http://localhost:4566",
	}
	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "eu-central-1", awsCfg.Region)

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test", creds.AccessKeyID)

	require.NotNil(t, awsCfg.EndpointResolverWithOptions)
	ep, err := awsCfg.EndpointResolverWithOptions.ResolveEndpoint(sqs.ServiceID, "eu-central-1")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4566", ep.URL)

	ep, err = awsCfg.EndpointResolverWithOptions.ResolveEndpoint(sesv2.ServiceID, "eu-central-1")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4566", ep.URL)

	_, err = awsCfg.EndpointResolverWithOptions.ResolveEndpoint("S3", "eu-central-1")
	assert.Error(t, err)
}

func TestNewDeadLetterQueueDisabledWithoutURL(t *testing.T) {
	q, err := NewDeadLetterQueue(context.Background(), &appconfig.Config{AWSRegion: "us-east-1"})
	require.NoError(t, err)
	assert.Nil(t, q)
}

func TestNewAlertEmailSender(t *testing.T) {
	ctx := context.Background()
	logger := logging.Discard()

	sender, err := NewAlertEmailSender(ctx, &appconfig.Config{}, logger)
	require.NoError(t, err)
	assert.Nil(t, sender)

	sender, err = NewAlertEmailSender(ctx, &appconfig.Config{AlertEmailTo: "ops@example.com", EmailProvider: "sendgrid"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &notify.StubEmailSender{}, sender)

	sender, err = NewAlertEmailSender(ctx, &appconfig.Config{
		AlertEmailTo:   "ops@example.com",
		EmailProvider:  "sendgrid",
		SendGridAPIKey: "key",
	}, logger)
	require.NoError(t, err)
	assert.IsType(t, &notify.SendGridSender{}, sender)

	sender, err = NewAlertEmailSender(ctx, &appconfig.Config{
		AlertEmailTo:       "ops@example.com",
		EmailProvider:      "ses",
		AWSRegion:          "us-east-1",
		AWSAccessKeyID:     "test",
		AWSSecretAccessKey: "test",
	}, logger)
	require.NoError(t, err)
	assert.IsType(t, &notify.SESSender{}, sender)

	_, err = NewAlertEmailSender(ctx, &appconfig.Config{AlertEmailTo: "ops@example.com", EmailProvider: "pigeon"}, logger)
	assert.Error(t, err)
}
