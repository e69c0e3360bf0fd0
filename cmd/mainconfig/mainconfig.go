package mainconfig

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/landing-leads/internal/config"
	"github.com/wolfman30/landing-leads/internal/deadletter"
	"github.com/wolfman30/landing-leads/internal/notify"
	"github.com/wolfman30/landing-leads/pkg/logging"
)

// LoadAWSConfig centralizes AWS SDK initialization so the relay and the CLI
// share the same LocalStack/production wiring.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, err
	}

	if endpoint := cfg.AWSEndpointOverride; endpoint != "" {
		awsCfg.EndpointResolverWithOptions = aws.EndpointResolverWithOptionsFunc(
			func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
				if service != sqs.ServiceID && service != sesv2.ServiceID {
					return aws.Endpoint{}, &aws.EndpointNotFoundError{}
				}
				return aws.Endpoint{
					URL:           endpoint,
					PartitionID:   "aws",
					SigningRegion: cfg.AWSRegion,
				}, nil
			},
		)
	}

	return awsCfg, nil
}

// NewDeadLetterQueue returns the SQS dead-letter queue, or nil when
// LEADS_DLQ_URL is not set.
func NewDeadLetterQueue(ctx context.Context, cfg *appconfig.Config) (*deadletter.SQSQueue, error) {
	if strings.TrimSpace(cfg.LeadsDLQURL) == "" {
		return nil, nil
	}
	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return deadletter.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.LeadsDLQURL)
}

// NewAlertEmailSender returns the sender for operator alerts, or nil when
// ALERT_EMAIL_TO is not set.
func NewAlertEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (notify.EmailSender, error) {
	if cfg.AlertEmailTo == "" {
		return nil, nil
	}
	switch cfg.EmailProvider {
	case "ses":
		awsCfg, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger), nil
	case "sendgrid", "":
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			return sender, nil
		}
		logger.Warn("SENDGRID_API_KEY not set; alerts are only logged")
		return notify.NewStubEmailSender(logger), nil
	default:
		return nil, fmt.Errorf("mainconfig: unknown EMAIL_PROVIDER %q", cfg.EmailProvider)
	}
}
