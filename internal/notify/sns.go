package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/rs/zerolog"
)

// SMSConfig gates the SNS side-channel. Send to a phone number directly,
// no topic involved.
type SMSConfig struct {
	Enabled  bool
	Phone    string
	Region   string
	SenderID string
}

type publishAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SMSNotifier sends booking results as transactional SMS via AWS SNS.
type SMSNotifier struct {
	client   publishAPI
	phone    string
	senderID string
	logger   zerolog.Logger
}

// NewSMS builds the notifier, or a Noop when the configuration is
// incomplete. A missing side-channel must never fail a booking run.
func NewSMS(ctx context.Context, cfg SMSConfig, logger zerolog.Logger) Notifier {
	if !cfg.Enabled || cfg.Phone == "" {
		logger.Warn().Bool("enabled", cfg.Enabled).Bool("phone_set", cfg.Phone != "").
			Msg("sms notifications disabled")
		return Noop{}
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize sns client, notifications disabled")
		return Noop{}
	}
	return &SMSNotifier{
		client:   sns.NewFromConfig(awsCfg),
		phone:    cfg.Phone,
		senderID: cfg.SenderID,
		logger:   logger,
	}
}

func (n *SMSNotifier) Send(ctx context.Context, success bool, message string) error {
	subject, body := FormatMessage(success, message)
	if len(subject) > 100 {
		subject = subject[:100] // SNS subject limit
	}
	out, err := n.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(n.phone),
		Message:     aws.String(body),
		Subject:     aws.String(subject),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(n.senderID),
			},
			"AWS.SNS.SMS.SMSType": {
				DataType:    aws.String("String"),
				StringValue: aws.String("Transactional"),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	n.logger.Info().Str("message_id", aws.ToString(out.MessageId)).Msg("sms sent")
	return nil
}
