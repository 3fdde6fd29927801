// internal/sender/ses_sink.go
package sender

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/rs/zerolog"

	"github.com/unclebandit/crm-backend/internal/config"
	"github.com/unclebandit/crm-backend/internal/model"
)

// SESAPI is the subset of *sesv2.Client the sink uses.
type SESAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSink delivers email messages through AWS SES. Other channels are
// skipped with a warning.
type SESSink struct {
	Client SESAPI
	Log    zerolog.Logger
}

// NewSESSink loads AWS config for cfg.Region. Static credentials are used
// when both keys are set, the default chain otherwise.
func NewSESSink(ctx context.Context, cfg config.SESConfig, log zerolog.Logger) (*SESSink, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &SESSink{Client: sesv2.NewFromConfig(awsCfg), Log: log}, nil
}

func (s *SESSink) Send(ctx context.Context, msg model.Message) error {
	email, ok := msg.(*model.EmailMessage)
	if !ok {
		s.Log.Warn().
			Str("message_id", msg.ID()).
			Str("channel", msg.Channel()).
			Msg("ses sink only delivers email, skipping")
		return nil
	}

	out, err := s.Client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(email.Sender),
		Destination:      &types.Destination{ToAddresses: email.Recipients},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(email.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(email.Body), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("message_id"), Value: aws.String(email.MessageID)},
		},
	})
	if err != nil {
		return fmt.Errorf("ses send %s: %w", email.MessageID, err)
	}

	s.Log.Debug().
		Str("message_id", email.MessageID).
		Str("ses_message_id", aws.ToString(out.MessageId)).
		Msg("email accepted by ses")
	return nil
}
