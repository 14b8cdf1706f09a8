package mail

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/sirupsen/logrus"
)

type SESSender struct {
	client     *sesv2.Client
	from       string
	appBaseURL string
	log        logrus.FieldLogger
}

// NewSESSender loads the default AWS credential chain (env, shared config, role).
func NewSESSender(ctx context.Context, from, appBaseURL string, log logrus.FieldLogger) (*SESSender, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &SESSender{
		client:     sesv2.NewFromConfig(cfg),
		from:       from,
		appBaseURL: appBaseURL,
		log:        log,
	}, nil
}

func (s *SESSender) SendInvite(ctx context.Context, in Invite) error {
	subject, body := Compose(in, s.appBaseURL)

	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: []string{in.To},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send invite to %s: %w", in.To, err)
	}

	s.log.WithFields(logrus.Fields{
		"to":         in.To,
		"message_id": aws.ToString(out.MessageId),
	}).Info("invite mail sent")
	return nil
}
