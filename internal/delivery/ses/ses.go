// Package ses implements a Transport that relays composed messages through
// the AWS SES v2 raw-message API.
package ses

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/shineum/slurpgen/internal/compose"
	"github.com/shineum/slurpgen/internal/failure"
)

// Config holds the configuration for creating a Transport.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// ConfigurationSet is optional and passed through to SES.
	ConfigurationSet string
}

// SendEmailAPI is the interface for the SES v2 SendEmail operation.
// Used for testing with mock implementations.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Transport sends messages via the AWS SES v2 API.
type Transport struct {
	configurationSet string
	client           SendEmailAPI
}

// New creates a Transport from the default AWS credential chain, or from
// static keys when both are set. SDK retries are disabled so one Send is
// one attempt.
func New(ctx context.Context, cfg Config) (*Transport, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithRetryMaxAttempts(1),
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Transport{
		configurationSet: cfg.ConfigurationSet,
		client:           sesv2.NewFromConfig(awsCfg),
	}, nil
}

// NewWithClient creates a Transport with a custom client, used for testing.
func NewWithClient(client SendEmailAPI) *Transport {
	return &Transport{client: client}
}

// Send relays the serialised message unchanged, so SES sees exactly the
// structure an SMTP target would.
func (t *Transport) Send(ctx context.Context, msg *compose.Message) error {
	raw, err := msg.Bytes()
	if err != nil {
		return err
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.EnvelopeFrom()),
		Destination: &types.Destination{
			ToAddresses: []string{msg.EnvelopeTo()},
		},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: raw},
		},
	}
	if t.configurationSet != "" {
		input.ConfigurationSetName = aws.String(t.configurationSet)
	}

	out, err := t.client.SendEmail(ctx, input)
	if err != nil {
		return classify(err)
	}

	var messageID string
	if out != nil {
		messageID = aws.ToString(out.MessageId)
	}
	slog.Debug("message accepted by SES",
		"transport", t.Name(),
		"shape", msg.Shape.String(),
		"message_id", messageID,
	)
	return nil
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "ses"
}

// classify treats a structured API rejection as a protocol error and
// anything that never got an API answer as a connection error.
func classify(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return failure.New(failure.Connection, "ses send email", err)
	}

	code := 0
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		code = respErr.HTTPStatusCode()
	}
	return failure.WithCode(failure.Protocol, "ses send email "+apiErr.ErrorCode(), code, err)
}
