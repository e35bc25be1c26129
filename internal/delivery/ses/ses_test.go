package ses

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/shineum/slurpgen/internal/compose"
	"github.com/shineum/slurpgen/internal/failure"
)

// mockSESClient implements SendEmailAPI for testing.
type mockSESClient struct {
	sendFn    func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
	callCount int
	lastInput *sesv2.SendEmailInput
}

func (m *mockSESClient) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	m.callCount++
	m.lastInput = params
	if m.sendFn != nil {
		return m.sendFn(ctx, params, optFns...)
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("test-message-id")}, nil
}

func testMessage(t *testing.T, shape compose.Shape) *compose.Message {
	t.Helper()
	c := compose.New(compose.Config{
		From:           "someone@another.com",
		To:             "bob@bobtestingmailslurper.com",
		AttachmentPath: "screenshot.png",
		ReadFile:       func(string) ([]byte, error) { return []byte("png"), nil },
	})
	msg, err := c.Compose(shape, compose.Content{Now: time.Unix(0, 0)})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	return msg
}

func TestName(t *testing.T) {
	t.Parallel()
	if got := NewWithClient(&mockSESClient{}).Name(); got != "ses" {
		t.Errorf("Name(): got %q, want %q", got, "ses")
	}
}

func TestSend_RawMessage(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{}
	tr := NewWithClient(mock)

	msg := testMessage(t, compose.HtmlWithDoubleAttachment)
	if err := tr.Send(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if mock.callCount != 1 {
		t.Errorf("call count: got %d, want 1", mock.callCount)
	}

	input := mock.lastInput
	if got := aws.ToString(input.FromEmailAddress); got != "someone@another.com" {
		t.Errorf("FromEmailAddress: got %q", got)
	}
	if to := input.Destination.ToAddresses; len(to) != 1 || to[0] != "bob@bobtestingmailslurper.com" {
		t.Errorf("ToAddresses: got %v", to)
	}
	if input.Content.Simple != nil {
		t.Error("expected raw content, got simple")
	}
	raw := input.Content.Raw.Data
	if !bytes.Contains(raw, []byte("Subject: HTML+Attachment Mail\r\n")) {
		t.Errorf("raw message missing subject:\n%s", raw)
	}
	if !bytes.Contains(raw, []byte(`filename="screenshot2.png"`)) {
		t.Errorf("raw message missing second attachment:\n%s", raw)
	}
	if input.ConfigurationSetName != nil {
		t.Errorf("ConfigurationSetName: got %q, want unset", *input.ConfigurationSetName)
	}
}

func TestSend_ConfigurationSet(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{}
	tr := NewWithClient(mock)
	tr.configurationSet = "load-test"

	if err := tr.Send(context.Background(), testMessage(t, compose.PlainText)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := aws.ToString(mock.lastInput.ConfigurationSetName); got != "load-test" {
		t.Errorf("ConfigurationSetName: got %q, want %q", got, "load-test")
	}
}

func TestSend_NoRetries(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{
		sendFn: func(context.Context, *sesv2.SendEmailInput, ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			return nil, errors.New("dial tcp: connection refused")
		},
	}

	err := NewWithClient(mock).Send(context.Background(), testMessage(t, compose.PlainText))
	if !failure.Is(err, failure.Connection) {
		t.Errorf("got %v, want connection failure", err)
	}
	if mock.callCount != 1 {
		t.Errorf("call count: got %d, want 1", mock.callCount)
	}
}

func TestSend_APIErrorIsProtocolError(t *testing.T) {
	t.Parallel()

	apiErr := &smithy.GenericAPIError{Code: "MessageRejected", Message: "Email address is not verified."}
	mock := &mockSESClient{
		sendFn: func(context.Context, *sesv2.SendEmailInput, ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			return nil, &smithy.OperationError{
				ServiceID:     "SESv2",
				OperationName: "SendEmail",
				Err: &smithyhttp.ResponseError{
					Response: &smithyhttp.Response{Response: &http.Response{StatusCode: http.StatusBadRequest}},
					Err:      apiErr,
				},
			}
		},
	}

	err := NewWithClient(mock).Send(context.Background(), testMessage(t, compose.PlainText))

	var fe *failure.Error
	if !errors.As(err, &fe) {
		t.Fatalf("got %T %v, want *failure.Error", err, err)
	}
	if fe.Kind != failure.Protocol {
		t.Errorf("Kind: got %v, want protocol", fe.Kind)
	}
	if fe.Code != http.StatusBadRequest {
		t.Errorf("Code: got %d, want %d", fe.Code, http.StatusBadRequest)
	}
	if fe.Op != "ses send email MessageRejected" {
		t.Errorf("Op: got %q", fe.Op)
	}
	if !errors.Is(err, apiErr) {
		t.Error("cause should stay reachable through errors.Is")
	}
}
