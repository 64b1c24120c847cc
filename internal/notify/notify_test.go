package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog"
)

func TestFormatMessage(t *testing.T) {
	subject, body := FormatMessage(true, "booked court 3 at 9:00 pm")
	if subject != "Tennis Booking ✅ SUCCESS" {
		t.Errorf("subject = %q", subject)
	}
	if !strings.HasPrefix(body, "Tennis Booking ✅ SUCCESS\n") || !strings.Contains(body, "court 3") {
		t.Errorf("body = %q", body)
	}

	subject, body = FormatMessage(false, "no slot found")
	if subject != "Tennis Booking ❌ FAILED" {
		t.Errorf("subject = %q", subject)
	}
	if !strings.Contains(body, "no slot found") {
		t.Errorf("body = %q", body)
	}
}

type fakePublisher struct {
	in  *sns.PublishInput
	err error
}

func (f *fakePublisher) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("mid-1")}, nil
}

func TestSMSNotifierSend(t *testing.T) {
	pub := &fakePublisher{}
	n := &SMSNotifier{client: pub, phone: "+15551234567", senderID: "TennisBot", logger: zerolog.Nop()}

	if err := n.Send(context.Background(), true, "booked court 5 at 9:00 pm"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if pub.in == nil {
		t.Fatal("Publish never called")
	}
	if aws.ToString(pub.in.PhoneNumber) != "+15551234567" {
		t.Errorf("phone = %q", aws.ToString(pub.in.PhoneNumber))
	}
	if got := aws.ToString(pub.in.MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue); got != "TennisBot" {
		t.Errorf("sender id = %q", got)
	}
	if got := aws.ToString(pub.in.MessageAttributes["AWS.SNS.SMS.SMSType"].StringValue); got != "Transactional" {
		t.Errorf("sms type = %q", got)
	}
	if !strings.Contains(aws.ToString(pub.in.Message), "court 5") {
		t.Errorf("message = %q", aws.ToString(pub.in.Message))
	}
}

func TestSMSNotifierPublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("throttled")}
	n := &SMSNotifier{client: pub, phone: "+15551234567", senderID: "TennisBot", logger: zerolog.Nop()}
	if err := n.Send(context.Background(), true, "x"); err == nil {
		t.Error("Send() = nil error, want publish failure surfaced")
	}
}

func TestNewSMSDisabledIsNoop(t *testing.T) {
	tests := []struct {
		name string
		cfg  SMSConfig
	}{
		{"disabled", SMSConfig{Enabled: false, Phone: "+15551234567"}},
		{"no phone", SMSConfig{Enabled: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewSMS(context.Background(), tt.cfg, zerolog.Nop())
			if _, ok := n.(Noop); !ok {
				t.Errorf("NewSMS(%+v) = %T, want Noop", tt.cfg, n)
			}
			if err := n.Send(context.Background(), true, "x"); err != nil {
				t.Errorf("Noop.Send: %v", err)
			}
		})
	}
}
