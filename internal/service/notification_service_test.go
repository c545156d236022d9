package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
)

type captureSink struct {
	mu    sync.Mutex
	names []string
	block chan struct{}
	err   error
}

func (s *captureSink) Emit(ctx context.Context, name string, payload map[string]interface{}) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = append(s.names, name)
	return s.err
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.names)
}

func TestAsyncNotifierDeliversAndDrains(t *testing.T) {
	sink := &captureSink{}
	n := NewAsyncNotifier(sink, 16, 2)
	for i := 0; i < 10; i++ {
		n.Notify("assessment_submitted", map[string]interface{}{"i": i})
	}
	n.Close()

	if got := sink.count(); got != 10 {
		t.Fatalf("delivered %d events, want 10", got)
	}
	// 关闭后的通知被忽略
	n.Notify("late", nil)
	n.Close()
}

func TestAsyncNotifierNeverBlocks(t *testing.T) {
	sink := &captureSink{block: make(chan struct{})}
	n := NewAsyncNotifier(sink, 1, 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			n.Notify("e", nil)
		}
		close(done)
	}()
	<-done

	close(sink.block)
	n.Close()
	if got := sink.count(); got < 1 || got > 2 {
		t.Errorf("delivered %d events, want the in-flight one plus at most one queued", got)
	}
}

func TestAsyncNotifierSurvivesSinkErrors(t *testing.T) {
	sink := &captureSink{err: errors.New("down")}
	n := NewAsyncNotifier(sink, 4, 1)
	n.Notify("a", nil)
	n.Notify("b", nil)
	n.Close()
	if sink.count() != 2 {
		t.Errorf("delivered %d, want 2", sink.count())
	}
}

func TestMultiSink(t *testing.T) {
	ok := &captureSink{}
	bad := &captureSink{err: errors.New("boom")}
	err := MultiSink{bad, ok}.Emit(context.Background(), "e", nil)
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("err = %v, want boom", err)
	}
	if ok.count() != 1 {
		t.Error("healthy sink skipped after failure")
	}
}

type fakeEmailSender struct {
	inputs []*sesv2.SendEmailInput
}

func (f *fakeEmailSender) SendEmail(ctx context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.inputs = append(f.inputs, in)
	return &sesv2.SendEmailOutput{}, nil
}

func TestSESEventSink(t *testing.T) {
	sender := &fakeEmailSender{}
	sink := &SESEventSink{Client: sender, FromEmail: "noreply@example.com", FromName: "Assessments"}
	ctx := context.Background()

	if err := sink.Emit(ctx, "assessment_submitted", map[string]interface{}{"score": 80.0}); err != nil {
		t.Fatalf("Emit without email: %v", err)
	}
	if len(sender.inputs) != 0 {
		t.Fatal("sent email without recipient")
	}

	err := sink.Emit(ctx, "assessment_submitted", map[string]interface{}{
		"email": "s@example.com", "assessment_id": uint(1), "attempt_id": "a1", "status": "completed", "score": 80.0,
	})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(sender.inputs) != 1 {
		t.Fatalf("sent %d emails, want 1", len(sender.inputs))
	}
	in := sender.inputs[0]
	if *in.FromEmailAddress != "Assessments <noreply@example.com>" || in.Destination.ToAddresses[0] != "s@example.com" {
		t.Errorf("addresses = %s -> %v", *in.FromEmailAddress, in.Destination.ToAddresses)
	}
	if body := *in.Content.Simple.Body.Text.Data; !strings.Contains(body, "completed") || !strings.Contains(body, "80") {
		t.Errorf("body = %q", body)
	}
}
