package service

import (
	"assessment_engine/internal/config"
	"assessment_engine/pkg/logger"
	"assessment_engine/pkg/monitoring"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// EventSink delivers one event to an external collaborator.
type EventSink interface {
	Emit(ctx context.Context, name string, payload map[string]interface{}) error
}

// Event is the envelope published to message channels.
type Event struct {
	Event     string                 `json:"event"`
	Payload   map[string]interface{} `json:"payload"`
	EmittedAt time.Time              `json:"emitted_at"`
}

// LogEventSink 仅写日志，本地开发默认使用
type LogEventSink struct{}

func (LogEventSink) Emit(ctx context.Context, name string, payload map[string]interface{}) error {
	logger.Log.Info("Event emitted", zap.String("event", name), zap.Any("payload", payload))
	return nil
}

// RedisEventSink publishes events as JSON on a pub/sub channel.
type RedisEventSink struct {
	Client  *redis.Client
	Channel string
}

func NewRedisEventSink(client *redis.Client, channel string) *RedisEventSink {
	return &RedisEventSink{Client: client, Channel: channel}
}

func (s *RedisEventSink) Emit(ctx context.Context, name string, payload map[string]interface{}) error {
	data, err := json.Marshal(Event{Event: name, Payload: payload, EmittedAt: time.Now()})
	if err != nil {
		return err
	}
	return s.Client.Publish(ctx, s.Channel, data).Err()
}

// EmailSender is the part of the SES client the sink uses.
type EmailSender interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESEventSink emails the taker their result. Events without an email are skipped.
type SESEventSink struct {
	Client    EmailSender
	FromEmail string
	FromName  string
}

func NewSESEventSink(ctx context.Context, cfg *config.SESConfig) (*SESEventSink, error) {
	if cfg.FromEmail == "" {
		return nil, errors.New("ses sink requires notification.ses.from_email")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &SESEventSink{
		Client:    sesv2.NewFromConfig(awsCfg),
		FromEmail: cfg.FromEmail,
		FromName:  cfg.FromName,
	}, nil
}

func (s *SESEventSink) Emit(ctx context.Context, name string, payload map[string]interface{}) error {
	to, _ := payload["email"].(string)
	if to == "" {
		return nil
	}

	from := s.FromEmail
	if s.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.FromName, s.FromEmail)
	}
	subject := "Your assessment result"
	body := fmt.Sprintf("Assessment %v, attempt %v: %v with a score of %v%%.",
		payload["assessment_id"], payload["attempt_id"], payload["status"], payload["score"])

	_, err := s.Client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Text: &types.Content{
						Data:    aws.String(body),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send result email to %s: %w", to, err)
	}
	return nil
}

// MultiSink 依次投递到所有 sink，单个失败不影响其他
type MultiSink []EventSink

func (m MultiSink) Emit(ctx context.Context, name string, payload map[string]interface{}) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, name, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type queuedEvent struct {
	name    string
	payload map[string]interface{}
}

// AsyncNotifier hands events to a sink on background workers. Notify never
// blocks: when the queue is full the event is dropped and counted.
type AsyncNotifier struct {
	sink    EventSink
	queue   chan queuedEvent
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewAsyncNotifier(sink EventSink, bufferSize, workers int) *AsyncNotifier {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if workers <= 0 {
		workers = 1
	}
	n := &AsyncNotifier{
		sink:    sink,
		queue:   make(chan queuedEvent, bufferSize),
		timeout: 10 * time.Second,
	}
	for i := 0; i < workers; i++ {
		n.wg.Add(1)
		go n.run()
	}
	return n
}

func (n *AsyncNotifier) Notify(name string, payload map[string]interface{}) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}
	select {
	case n.queue <- queuedEvent{name: name, payload: payload}:
	default:
		monitoring.EventsDropped.Inc()
		logger.Log.Warn("Event queue full, dropping event", zap.String("event", name))
	}
}

func (n *AsyncNotifier) run() {
	defer n.wg.Done()
	for ev := range n.queue {
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		if err := n.sink.Emit(ctx, ev.name, ev.payload); err != nil {
			logger.Log.Warn("Event delivery failed", zap.String("event", ev.name), zap.Error(err))
		}
		cancel()
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (n *AsyncNotifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()
	n.wg.Wait()
}
