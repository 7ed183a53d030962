package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"reserva/internal/domain"
	"reserva/internal/metrics"
	"reserva/internal/models"
	"reserva/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	queueKey      = "notify:queue"
	deadLetterKey = "notify:deadletter"
)

// envelope переносит уведомление через очередь вместе со счетчиком попыток
type envelope struct {
	Notification models.Notification `json:"notification"`
	Attempts     int                 `json:"attempts"`
}

// Dispatcher delivers queued notifications to a NotificationSink with
// at-least-once semantics: redis list for durability, in-memory channel as
// fallback, exponential retry and a dead-letter list for poison messages.
// Delivery is rate limited so a sweep expiring hundreds of bookings does
// not flood the transport.
type Dispatcher struct {
	sink    domain.NotificationSink
	redis   *redis.Client
	retry   worker.RetryPolicy
	limiter *rate.Limiter
	queue   chan envelope
	logger  *zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDispatcher(sink domain.NotificationSink, redisClient *redis.Client, retry worker.RetryPolicy, ratePerSecond float64, burst, queueSize int, logger *zerolog.Logger) *Dispatcher {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if ratePerSecond <= 0 {
		ratePerSecond = 20
	}
	if burst <= 0 {
		burst = 10
	}
	if queueSize <= 0 {
		queueSize = models.NotifyQueueSize
	}

	return &Dispatcher{
		sink:    sink,
		redis:   redisClient,
		retry:   retry,
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		queue:   make(chan envelope, queueSize),
		logger:  logger,
	}
}

// Enqueue schedules a notification for delivery. Redis first for
// durability, in-memory channel when redis is missing or down.
func (d *Dispatcher) Enqueue(ctx context.Context, notification models.Notification) error {
	env := envelope{Notification: notification}

	if d.redis != nil {
		if err := d.pushRedis(ctx, env); err != nil {
			d.logger.Warn().Err(err).Msg("notify: redis push failed, fallback to memory queue")
		} else {
			return nil
		}
	}

	select {
	case d.queue <- env:
		return nil
	default:
		metrics.IncNotification("dead_letter")
		return errors.New("notification queue is full")
	}
}

// Start launches the delivery loop; Stop cancels it and waits.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	d.wg.Add(1)

	go func() {
		defer d.wg.Done()
		d.logger.Info().Msg("notification dispatcher started")
		defer d.logger.Info().Msg("notification dispatcher stopped")

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			if env, ok := d.tryLocalQueue(); ok {
				d.deliver(ctx, env)
				continue
			}
			if env, ok := d.tryRedis(ctx); ok {
				d.deliver(ctx, env)
				continue
			}
			if d.redis == nil {
				// Без redis BRPOP нечем блокироваться, ждем на канале
				select {
				case <-ctx.Done():
					return
				case env := <-d.queue:
					d.deliver(ctx, env)
				}
			}
		}
	}()
}

func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
}

func (d *Dispatcher) tryLocalQueue() (envelope, bool) {
	select {
	case env := <-d.queue:
		return env, true
	default:
		return envelope{}, false
	}
}

func (d *Dispatcher) tryRedis(ctx context.Context) (envelope, bool) {
	if d.redis == nil {
		return envelope{}, false
	}
	res, err := d.redis.BRPop(ctx, time.Second, queueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			d.logger.Error().Err(err).Msg("notify: redis BRPOP error")
		}
		return envelope{}, false
	}
	if len(res) != 2 {
		return envelope{}, false
	}
	var env envelope
	if err := json.Unmarshal([]byte(res[1]), &env); err != nil {
		d.logger.Error().Err(err).Msg("notify: decode queued notification")
		return envelope{}, false
	}
	return env, true
}

func (d *Dispatcher) deliver(ctx context.Context, env envelope) {
	if err := d.limiter.Wait(ctx); err != nil {
		return
	}

	if err := d.sink.Send(ctx, env.Notification); err != nil {
		d.retryOrDrop(ctx, env, err)
		return
	}
	metrics.IncNotification("sent")
}

func (d *Dispatcher) retryOrDrop(ctx context.Context, env envelope, cause error) {
	env.Attempts++
	if env.Attempts >= d.retry.MaxRetries {
		d.logger.Error().Err(cause).
			Str("notification_id", env.Notification.ID).
			Str("user_id", env.Notification.UserID).
			Int("attempts", env.Attempts).
			Msg("notification dropped to dead letter")
		metrics.IncNotification("dead_letter")
		d.pushDeadLetter(ctx, env)
		return
	}

	metrics.IncNotification("retried")
	delay := d.retry.NextDelay(env.Attempts)
	select {
	case <-ctx.Done():
		return
	case <-time.After(delay):
	}

	if d.redis != nil {
		if err := d.pushRedis(ctx, env); err == nil {
			return
		}
	}
	select {
	case d.queue <- env:
	default:
		metrics.IncNotification("dead_letter")
		d.logger.Error().Str("notification_id", env.Notification.ID).Msg("retry queue full, notification dropped")
	}
}

func (d *Dispatcher) pushRedis(ctx context.Context, env envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return d.redis.LPush(ctx, queueKey, data).Err()
}

func (d *Dispatcher) pushDeadLetter(ctx context.Context, env envelope) {
	if d.redis == nil {
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	if err := d.redis.LPush(ctx, deadLetterKey, data).Err(); err != nil {
		d.logger.Error().Err(err).Msg("notify: dead letter push failed")
	}
}
