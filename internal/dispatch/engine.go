// Package dispatch fans one inbound notification out to its devices, retries
// failed provider calls with bounded backoff, and aggregates the per-device
// outcomes into the gateway response.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/corvid-im/pushgw/internal/config"
	"github.com/corvid-im/pushgw/internal/domain"
	"github.com/corvid-im/pushgw/internal/jitter"
	"github.com/corvid-im/pushgw/internal/observability"
	"github.com/corvid-im/pushgw/internal/provider"
	"github.com/corvid-im/pushgw/internal/push"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	initialRetryBackoff = 250 * time.Millisecond
	// Backoff doubles per attempt; the cap keeps generous retry budgets from
	// sleeping past any reasonable request lifetime.
	maxRetryBackoff = 30 * time.Second
)

// MetricsRecorder consumes dispatch outcome events.
type MetricsRecorder interface {
	IncSuccessfulPush(deviceType string)
	IncFailedPush(deviceType string)
	AddDevices(count int)
	IncNotification(notificationType string)
	ObserveJitter(delay time.Duration)
}

// Response is the aggregated dispatch result: only rejected pushkeys are
// surfaced, in input device order.
type Response struct {
	Rejected []string `json:"rejected"`
}

type rejectReason int

const (
	reasonInvalidAppID rejectReason = iota + 1
	reasonRetriesExhausted
	reasonFault
)

type outcome struct {
	accepted bool
	reason   rejectReason
}

// Engine drives payload building, provider routing and the per-device retry
// loop. One engine instance serves all concurrent requests; the jitter
// estimator is its only shared mutable state.
type Engine struct {
	cfg       *config.Config
	builder   *push.Builder
	fcm       provider.FCMSender
	apns      provider.APNSSender
	estimator *jitter.Estimator
	metrics   MetricsRecorder
	logger    *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewEngine(
	cfg *config.Config,
	builder *push.Builder,
	fcm provider.FCMSender,
	apns provider.APNSSender,
	estimator *jitter.Estimator,
	metrics MetricsRecorder,
	logger *zap.Logger,
) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if builder == nil {
		return nil, fmt.Errorf("payload builder is required")
	}
	if fcm == nil {
		return nil, fmt.Errorf("fcm sender is required")
	}
	if estimator == nil {
		return nil, fmt.Errorf("jitter estimator is required")
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		cfg:       cfg,
		builder:   builder,
		fcm:       fcm,
		apns:      apns,
		estimator: estimator,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
		sleep:     sleepContext,
	}, nil
}

// Dispatch processes one notification. Every device reaches exactly one
// terminal state; partial failure still returns a response. Only a canceled
// request context aborts the operation.
func (e *Engine) Dispatch(ctx context.Context, n *domain.Notification) (*Response, error) {
	logger := observability.WithContextLogger(e.logger, ctx)
	start := e.now()

	delay := e.estimator.EstimateDelay()
	e.metrics.ObserveJitter(delay)
	if err := e.sleep(ctx, delay); err != nil {
		return nil, fmt.Errorf("dispatch aborted during jitter delay: %w", err)
	}

	logger.Debug("dispatching notification",
		zap.Int("devices", len(n.Devices)),
		zap.Duration("jitter", delay),
	)

	outcomes := make([]outcome, len(n.Devices))
	g, groupCtx := errgroup.WithContext(ctx)
	for i := range n.Devices {
		i := i
		device := &n.Devices[i]
		g.Go(func() error {
			outcomes[i] = e.processDevice(groupCtx, logger, n, device)
			return nil
		})
	}
	_ = g.Wait()

	rejected := make([]string, 0, len(n.Devices))
	anySuccess := false
	for i := range outcomes {
		if outcomes[i].accepted {
			anySuccess = true
			continue
		}
		rejected = append(rejected, n.Devices[i].Pushkey)
	}

	e.metrics.AddDevices(len(n.Devices))
	if anySuccess {
		// Only delivered notifications feed the jitter frequency, so invalid
		// requests cannot shrink the delay.
		e.estimator.RecordSuccess(start)
		e.metrics.IncNotification(n.DeriveType().String())
	}

	logger.Debug("dispatch finished",
		zap.Int("rejected", len(rejected)),
		zap.Bool("delivered", anySuccess),
	)

	return &Response{Rejected: rejected}, nil
}

// processDevice runs one device through the retry state machine. Faults are
// contained here: a panic rejects this device without touching its siblings.
func (e *Engine) processDevice(ctx context.Context, logger *zap.Logger, n *domain.Notification, device *domain.Device) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("device dispatch panicked",
				zap.String("pushkey", device.Pushkey),
				zap.Any("panic", r),
			)
			out = outcome{reason: reasonFault}
		}
	}()

	route, err := push.Resolve(device, e.cfg.AppID)
	if err != nil {
		logger.Info("rejecting device with foreign app id",
			zap.String("appId", device.AppID),
		)
		return outcome{reason: reasonInvalidAppID}
	}

	deviceType := device.Class().String()

	msg, err := e.builder.Build(n, device, route)
	if err != nil {
		logger.Warn("failed to build payload",
			zap.String("deviceType", deviceType),
			zap.Error(err),
		)
		e.metrics.IncFailedPush(deviceType)
		return outcome{reason: reasonFault}
	}

	backoff := initialRetryBackoff
	for attempt := 0; ; attempt++ {
		err := e.send(ctx, msg)
		if err == nil {
			e.metrics.IncSuccessfulPush(deviceType)
			return outcome{accepted: true}
		}

		if attempt >= e.cfg.MaxRetries {
			logger.Warn("push failed, retries exhausted",
				zap.String("deviceType", deviceType),
				zap.Int("attempts", attempt+1),
				zap.Error(err),
			)
			e.metrics.IncFailedPush(deviceType)
			return outcome{reason: reasonRetriesExhausted}
		}

		logger.Debug("push attempt failed, backing off",
			zap.String("deviceType", deviceType),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		if sleepErr := e.sleep(ctx, backoff); sleepErr != nil {
			// Request canceled; abandon the remaining retries.
			e.metrics.IncFailedPush(deviceType)
			return outcome{reason: reasonRetriesExhausted}
		}

		backoff *= 2
		if backoff > maxRetryBackoff {
			backoff = maxRetryBackoff
		}
	}
}

func (e *Engine) send(ctx context.Context, msg *push.Message) error {
	switch {
	case msg.FCM != nil:
		return e.fcm.Send(ctx, msg.FCM)
	case msg.APNS != nil:
		if e.apns == nil {
			return fmt.Errorf("apns sender is not configured")
		}
		return e.apns.Send(ctx, msg.APNS)
	default:
		return fmt.Errorf("outbound message carries no payload")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type nopMetrics struct{}

func (nopMetrics) IncSuccessfulPush(string)    {}
func (nopMetrics) IncFailedPush(string)        {}
func (nopMetrics) AddDevices(int)              {}
func (nopMetrics) IncNotification(string)      {}
func (nopMetrics) ObserveJitter(time.Duration) {}
