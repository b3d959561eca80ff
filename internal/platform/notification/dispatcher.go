package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrQueueFull is returned when the dispatcher cannot accept more work.
var ErrQueueFull = errors.New("notification queue full")

// ErrStopped is returned after Stop has been called.
var ErrStopped = errors.New("notification dispatcher stopped")

// Recorder observes delivery results.
type Recorder interface {
	EmailResult(template string, err error)
}

type message struct {
	templateID string
	to         string
	subject    string
	body       string
}

// DispatcherConfig tunes the background delivery pool.
type DispatcherConfig struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
}

// Dispatcher renders messages synchronously and delivers them from a
// bounded queue on a fixed set of workers, so request handlers never wait on
// SMTP.
type Dispatcher struct {
	sender    EmailSender
	templates *TemplateEngine
	recorder  Recorder
	logger    zerolog.Logger
	cfg       DispatcherConfig

	queue   chan message
	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
	once    sync.Once
}

func NewDispatcher(sender EmailSender, templates *TemplateEngine, recorder Recorder, logger zerolog.Logger, cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	return &Dispatcher{
		sender:    sender,
		templates: templates,
		recorder:  recorder,
		logger:    logger,
		cfg:       cfg,
		queue:     make(chan message, cfg.QueueSize),
	}
}

// Start launches the workers.
func (d *Dispatcher) Start() {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
}

// Stop closes the queue and waits for queued messages to drain or for ctx to
// expire.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.once.Do(func() {
		d.mu.Lock()
		d.stopped = true
		close(d.queue)
		d.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Notify renders the template and enqueues the result.
func (d *Dispatcher) Notify(_ context.Context, templateID, to string, data map[string]string) error {
	subject, body, err := d.templates.Render(templateID, data)
	if err != nil {
		return fmt.Errorf("render %s: %w", templateID, err)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrStopped
	}
	select {
	case d.queue <- message{templateID: templateID, to: to, subject: subject, body: body}:
		return nil
	default:
		d.logger.Warn().Str("template", templateID).Str("to", to).Msg("notification queue full, dropping email")
		return ErrQueueFull
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for msg := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
		err := d.sender.SendEmail(ctx, msg.to, msg.subject, msg.body)
		cancel()

		if d.recorder != nil {
			d.recorder.EmailResult(msg.templateID, err)
		}
		if err != nil {
			d.logger.Error().Err(err).Str("template", msg.templateID).Str("to", msg.to).Msg("email delivery failed")
			continue
		}
		d.logger.Debug().Str("template", msg.templateID).Str("to", msg.to).Msg("email sent")
	}
}
