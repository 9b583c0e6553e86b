package worker

import (
	"context"
	"errors"
	"time"

	fwg "github.com/contribsys/faktory_worker_go"
	"github.com/mymmrac/telego"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vulpo-bot/vulpo/pkg/fuzzysearch"
	"github.com/vulpo-bot/vulpo/pkg/i18n"
	"github.com/vulpo-bot/vulpo/pkg/logger"
	"github.com/vulpo-bot/vulpo/pkg/metrics"
	"github.com/vulpo-bot/vulpo/pkg/queue"
	"github.com/vulpo-bot/vulpo/pkg/resolver"
	"github.com/vulpo-bot/vulpo/pkg/tracing"
)

// Editor issues the chat-platform requests of the apply stage.
type Editor interface {
	EditCaption(ctx context.Context, chatID string, messageID int, caption string) error
	EditKeyboard(ctx context.Context, chatID string, messageID int, markup *telego.InlineKeyboardMarkup) error
	SendReply(ctx context.Context, chatID string, replyTo int, text string) error
}

// Enqueuer pushes follow-up and rescheduled jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, args ...interface{}) error
	EnqueueAt(ctx context.Context, at time.Time, jobType string, args ...interface{}) error
}

// RateGate is the per-chat cooperative delay registry.
type RateGate interface {
	NeedsMoreTime(ctx context.Context, chatID string, at time.Time)
	CheckMoreTime(ctx context.Context, chatID string) *time.Time
}

// SourceResolver derives source matches for a message.
type SourceResolver interface {
	Resolve(ctx context.Context, req resolver.Request) ([]fuzzysearch.Match, error)
}

// GroupConfig reads persistent per-chat settings.
type GroupConfig interface {
	GroupConfigBool(ctx context.Context, chatID int64, name string) (bool, error)
}

// Options wires a Worker.
type Options struct {
	Editor   Editor
	Queue    Enqueuer
	Gate     RateGate
	Resolver SourceResolver
	Groups   GroupConfig
	Bundles  *i18n.Cache

	// Concurrency is the number of parallel job executors, default 2.
	Concurrency int
}

// Worker consumes the background queue and runs the four pipeline jobs.
type Worker struct {
	editor      Editor
	queue       Enqueuer
	gate        RateGate
	resolver    SourceResolver
	groups      GroupConfig
	bundles     *i18n.Cache
	concurrency int
	tracer      trace.Tracer
}

func New(opts Options) *Worker {
	if opts.Concurrency < 1 {
		opts.Concurrency = 2
	}
	return &Worker{
		editor:      opts.Editor,
		queue:       opts.Queue,
		gate:        opts.Gate,
		resolver:    opts.Resolver,
		groups:      opts.Groups,
		bundles:     opts.Bundles,
		concurrency: opts.Concurrency,
		tracer:      otel.Tracer("github.com/vulpo-bot/vulpo/pkg/worker"),
	}
}

// Run registers the handlers and consumes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	mgr := fwg.NewManager()
	mgr.Concurrency = w.concurrency
	mgr.ProcessStrictPriorityQueues(queue.Queue)

	mgr.Register(queue.JobChannelUpdate, w.instrument(queue.JobChannelUpdate, w.ChannelUpdate))
	mgr.Register(queue.JobChannelEdit, w.instrument(queue.JobChannelEdit, w.ChannelEdit))
	mgr.Register(queue.JobGroupPhoto, w.instrument(queue.JobGroupPhoto, w.GroupPhoto))
	mgr.Register(queue.JobGroupSource, w.instrument(queue.JobGroupSource, w.GroupSource))

	logger.InfoCF("worker", "consuming queue", map[string]any{
		"queue":       queue.Queue,
		"concurrency": w.concurrency,
	})
	return mgr.RunWithContext(ctx)
}

type handlerFunc func(ctx context.Context, args []interface{}) error

// instrument attaches the propagated trace context, a consumer span, timing
// and status accounting to a handler, and converts a resolver no-action
// into a successful completion.
func (w *Worker) instrument(jobType string, fn handlerFunc) fwg.Perform {
	return func(ctx context.Context, args ...interface{}) error {
		helper := fwg.HelperFor(ctx)
		ctx = tracing.ExtractCustom(ctx, helper.Custom)
		ctx, span := w.tracer.Start(ctx, jobType,
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(attribute.String("job.id", helper.Jid())),
		)
		defer span.End()

		start := time.Now()
		err := fn(ctx, args)
		metrics.JobDuration.WithLabelValues(jobType).Observe(time.Since(start).Seconds())

		status := "ok"
		var na *resolver.NoActionError
		switch {
		case err == nil:
		case errors.As(err, &na):
			metrics.ResolverNoAction.WithLabelValues(na.Reason).Inc()
			logger.InfoCF("worker", "job needs no action", map[string]any{
				"type":   jobType,
				"jid":    helper.Jid(),
				"reason": na.Reason,
			})
			status = "no_action"
			err = nil
		default:
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.ErrorCF("worker", "job failed", map[string]any{
				"type":  jobType,
				"jid":   helper.Jid(),
				"error": err.Error(),
			})
		}

		metrics.JobsProcessed.WithLabelValues(jobType, status).Inc()
		return err
	}
}
