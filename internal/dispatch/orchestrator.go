package dispatch

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tahirm09/BulkNotify/internal/gateway"
	"github.com/tahirm09/BulkNotify/internal/recipient"
	"github.com/tahirm09/BulkNotify/internal/template"
	"github.com/tahirm09/BulkNotify/pkg/logx"
	"github.com/tahirm09/BulkNotify/pkg/metrics"
)

var (
	ErrNoRecipients  = errors.New("no resolvable recipients")
	ErrEmptyTemplate = errors.New("template content is empty")

	errCanceled = errors.New("dispatch canceled")
)

// Sender is the delivery gateway seam.
type Sender interface {
	Send(ctx context.Context, p gateway.Payload) error
}

type Report struct {
	SourceID   string            `json:"source_id"`
	TemplateID string            `json:"template_id"`
	Channel    template.Channel  `json:"channel"`
	Attempted  int               `json:"attempted"`
	Sent       int               `json:"sent"`
	Failed     int               `json:"failed"`
	Statuses   []RecipientStatus `json:"statuses"`
	// Skipped were filtered out before the job was created (no contact
	// value for the channel); they never held a status.
	Skipped []recipient.Recipient `json:"skipped,omitempty"`
}

// FullySuccessful reports whether every recipient ended sent.
func (r *Report) FullySuccessful() bool { return r.Failed == 0 && r.Sent == r.Attempted }

type Options struct {
	CustomFields template.Binding
	// Batched sends the whole recipient set in one gateway call. The
	// gateway does not report per-recipient results in that mode, so the
	// batch transitions uniformly rather than fabricating per-recipient
	// outcomes.
	Batched  bool
	OnStatus StatusFunc
}

type Orchestrator struct {
	Gateway  Sender
	Resolver recipient.Resolver
	// Source identifies this service to the gateway.
	Source string
	// MaxRetries is per-recipient gateway retry budget; zero means one
	// attempt, matching the historical behavior.
	MaxRetries int
}

// Job is one dispatch invocation over a resolved recipient set. Recipients
// are processed strictly sequentially; one recipient's failure never aborts
// the rest.
type Job struct {
	sourceID string
	orch     *Orchestrator
	tpl      template.MessageTemplate
	resolved []recipient.Resolved
	skipped  []recipient.Recipient
	opts     Options
	statuses []RecipientStatus
	canceled atomic.Bool
	done     atomic.Bool
}

// Prepare resolves recipients and builds the job with every status pending.
// It fails fast, before any state exists, on empty template content or when
// filtering leaves no recipients.
func (o *Orchestrator) Prepare(tpl template.MessageTemplate, recipients []recipient.Recipient, opts Options) (*Job, error) {
	if strings.TrimSpace(tpl.Content) == "" {
		return nil, ErrEmptyTemplate
	}

	res := o.Resolver.Resolve(recipients, tpl.Channel, opts.CustomFields)
	if len(res.Bound) == 0 {
		return nil, ErrNoRecipients
	}

	j := &Job{
		sourceID: uuid.NewString(),
		orch:     o,
		tpl:      tpl,
		resolved: res.Bound,
		skipped:  res.Skipped,
		opts:     opts,
		statuses: make([]RecipientStatus, len(res.Bound)),
	}
	for i, rb := range res.Bound {
		j.statuses[i] = RecipientStatus{
			RecipientID: rb.Recipient.ID,
			Address:     rb.Recipient.ContactValue(tpl.Channel),
			State:       StatePending,
		}
	}
	return j, nil
}

// Dispatch is Prepare followed by Run. Callers that need mid-batch Cancel use
// the two-step form.
func (o *Orchestrator) Dispatch(ctx context.Context, tpl template.MessageTemplate, recipients []recipient.Recipient, opts Options) (*Report, error) {
	j, err := o.Prepare(tpl, recipients, opts)
	if err != nil {
		return nil, err
	}
	return j.Run(ctx), nil
}

// SourceID is the fresh idempotency token handed to the gateway for this job.
func (j *Job) SourceID() string { return j.sourceID }

// Statuses returns a snapshot of the per-recipient status records in resolved
// order.
func (j *Job) Statuses() []RecipientStatus {
	return append([]RecipientStatus(nil), j.statuses...)
}

// Cancel stops scheduling further recipients. The recipient currently sending
// still completes; remaining pending ones end failed with a canceled error,
// so every resolved recipient still reaches a terminal state.
func (j *Job) Cancel() { j.canceled.Store(true) }

// Run drives every recipient to a terminal state and aggregates the report.
// A finished job is terminal; calling Run again returns the same outcome
// without re-sending.
func (j *Job) Run(ctx context.Context) *Report {
	if j.done.CompareAndSwap(false, true) {
		start := time.Now()
		metrics.DispatchJobsTotal.Inc()
		if j.opts.Batched {
			j.runBatched(ctx)
		} else {
			j.runSequential(ctx)
		}
		metrics.DispatchJobDuration.Observe(time.Since(start).Seconds())
	}
	return j.report()
}

func (j *Job) runSequential(ctx context.Context) {
	for i := range j.statuses {
		if j.canceled.Load() || ctx.Err() != nil {
			j.fail(i, errCanceled)
			continue
		}

		j.transition(i, StateSending, "")
		err := j.sendOne(ctx, j.resolved[i])
		if err != nil {
			j.fail(i, err)
			continue
		}
		j.transition(i, StateSent, "")
		metrics.DispatchRecipientsSent.Inc()
		logx.L().Infow("recipient_sent",
			"source_id", j.sourceID,
			"template_id", j.tpl.ID,
			"recipient_id", j.statuses[i].RecipientID,
		)
	}
}

// runBatched issues one gateway call carrying every recipient's placeholder
// map. The gateway acks the batch as a whole, so all statuses transition
// together.
func (j *Job) runBatched(ctx context.Context) {
	if j.canceled.Load() || ctx.Err() != nil {
		for i := range j.statuses {
			j.fail(i, errCanceled)
		}
		return
	}

	for i := range j.statuses {
		j.transition(i, StateSending, "")
	}

	users := make([]gateway.User, len(j.resolved))
	for i, rb := range j.resolved {
		users[i] = gateway.User{
			UserID:       rb.Recipient.ID,
			ChannelID:    rb.Recipient.ContactValue(j.tpl.Channel),
			Placeholders: rb.Binding,
		}
	}
	err := j.send(ctx, gateway.Payload{
		Subject:          j.tpl.Subject,
		Body:             j.tpl.Content,
		NotificationType: string(j.tpl.Channel),
		Source:           j.orch.Source,
		SourceID:         j.sourceID,
		Users:            users,
	})
	for i := range j.statuses {
		if err != nil {
			j.fail(i, err)
		} else {
			j.transition(i, StateSent, "")
			metrics.DispatchRecipientsSent.Inc()
		}
	}
	if err == nil {
		logx.L().Infow("batch_sent", "source_id", j.sourceID, "template_id", j.tpl.ID, "recipients", len(users))
	}
}

// sendOne builds the per-recipient payload. Email bodies are pre-rendered;
// WhatsApp-style channels receive the raw template plus the binding map and
// the gateway renders.
func (j *Job) sendOne(ctx context.Context, rb recipient.Resolved) error {
	p := gateway.Payload{
		NotificationType: string(j.tpl.Channel),
		Source:           j.orch.Source,
		SourceID:         j.sourceID,
		Users: []gateway.User{{
			UserID:       rb.Recipient.ID,
			ChannelID:    rb.Recipient.ContactValue(j.tpl.Channel),
			Placeholders: rb.Binding,
		}},
	}
	if j.tpl.Channel == template.ChannelEmail {
		p.Subject = template.Substitute(j.tpl.Subject, rb.Binding)
		p.Body = template.Substitute(j.tpl.Content, rb.Binding)
		p.Users[0].Placeholders = nil
	} else {
		p.Body = j.tpl.Content
	}
	return j.send(ctx, p)
}

func (j *Job) send(ctx context.Context, p gateway.Payload) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = j.orch.Gateway.Send(ctx, p)
		if err == nil || attempt >= j.orch.MaxRetries {
			return err
		}
		metrics.DispatchRetries.Inc()
		logx.L().Infow("retry_scheduled",
			"source_id", j.sourceID,
			"attempt", attempt+1,
			"delay", backoffDelay(attempt+1).String(),
			"error", err.Error(),
		)
		if !sleep(ctx, backoffDelay(attempt+1)) {
			return err
		}
	}
}

func (j *Job) fail(i int, err error) {
	j.transition(i, StateFailed, err.Error())
	metrics.DispatchRecipientsFailed.Inc()
	logx.L().Infow("recipient_failed",
		"source_id", j.sourceID,
		"template_id", j.tpl.ID,
		"recipient_id", j.statuses[i].RecipientID,
		"error", err.Error(),
	)
}

func (j *Job) transition(i int, s State, errMsg string) {
	j.statuses[i].State = s
	j.statuses[i].Error = errMsg
	if j.opts.OnStatus != nil {
		j.opts.OnStatus(j.statuses[i])
	}
}

func (j *Job) report() *Report {
	r := &Report{
		SourceID:   j.sourceID,
		TemplateID: j.tpl.ID,
		Channel:    j.tpl.Channel,
		Attempted:  len(j.statuses),
		Statuses:   append([]RecipientStatus(nil), j.statuses...),
		Skipped:    j.skipped,
	}
	for _, s := range j.statuses {
		switch s.State {
		case StateSent:
			r.Sent++
		case StateFailed:
			r.Failed++
		}
	}
	return r
}

func backoffDelay(retries int) time.Duration {
	if retries <= 0 {
		return 0
	}
	sec := math.Pow(2, float64(retries-1))
	return time.Duration(sec) * time.Second
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
