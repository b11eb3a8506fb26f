// Package submission runs the send flow of an information sheet:
// snapshot the form, generate the email HTML, build the payload and hand it
// to a deliverer, tracking the outcome as a small state machine.
//
//	Idle -> Submitting -> Success -> Idle   (auto-clears after SuccessNoticeDuration)
//	Idle -> Submitting -> Failed  -> Idle   (error notice stays until dismissed)
//
// There are no automatic retries. A failed submission is retried by
// submitting again with the full set of recipients and message.
package submission

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/DukeRupert/soilsheet/internal/domain"
	"github.com/DukeRupert/soilsheet/internal/metrics"
)

// State is the pipeline state.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateSuccess    State = "success"
	StateFailed     State = "failed"
)

// SuccessNoticeDuration is how long the success notice stays visible.
const SuccessNoticeDuration = 4 * time.Second

// NoticeKind distinguishes success and error notices.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is the user-visible outcome of the last submission.
type Notice struct {
	Kind    NoticeKind
	Message string
	// AutoDismiss is non-zero for notices that clear themselves.
	AutoDismiss time.Duration
}

// Deliverer hands a submission to the email sender.
type Deliverer interface {
	Deliver(ctx context.Context, sub *domain.Submission) error
}

// Snapshotter provides a consistent copy of the form and its email HTML.
type Snapshotter interface {
	Snapshot(planImageURL string) (domain.FormState, string)
}

// Request carries the per-submit inputs that are not part of the form.
type Request struct {
	Recipients    []string
	ReplyTo       string
	CustomMessage string
	PlanImageURL  string
}

// Timer is the subset of *time.Timer the pipeline uses.
type Timer interface {
	Stop() bool
}

// Config tunes a Pipeline. The zero value uses real timers and the default
// success notice duration.
type Config struct {
	SuccessNoticeDuration time.Duration
	AfterFunc             func(d time.Duration, f func()) Timer
	// OnTransition, if set, is called with every state change while the
	// pipeline lock is held. It must not call back into the pipeline.
	OnTransition func(from, to State)
}

// Pipeline tracks one form session's submissions.
type Pipeline struct {
	deliverer Deliverer
	logger    *slog.Logger
	cfg       Config

	mu     sync.Mutex
	state  State
	notice *Notice
	timer  Timer
	// gen invalidates pending auto-clear callbacks.
	gen uint64
}

// NewPipeline creates an idle pipeline.
func NewPipeline(deliverer Deliverer, logger *slog.Logger, cfg Config) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SuccessNoticeDuration <= 0 {
		cfg.SuccessNoticeDuration = SuccessNoticeDuration
	}
	if cfg.AfterFunc == nil {
		cfg.AfterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	return &Pipeline{
		deliverer: deliverer,
		logger:    logger,
		cfg:       cfg,
		state:     StateIdle,
	}
}

// State returns the current state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Notice returns a copy of the current notice, or nil.
func (p *Pipeline) Notice() *Notice {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.notice == nil {
		return nil
	}
	n := *p.notice
	return &n
}

// Submit delivers the current form. It returns EINVALID when no recipient
// is valid and ECONFLICT while another submission is in flight; in both
// cases the state is unchanged. A delivery failure is returned after the
// pipeline has moved through Failed back to Idle.
func (p *Pipeline) Submit(ctx context.Context, form Snapshotter, req Request) error {
	const op = "submission.submit"

	recipients := domain.NormalizeRecipients(req.Recipients)
	if len(recipients) == 0 {
		metrics.SubmissionRejected()
		return domain.Invalid(op, "Add at least one valid recipient email address.")
	}

	replyTo := strings.TrimSpace(req.ReplyTo)
	if replyTo != "" {
		addr, ok := domain.ParseAddress(replyTo)
		if !ok {
			metrics.SubmissionRejected()
			return domain.Invalid(op, "The reply-to address is not a valid email address.")
		}
		replyTo = addr
	}

	p.mu.Lock()
	if p.state == StateSubmitting {
		p.mu.Unlock()
		metrics.SubmissionRejected()
		return domain.Conflict(op, "A submission is already in progress.")
	}
	p.clearLocked()
	p.transitionLocked(StateSubmitting)
	p.mu.Unlock()

	state, html := form.Snapshot(req.PlanImageURL)
	sub := domain.NewSubmission(state, domain.EmailDetails{
		To:            recipients,
		ReplyTo:       replyTo,
		CustomMessage: SanitizeMessage(req.CustomMessage),
	}, html)

	err := p.deliverer.Deliver(ctx, sub)

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		metrics.SubmissionFailed()
		p.logger.Error("submission failed",
			"recipients", len(recipients),
			"error", err,
		)
		p.transitionLocked(StateFailed)
		p.notice = &Notice{Kind: NoticeError, Message: failureMessage(err)}
		p.transitionLocked(StateIdle)
		return err
	}

	metrics.SubmissionSucceeded()
	p.logger.Info("submission succeeded",
		"recipients", len(recipients),
		"consignments", len(sub.ConsignmentDetails),
	)
	p.transitionLocked(StateSuccess)
	p.notice = &Notice{
		Kind:        NoticeSuccess,
		Message:     "Email sent successfully!",
		AutoDismiss: p.cfg.SuccessNoticeDuration,
	}
	gen := p.gen
	p.timer = p.cfg.AfterFunc(p.cfg.SuccessNoticeDuration, func() { p.expire(gen) })
	return nil
}

// Dismiss clears the current notice. A visible success notice returns the
// pipeline to Idle early.
func (p *Pipeline) Dismiss() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateSubmitting {
		return
	}
	p.clearLocked()
}

func (p *Pipeline) expire(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return
	}
	p.clearLocked()
}

// clearLocked drops the notice, cancels any pending auto-clear and returns
// to Idle from Success.
func (p *Pipeline) clearLocked() {
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.notice = nil
	if p.state == StateSuccess {
		p.transitionLocked(StateIdle)
	}
}

func (p *Pipeline) transitionLocked(to State) {
	from := p.state
	p.state = to
	p.logger.Debug("submission state changed", "from", from, "to", to)
	if p.cfg.OnTransition != nil {
		p.cfg.OnTransition(from, to)
	}
}

func failureMessage(err error) string {
	if domain.ErrorCode(err) == domain.EUNAVAILABLE {
		return domain.ErrorMessage(err)
	}
	return "Failed to send email. Please try again."
}
