package submission

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/DukeRupert/soilsheet/internal/domain"
	"github.com/DukeRupert/soilsheet/internal/email"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeForm is a fixed Snapshotter.
type fakeForm struct {
	state domain.FormState
	calls int
}

func (f *fakeForm) Snapshot(planURL string) (domain.FormState, string) {
	f.calls++
	return f.state.Clone(), "<html>" + planURL + "</html>"
}

func newFakeForm() *fakeForm {
	st := domain.NewFormState()
	st.SiteAddress = "12 Example Rd"
	st.ConsignmentDetails = []domain.ConsignmentDetail{{MaterialDescription: "Clean fill"}}
	return &fakeForm{state: st}
}

// fakeTimer captures the auto-clear callback so tests can fire it.
type fakeTimer struct {
	mu        sync.Mutex
	d         time.Duration
	f         func()
	stopped   bool
	scheduled int
}

func (t *fakeTimer) afterFunc(d time.Duration, f func()) Timer {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.d, t.f, t.stopped = d, f, false
	t.scheduled++
	return t
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	return true
}

func (t *fakeTimer) fire() {
	t.mu.Lock()
	f := t.f
	t.mu.Unlock()
	f()
}

// recorder collects transitions.
type recorder struct {
	got []string
}

func (r *recorder) record(from, to State) {
	r.got = append(r.got, string(from)+"->"+string(to))
}

func webhook(t *testing.T, status int) (*email.WebhookDeliverer, *[]map[string]any) {
	t.Helper()
	var mu sync.Mutex
	var bodies []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	d, err := email.NewWebhookDeliverer(email.WebhookConfig{URL: srv.URL}, testLogger())
	require.NoError(t, err)
	return d, &bodies
}

func TestPipeline_SuccessAutoClears(t *testing.T) {
	d, bodies := webhook(t, http.StatusOK)
	timer := &fakeTimer{}
	rec := &recorder{}
	p := NewPipeline(d, testLogger(), Config{AfterFunc: timer.afterFunc, OnTransition: rec.record})

	err := p.Submit(context.Background(), newFakeForm(), Request{Recipients: []string{"ops@example.com"}})
	require.NoError(t, err)

	assert.Equal(t, StateSuccess, p.State())
	require.NotNil(t, p.Notice())
	assert.Equal(t, NoticeSuccess, p.Notice().Kind)
	assert.Equal(t, SuccessNoticeDuration, p.Notice().AutoDismiss)
	assert.Equal(t, 4*time.Second, timer.d)
	require.Len(t, *bodies, 1)

	timer.fire()

	assert.Equal(t, StateIdle, p.State())
	assert.Nil(t, p.Notice())
	want := []string{"idle->submitting", "submitting->success", "success->idle"}
	if diff := cmp.Diff(want, rec.got); diff != "" {
		t.Errorf("transitions mismatch (-want +got):\n%s", diff)
	}
}

func TestPipeline_DismissSuccessEarly(t *testing.T) {
	d, _ := webhook(t, http.StatusOK)
	timer := &fakeTimer{}
	p := NewPipeline(d, testLogger(), Config{AfterFunc: timer.afterFunc})

	require.NoError(t, p.Submit(context.Background(), newFakeForm(), Request{Recipients: []string{"ops@example.com"}}))
	p.Dismiss()

	assert.Equal(t, StateIdle, p.State())
	assert.Nil(t, p.Notice())
	assert.True(t, timer.stopped)

	// A late timer callback must not disturb a newer state.
	timer.fire()
	assert.Equal(t, StateIdle, p.State())
}

func TestPipeline_StaleTimerIgnored(t *testing.T) {
	d, _ := webhook(t, http.StatusOK)
	timer := &fakeTimer{}
	p := NewPipeline(d, testLogger(), Config{AfterFunc: timer.afterFunc})
	form := newFakeForm()

	require.NoError(t, p.Submit(context.Background(), form, Request{Recipients: []string{"ops@example.com"}}))
	first := timer.f
	require.NoError(t, p.Submit(context.Background(), form, Request{Recipients: []string{"ops@example.com"}}))

	first()
	assert.Equal(t, StateSuccess, p.State(), "the first success timer must not clear the second notice")
	assert.Equal(t, 2, timer.scheduled)
}

func TestPipeline_Failure(t *testing.T) {
	tests := []struct {
		name      string
		deliverer func(t *testing.T) Deliverer
	}{
		{"http 500", func(t *testing.T) Deliverer {
			d, _ := webhook(t, http.StatusInternalServerError)
			return d
		}},
		{"transport error", func(t *testing.T) Deliverer {
			srv := httptest.NewServer(http.NotFoundHandler())
			srv.Close()
			d, err := email.NewWebhookDeliverer(email.WebhookConfig{URL: srv.URL}, testLogger())
			require.NoError(t, err)
			return d
		}},
		{"deliverer error", func(t *testing.T) Deliverer {
			return deliverFunc(func(context.Context, *domain.Submission) error { return errors.New("boom") })
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			timer := &fakeTimer{}
			p := NewPipeline(tt.deliverer(t), testLogger(), Config{AfterFunc: timer.afterFunc, OnTransition: rec.record})
			form := newFakeForm()
			before := form.state.Clone()

			err := p.Submit(context.Background(), form, Request{Recipients: []string{"ops@example.com"}})
			require.Error(t, err)

			assert.Equal(t, StateIdle, p.State())
			require.NotNil(t, p.Notice())
			assert.Equal(t, NoticeError, p.Notice().Kind)
			assert.Zero(t, p.Notice().AutoDismiss)
			assert.Zero(t, timer.scheduled)
			assert.Equal(t, before, form.state, "form data is left intact")

			want := []string{"idle->submitting", "submitting->failed", "failed->idle"}
			if diff := cmp.Diff(want, rec.got); diff != "" {
				t.Errorf("transitions mismatch (-want +got):\n%s", diff)
			}

			p.Dismiss()
			assert.Nil(t, p.Notice())
		})
	}
}

type deliverFunc func(context.Context, *domain.Submission) error

func (f deliverFunc) Deliver(ctx context.Context, sub *domain.Submission) error { return f(ctx, sub) }

func TestPipeline_RejectsConcurrentSubmit(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	d := deliverFunc(func(context.Context, *domain.Submission) error {
		close(entered)
		<-release
		return nil
	})
	p := NewPipeline(d, testLogger(), Config{AfterFunc: (&fakeTimer{}).afterFunc})
	form := newFakeForm()

	done := make(chan error, 1)
	go func() {
		done <- p.Submit(context.Background(), form, Request{Recipients: []string{"ops@example.com"}})
	}()
	<-entered

	assert.Equal(t, StateSubmitting, p.State())
	err := p.Submit(context.Background(), form, Request{Recipients: []string{"ops@example.com"}})
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))

	p.Dismiss()
	assert.Equal(t, StateSubmitting, p.State(), "dismiss does not interrupt a running submission")

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateSuccess, p.State())
}

func TestPipeline_InvalidRequest(t *testing.T) {
	called := false
	d := deliverFunc(func(context.Context, *domain.Submission) error { called = true; return nil })

	tests := []struct {
		name string
		req  Request
	}{
		{"no recipients", Request{}},
		{"only invalid recipients", Request{Recipients: []string{"nope", " "}}},
		{"invalid reply-to", Request{Recipients: []string{"ops@example.com"}, ReplyTo: "not an address"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			p := NewPipeline(d, testLogger(), Config{OnTransition: rec.record})

			err := p.Submit(context.Background(), newFakeForm(), tt.req)
			assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
			assert.Equal(t, StateIdle, p.State())
			assert.Empty(t, rec.got)
		})
	}
	assert.False(t, called)
}

func TestPipeline_BuildsPayload(t *testing.T) {
	var got *domain.Submission
	d := deliverFunc(func(_ context.Context, sub *domain.Submission) error { got = sub; return nil })
	p := NewPipeline(d, testLogger(), Config{AfterFunc: (&fakeTimer{}).afterFunc})
	form := newFakeForm()

	err := p.Submit(context.Background(), form, Request{
		Recipients:    []string{"ops@example.com, OPS@example.com", "lab@example.com"},
		ReplyTo:       " me@example.com ",
		CustomMessage: "Hello <script>alert(1)</script>",
		PlanImageURL:  "https://files.example.com/plans/a.png",
	})
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, []string{"ops@example.com", "lab@example.com"}, got.EmailDetails.To)
	assert.Equal(t, "me@example.com", got.EmailDetails.ReplyTo)
	assert.NotContains(t, got.EmailDetails.CustomMessage, "<script>")
	assert.Contains(t, got.EmailDetails.CustomMessage, "Hello")
	assert.Equal(t, "<html>https://files.example.com/plans/a.png</html>", got.HTMLContent)
	assert.Equal(t, "12 Example Rd", got.SiteInformation.SiteAddress)
	require.Len(t, got.ConsignmentDetails, 1)
	assert.Equal(t, 1, form.calls)
}

func TestNewPipeline_Defaults(t *testing.T) {
	p := NewPipeline(nil, nil, Config{})
	assert.Equal(t, StateIdle, p.State())
	assert.Nil(t, p.Notice())
	assert.Equal(t, SuccessNoticeDuration, p.cfg.SuccessNoticeDuration)
}

func TestSanitizeMessage(t *testing.T) {
	assert.Equal(t, "", SanitizeMessage("   "))
	assert.Equal(t, "Fish &amp; chips", SanitizeMessage("Fish & chips"))
	assert.Equal(t, "<p>Hi <strong>team</strong></p>", SanitizeMessage("<p>Hi <strong>team</strong></p>"))
	assert.NotContains(t, SanitizeMessage(`<a href="javascript:alert(1)">x</a>`), "javascript")

	multi := SanitizeMessage("Line one\nLine two")
	assert.Contains(t, multi, "Line one")
	assert.Contains(t, multi, "<br")
	assert.Contains(t, multi, "Line two")
}
