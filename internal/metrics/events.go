package metrics

import "time"

// SubmissionSucceeded records a submission accepted by the deliverer.
func SubmissionSucceeded() {
	SubmissionsTotal.WithLabelValues("success").Inc()
}

// SubmissionFailed records a submission the deliverer did not accept.
func SubmissionFailed() {
	SubmissionsTotal.WithLabelValues("failed").Inc()
}

// SubmissionRejected records a submission refused before delivery
// (no valid recipients, or one already in flight).
func SubmissionRejected() {
	SubmissionsTotal.WithLabelValues("rejected").Inc()
}

// UploadCompleted records a stored upload of the given kind and size.
func UploadCompleted(kind string, size int64) {
	UploadsTotal.WithLabelValues(kind, "completed").Inc()
	UploadBytes.WithLabelValues(kind).Add(float64(size))
}

// UploadFailed records a failed upload of the given kind.
func UploadFailed(kind string) {
	UploadsTotal.WithLabelValues(kind, "failed").Inc()
}

// ObserveWebhook records the latency of one webhook call.
func ObserveWebhook(d time.Duration) {
	WebhookDuration.Observe(d.Seconds())
}
