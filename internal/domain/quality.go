package domain

// QualityVerdict classifies the pre-submission check of a source image.
type QualityVerdict string

const (
	// QualityPass means the image looks suitable.
	QualityPass QualityVerdict = "pass"
	// QualityWarn allows submission but carries advisory warnings.
	QualityWarn QualityVerdict = "warn"
	// QualityStop blocks submission before any credit is debited.
	QualityStop QualityVerdict = "stop"
	// QualitySkipped is recorded when the checker itself failed or was
	// bypassed; the check is best-effort and never blocks on its own error.
	QualitySkipped QualityVerdict = "skipped"
)

// QualityResult is the structured verdict stored alongside a task.
type QualityResult struct {
	Verdict  QualityVerdict
	Warnings []string
}
