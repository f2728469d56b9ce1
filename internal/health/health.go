// Package health reports whether the service has what it needs to answer
// questions. Checks are local: no network calls are made.
package health

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

// Status is the overall health.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Check values.
const (
	CheckOK      = "OK"
	CheckMissing = "MISSING"
)

// Checks holds the result of each presence check.
type Checks struct {
	PDFFile        string `json:"pdfFile"`
	HuggingFaceKey string `json:"huggingfaceKey"`
	OpenRouterKey  string `json:"openrouterKey"`
}

func (c Checks) allOK() bool {
	return c.PDFFile == CheckOK && c.HuggingFaceKey == CheckOK && c.OpenRouterKey == CheckOK
}

// Endpoints advertises the public routes.
type Endpoints struct {
	Ask    string `json:"ask"`
	Health string `json:"health"`
}

// Report is the health response body.
type Report struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Checks    Checks    `json:"checks"`
	Endpoints Endpoints `json:"endpoints"`
}

// Healthy reports whether every check passed.
func (r Report) Healthy() bool {
	return r.Status == StatusHealthy
}

// Options configures a Reporter.
type Options struct {
	DocumentPath string
	// HuggingFaceKey and OpenRouterKey report whether each provider key is
	// set. They are called on every report.
	HuggingFaceKey func() bool
	OpenRouterKey  func() bool
	Version        string

	// Now defaults to time.Now.
	Now func() time.Time
	// Stat defaults to os.Stat.
	Stat func(name string) (fs.FileInfo, error)
}

// Reporter builds health reports.
type Reporter struct {
	opts Options
}

// NewReporter creates a reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Stat == nil {
		opts.Stat = os.Stat
	}
	if opts.HuggingFaceKey == nil {
		opts.HuggingFaceKey = func() bool { return false }
	}
	if opts.OpenRouterKey == nil {
		opts.OpenRouterKey = func() bool { return false }
	}
	return &Reporter{opts: opts}
}

// Report runs the checks. An error means the checks themselves could not
// run, as opposed to a check failing.
func (r *Reporter) Report() (Report, error) {
	pdf, err := r.pdfCheck()
	if err != nil {
		return Report{}, err
	}

	rep := Report{
		Status:    StatusHealthy,
		Timestamp: r.opts.Now().UTC(),
		Version:   r.opts.Version,
		Checks: Checks{
			PDFFile:        pdf,
			HuggingFaceKey: okOrMissing(r.opts.HuggingFaceKey()),
			OpenRouterKey:  okOrMissing(r.opts.OpenRouterKey()),
		},
		Endpoints: Endpoints{Ask: "/api/ask", Health: "/api/health"},
	}
	if !rep.Checks.allOK() {
		rep.Status = StatusDegraded
	}
	return rep, nil
}

func (r *Reporter) pdfCheck() (string, error) {
	info, err := r.opts.Stat(r.opts.DocumentPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return CheckMissing, nil
	case err != nil:
		return "", fmt.Errorf("checking document %s: %w", r.opts.DocumentPath, err)
	case !info.Mode().IsRegular():
		return CheckMissing, nil
	default:
		return CheckOK, nil
	}
}

func okOrMissing(ok bool) string {
	if ok {
		return CheckOK
	}
	return CheckMissing
}
