// Package guardian implements the commit gate audit: a tamper-evident
// record of whether each commit passed the configured gate checks. The
// gate writes an atomic marker keyed to the tree it certified; the
// post-commit hook consumes it. A commit with no matching marker is
// recorded as bypassed and logged append-only for reconciliation.
package guardian

import (
	"context"
	"os"
	"time"

	"ckg/internal/errors"
	"ckg/internal/logging"
)

// Guardian ties the marker store, audit store, and gate checks
// together for one repository.
type Guardian struct {
	root     string
	stateDir string
	markers  *Markers
	store    *AuditStore
	checks   []Check
	runner   Runner
	logger   *logging.Logger

	// Now is injectable for deterministic timestamps in tests.
	Now func() time.Time

	// Learner, when set, receives bypass events so they feed the lesson
	// store. Failures to learn never fail the commit record.
	Learner BypassLearner
}

// BypassLearner turns a detected bypass into a stored lesson.
type BypassLearner interface {
	RecordBypass(commitHash, message string) error
}

// New creates a Guardian. A nil runner defaults to subprocess checks.
func New(root, stateDir string, markers *Markers, store *AuditStore,
	checks []Check, runner Runner, logger *logging.Logger) *Guardian {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Guardian{
		root:     root,
		stateDir: stateDir,
		markers:  markers,
		store:    store,
		checks:   checks,
		runner:   runner,
		logger:   logger,
		Now:      time.Now,
	}
}

// RunGate runs every configured check against the working tree and, on
// success, writes the marker certifying the about-to-be-committed
// content. Called from the pre-commit hook. A check failure blocks the
// commit; no marker is written.
func (g *Guardian) RunGate(ctx context.Context) (string, error) {
	if err := g.runChecks(ctx, g.root); err != nil {
		return "", err
	}

	key, err := TreeHash(g.root, g.stateDir)
	if err != nil {
		return "", err
	}
	created, err := g.markers.Write(key)
	if err != nil {
		return "", err
	}
	if !created {
		// A parallel hook stage already certified this tree.
		g.logger.Debug("marker already present", map[string]interface{}{
			"key":  key,
			"code": string(errors.MarkerRace),
		})
	}
	g.logger.Info("gate passed", map[string]interface{}{
		"checks": len(g.checks),
		"key":    key,
	})
	return key, nil
}

// RecordCommit resolves the just-created commit against the marker
// store. Called from the post-commit hook. A matching marker is
// consumed and the commit is recorded VERIFIED; a missing marker means
// the gate was skipped, so the commit is recorded BYPASSED and the
// event is appended to the bypass log. Bypass is a reportable finding,
// not an error.
func (g *Guardian) RecordCommit(ctx context.Context, hash, message string) (*CommitRecord, error) {
	key, err := TreeHash(g.root, g.stateDir)
	if err != nil {
		return nil, err
	}
	found, err := g.markers.Consume(key)
	if err != nil {
		return nil, err
	}

	now := g.Now().UTC()
	rec := &CommitRecord{
		Hash:       hash,
		TreeHash:   key,
		Checks:     g.checkResults(found),
		Message:    firstLine(message),
		RecordedAt: now,
		UpdatedAt:  now,
	}
	if found {
		rec.Status = StatusVerified
	} else {
		rec.Status = StatusBypassed
		rec.Bypassed = true
		if err := g.store.AppendBypass(BypassEvent{
			Hash:       hash,
			TreeHash:   key,
			Message:    rec.Message,
			DetectedAt: now,
		}); err != nil {
			return nil, err
		}
		g.logger.Warn("bypass detected", map[string]interface{}{
			"commit": hash,
			"code":   string(errors.BypassDetected),
		})
		if g.Learner != nil {
			if err := g.Learner.RecordBypass(hash, rec.Message); err != nil {
				g.logger.Warn("failed to record bypass lesson", map[string]interface{}{
					"commit": hash,
					"error":  err.Error(),
				})
			}
		}
	}
	if err := g.store.SaveRecord(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// checkResults snapshots the configured check names. A consumed marker
// proves the gate ran them all; a missing marker means none ran.
func (g *Guardian) checkResults(executed bool) []CheckResult {
	out := make([]CheckResult, 0, len(g.checks))
	for _, c := range g.checks {
		out = append(out, CheckResult{Name: c.Name, Executed: executed})
	}
	return out
}

// Reconcile reruns the gate checks against each bypassed commit's own
// tree. A passing commit is rewritten VERIFIED_RETROACTIVE; a failing
// one stays BYPASSED with the failure noted as an open compliance
// issue. The bypass log is never rewritten.
func (g *Guardian) Reconcile(ctx context.Context) (fixed, open []CommitRecord, err error) {
	bypassed, err := g.store.ListByStatus(StatusBypassed)
	if err != nil {
		return nil, nil, err
	}

	for i := range bypassed {
		rec := bypassed[i]
		checkErr := g.recheckCommit(ctx, rec.Hash)
		rec.UpdatedAt = g.Now().UTC()
		if checkErr == nil {
			rec.Status = StatusVerifiedRetroactive
			rec.Note = "gate checks passed on reconciliation"
			for j := range rec.Checks {
				rec.Checks[j].Executed = true
			}
			fixed = append(fixed, rec)
		} else {
			rec.Note = errors.Wrap(errors.ReconciliationFailure,
				"gate checks still failing", checkErr).Error()
			open = append(open, rec)
		}
		if err := g.store.SaveRecord(&rec); err != nil {
			return nil, nil, err
		}
	}

	g.logger.Info("reconciliation complete", map[string]interface{}{
		"fixed": len(fixed),
		"open":  len(open),
	})
	return fixed, open, nil
}

// recheckCommit materializes the commit tree into a scratch directory
// and runs the checks there, so reconciliation judges the committed
// content rather than the current working tree.
func (g *Guardian) recheckCommit(ctx context.Context, hash string) error {
	dir, err := os.MkdirTemp("", "ckg-reconcile-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	if err := MaterializeCommit(g.root, hash, dir); err != nil {
		return err
	}
	return g.runChecks(ctx, dir)
}

func (g *Guardian) runChecks(ctx context.Context, dir string) error {
	for _, check := range g.checks {
		if err := g.runner.Run(ctx, check, dir); err != nil {
			return err
		}
	}
	return nil
}

// Summary aggregates the audit state for reporting.
type Summary struct {
	Total       int     `json:"total"`
	Verified    int     `json:"verified"`
	Bypassed    int     `json:"bypassed"`
	Retroactive int     `json:"retroactive"`
	BypassRate  float64 `json:"bypassRate"`
}

// Status summarizes all tracked commits.
func (g *Guardian) Status() (*Summary, []CommitRecord, error) {
	records, err := g.store.ListRecords()
	if err != nil {
		return nil, nil, err
	}
	s := &Summary{Total: len(records)}
	for _, r := range records {
		switch r.Status {
		case StatusVerified:
			s.Verified++
		case StatusBypassed:
			s.Bypassed++
		case StatusVerifiedRetroactive:
			s.Retroactive++
		}
	}
	if s.Total > 0 {
		s.BypassRate = float64(s.Bypassed+s.Retroactive) / float64(s.Total)
	}
	return s, records, nil
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
