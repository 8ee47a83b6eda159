package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/babelscrib/babelscrib/internal/common"
	"github.com/babelscrib/babelscrib/internal/logging"
	"github.com/babelscrib/babelscrib/internal/server/config"
	"github.com/babelscrib/babelscrib/internal/server/identity"
	"github.com/babelscrib/babelscrib/internal/server/models"
	"github.com/babelscrib/babelscrib/internal/server/storage"
	"github.com/babelscrib/babelscrib/internal/server/translation"
)

// RunStatus is the outcome class of one translation run.
type RunStatus string

const (
	// RunSucceeded: every document translated and relocated, all cleanup done.
	RunSucceeded RunStatus = "Succeeded"
	// RunPartialFailure: the batch finished but some documents failed, some
	// outputs could not be relocated, or some cleanup steps failed.
	RunPartialFailure RunStatus = "PartialFailure"
	// RunFailed: the batch never produced usable output.
	RunFailed RunStatus = "Failed"
)

// RunOptions selects the language pair and post-run behavior for one run.
// An empty SourceLanguage lets the service auto-detect.
type RunOptions struct {
	TargetLanguage string
	SourceLanguage string

	// CleanupSource removes the identity's uploaded source blobs after a
	// fully successful run.
	CleanupSource bool
}

// DocumentOutcome is the per-document result surfaced to callers.
type DocumentOutcome struct {
	ID                 string `json:"id,omitempty"`
	Status             string `json:"status"`
	SourceFilename     string `json:"source_filename,omitempty"`
	TranslatedFilename string `json:"translated_filename,omitempty"`
	TranslatedTo       string `json:"translated_to,omitempty"`
	ErrorCode          string `json:"error_code,omitempty"`
	ErrorMessage       string `json:"error_message,omitempty"`
}

// RunResult is the full account of one orchestrated run. Warnings collect
// non-fatal cleanup problems; they never hide a translated document.
type RunResult struct {
	Status         RunStatus         `json:"status"`
	Identity       string            `json:"identity"`
	RunID          string            `json:"run_id"`
	TargetLanguage string            `json:"target_language"`
	Staged         int               `json:"staged"`
	Moved          int               `json:"moved"`
	Marked         int64             `json:"marked"`
	Documents      []DocumentOutcome `json:"documents,omitempty"`
	StaleSweep     CleanupReport     `json:"stale_sweep"`
	SourceCleanup  *CleanupReport    `json:"source_cleanup,omitempty"`
	Warnings       []string          `json:"warnings,omitempty"`
}

// documentIndex is the slice of the registry the orchestrator needs.
type documentIndex interface {
	ListFor(ctx context.Context, idHash string) ([]*models.Document, error)
	MarkTranslated(ctx context.Context, idHash, language string) (int64, error)
}

// TranslationOrchestrator runs the full translate flow for one identity:
// sweep stale outputs, stage uploads into per-run scratch containers, submit
// and await the batch, relocate outputs into the shared target container,
// and tear the scratch pair down again.
//
// Runs for the same identity are serialized by an in-process advisory lock;
// concurrent identities proceed independently.
type TranslationOrchestrator struct {
	registry documentIndex
	blobs    storage.BlobStore
	job      translation.Job
	sweeper  *RetentionSweeper

	sourceContainer string
	targetContainer string
	retention       time.Duration
	logger          logging.Logger

	mu    sync.Mutex
	locks map[string]*identityLock
}

type identityLock struct {
	mu   sync.Mutex
	refs int
}

func NewTranslationOrchestrator(registry documentIndex, blobs storage.BlobStore, job translation.Job, sweeper *RetentionSweeper, cfg *config.Config, logger logging.Logger) *TranslationOrchestrator {
	return &TranslationOrchestrator{
		registry:        registry,
		blobs:           blobs,
		job:             job,
		sweeper:         sweeper,
		sourceContainer: cfg.SourceContainer,
		targetContainer: cfg.TargetContainer,
		retention:       cfg.TargetRetentionThreshold,
		logger:          logger.With("module", "orchestrator"),
		locks:           map[string]*identityLock{},
	}
}

// lockIdentity blocks until the caller holds the identity's lock and returns
// the matching unlock func. Lock entries are reference counted so the map
// does not grow with every identity ever seen.
func (o *TranslationOrchestrator) lockIdentity(idHash string) func() {
	o.mu.Lock()
	l, ok := o.locks[idHash]
	if !ok {
		l = &identityLock{}
		o.locks[idHash] = l
	}
	l.refs++
	o.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()
		o.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(o.locks, idHash)
		}
		o.mu.Unlock()
	}
}

// RunForIdentity executes one translation run. It returns
// common.ErrorNoDocuments when the identity has nothing to translate. On a
// batch failure the returned error is the translation.JobError and the
// RunResult still carries whatever per-document detail the service reported.
func (o *TranslationOrchestrator) RunForIdentity(ctx context.Context, idHash string, opts RunOptions) (*RunResult, error) {
	unlock := o.lockIdentity(idHash)
	defer unlock()

	docs, err := o.registry.ListFor(ctx, idHash)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, common.ErrorNoDocuments
	}

	runID, err := common.MakeRandHexString(4)
	if err != nil {
		return nil, common.ErrorInternal
	}

	result := &RunResult{
		Status:         RunFailed,
		Identity:       idHash,
		RunID:          runID,
		TargetLanguage: opts.TargetLanguage,
	}

	// stale outputs from previous runs would trip the service's
	// target-already-exists check; sweep first, never abort on it
	result.StaleSweep = o.sweeper.SweepOldTargets(ctx, o.retention)

	tempSource := fmt.Sprintf("temp-source-%s-%s", idHash, runID)
	tempTarget := fmt.Sprintf("temp-target-%s-%s", idHash, runID)

	release, err := o.acquireScratchPair(ctx, tempSource, tempTarget)
	if err != nil {
		return nil, err
	}
	released := false
	defer func() {
		if !released {
			release(result)
		}
	}()

	staged, err := o.stage(ctx, idHash, tempSource)
	if err != nil {
		return nil, err
	}
	if staged == 0 {
		return nil, common.ErrorNoDocuments
	}
	result.Staged = staged

	o.logger.Info(ctx, "translation run starting",
		"identity", idHash, "run_id", runID, "staged", staged, "target_language", opts.TargetLanguage)

	handle, err := o.job.Submit(ctx, translation.BatchRequest{
		SourceURI:      o.blobs.ContainerURI(tempSource),
		TargetURI:      o.blobs.ContainerURI(tempTarget),
		TargetLanguage: opts.TargetLanguage,
		SourceLanguage: opts.SourceLanguage,
	})
	if err != nil {
		return result, err
	}

	batch, err := o.job.Wait(ctx, handle)
	if batch != nil {
		result.Documents = mapOutcomes(batch.Documents)
	}
	if err != nil {
		return result, err
	}

	result.Moved = o.relocate(ctx, idHash, tempTarget, result)

	marked, err := o.registry.MarkTranslated(ctx, idHash, opts.TargetLanguage)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("documents not marked translated: %v", err))
	}
	result.Marked = marked

	if opts.CleanupSource {
		cleanup := o.cleanupSource(ctx, idHash)
		result.SourceCleanup = &cleanup
	}

	released = true
	release(result)

	result.Status = RunSucceeded
	if batch.Failed > 0 || result.Moved < result.Staged || len(result.Warnings) > 0 ||
		(result.SourceCleanup != nil && result.SourceCleanup.Failed > 0) {
		result.Status = RunPartialFailure
	}

	o.logger.Info(ctx, "translation run finished",
		"identity", idHash, "run_id", runID, "status", string(result.Status),
		"staged", result.Staged, "moved", result.Moved, "warnings", len(result.Warnings))

	return result, nil
}

// acquireScratchPair creates the per-run scratch containers and returns the
// release func that tears both down. Release runs even when the run's
// context is already cancelled; failures land in the result's warnings.
func (o *TranslationOrchestrator) acquireScratchPair(ctx context.Context, tempSource, tempTarget string) (func(*RunResult), error) {
	if err := o.blobs.CreateContainer(ctx, tempSource); err != nil {
		return nil, fmt.Errorf("error creating scratch source container: %w", err)
	}
	if err := o.blobs.CreateContainer(ctx, tempTarget); err != nil {
		if derr := o.blobs.DeleteContainer(ctx, tempSource); derr != nil {
			o.logger.Warn(ctx, "orphaned scratch container", "container", tempSource, "error", derr.Error())
		}
		return nil, fmt.Errorf("error creating scratch target container: %w", err)
	}

	release := func(result *RunResult) {
		cleanupCtx := context.WithoutCancel(ctx)
		for _, c := range []string{tempSource, tempTarget} {
			if err := o.blobs.DeleteContainer(cleanupCtx, c); err != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("scratch container %s not removed: %v", c, err))
			}
		}
	}

	return release, nil
}

// stage copies the identity's source blobs into the scratch source
// container, dropping the identity prefix so the service sees plain
// filenames.
func (o *TranslationOrchestrator) stage(ctx context.Context, idHash, tempSource string) (int, error) {
	blobs, err := o.blobs.ListBlobs(ctx, o.sourceContainer, identity.Prefix(idHash))
	if err != nil {
		return 0, fmt.Errorf("error listing source blobs: %w", err)
	}

	staged := 0
	for _, b := range blobs {
		if !identity.Owns(idHash, b.Name) {
			continue
		}
		plain := identity.StripPrefix(idHash, b.Name)
		if err := o.blobs.Copy(ctx, o.sourceContainer, b.Name, tempSource, plain); err != nil {
			return staged, fmt.Errorf("error staging blob %s: %w", b.Name, err)
		}
		staged++
	}

	return staged, nil
}

// relocate moves translated blobs from the scratch target into the shared
// target container under the identity's prefix. Per-blob failures reduce the
// moved count and land in warnings; one stuck blob must not discard the
// rest.
func (o *TranslationOrchestrator) relocate(ctx context.Context, idHash, tempTarget string, result *RunResult) int {
	blobs, err := o.blobs.ListBlobs(ctx, tempTarget, "")
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("translated outputs not listed: %v", err))
		return 0
	}

	moved := 0
	for _, b := range blobs {
		dst := identity.Prefix(idHash) + b.Name
		if err := o.blobs.Copy(ctx, tempTarget, b.Name, o.targetContainer, dst); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("translated blob %s not relocated: %v", b.Name, err))
			continue
		}
		if err := o.blobs.DeleteBlob(ctx, tempTarget, b.Name); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("scratch copy of %s not removed: %v", b.Name, err))
		}
		moved++
	}

	return moved
}

// cleanupSource deletes the identity's uploaded blobs from the shared source
// container after a successful run.
func (o *TranslationOrchestrator) cleanupSource(ctx context.Context, idHash string) CleanupReport {
	report := CleanupReport{Attempted: true}

	blobs, err := o.blobs.ListBlobs(ctx, o.sourceContainer, identity.Prefix(idHash))
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("list %s: %v", o.sourceContainer, err))
		return report
	}

	for _, b := range blobs {
		report.Found++
		if err := o.blobs.DeleteBlob(ctx, o.sourceContainer, b.Name); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("delete %s/%s: %v", o.sourceContainer, b.Name, err))
			continue
		}
		report.Cleaned++
	}

	return report
}

func mapOutcomes(docs []translation.DocumentStatus) []DocumentOutcome {
	if len(docs) == 0 {
		return nil
	}

	outcomes := make([]DocumentOutcome, 0, len(docs))
	for _, d := range docs {
		out := DocumentOutcome{
			ID:                 d.ID,
			Status:             d.Status,
			SourceFilename:     d.SourceFilename,
			TranslatedFilename: d.TranslatedFilename,
			TranslatedTo:       d.TranslatedTo,
		}
		if d.Error != nil {
			out.ErrorCode = d.Error.Code
			out.ErrorMessage = d.Error.Message
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}
