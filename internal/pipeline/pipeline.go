// Package pipeline orchestrates a full ingestion run: organize staged
// sources, validate, load the seven vocabularies, build the mapping
// tables, and optionally auto-resolve conflicts. Steps run linearly; a
// failing step is recorded and the run continues.
package pipeline

import (
	"fmt"
	"time"

	"github.com/swapnilprakashpatil/codemx/internal/config"
	"github.com/swapnilprakashpatil/codemx/internal/conflict"
	apperrors "github.com/swapnilprakashpatil/codemx/internal/errors"
	"github.com/swapnilprakashpatil/codemx/internal/loader"
	"github.com/swapnilprakashpatil/codemx/internal/logging"
	"github.com/swapnilprakashpatil/codemx/internal/mapper"
	"github.com/swapnilprakashpatil/codemx/internal/source"
	"github.com/swapnilprakashpatil/codemx/internal/storage"
	"github.com/swapnilprakashpatil/codemx/internal/validate"
)

// Options controls one pipeline run
type Options struct {
	// Clean wipes all data before loading
	Clean bool
	// Organize runs the staging phase first (default on)
	Organize bool
	// Validate runs pre-flight checks before loading
	Validate bool
	// Strict aborts the run when validation fails
	Strict bool
	// Only restricts the load and map steps to these keys
	Only []string
	// Skip excludes these step keys
	Skip []string
	// AutoResolve runs the conflict resolution engine after mapping
	AutoResolve bool
	// ResolveLimit caps auto-resolution (0 means all open conflicts)
	ResolveLimit int
}

// StepResult records one pipeline step
type StepResult struct {
	Name     string        `json:"name"`
	Count    int           `json:"count"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Summary is the final report of a run
type Summary struct {
	Steps       []StepResult           `json:"steps"`
	FailedSteps []string               `json:"failedSteps,omitempty"`
	Records     map[string]int         `json:"records"`
	Mappings    map[string]int         `json:"mappings"`
	Conflicts   *storage.ConflictStats `json:"conflicts,omitempty"`
	Resolution  *conflict.Stats        `json:"resolution,omitempty"`
}

// Runner executes pipeline runs against one database
type Runner struct {
	db      *storage.DB
	cfg     *config.Config
	sources config.SourceRegistry
	logger  *logging.Logger
}

// NewRunner creates a pipeline runner
func NewRunner(db *storage.DB, cfg *config.Config, sources config.SourceRegistry, logger *logging.Logger) *Runner {
	return &Runner{db: db, cfg: cfg, sources: sources, logger: logger}
}

// Run executes the configured phases in order and returns the summary.
// The returned error is non-nil only for abort conditions (strict
// validation failure); step failures are carried in the summary.
func (r *Runner) Run(opts Options) (*Summary, error) {
	summary := &Summary{
		Records:  make(map[string]int),
		Mappings: make(map[string]int),
	}
	started := time.Now()

	if opts.Clean {
		r.runStep(summary, "clean", func() (int, error) {
			return 0, r.db.ClearData()
		})
	}

	if opts.Organize {
		r.runStep(summary, "organize", func() (int, error) {
			res, err := source.Organize(source.LayoutFromConfig(r.cfg), r.sources, r.logger)
			if err != nil {
				return 0, err
			}
			return res.Staged + res.Archived + res.Pruned, nil
		})
	}

	if opts.Validate {
		results := validate.RunAll(validate.Deps{
			Sources: r.sources,
			Staging: r.cfg.StagingDir(),
			Logger:  r.logger,
		})
		if !validate.AllOK(results) && opts.Strict {
			return summary, apperrors.New(apperrors.ValidationFailed,
				"source validation failed and strict mode is on")
		}
	}

	deps := loader.Deps{
		DB:      r.db,
		Config:  r.cfg,
		Sources: r.sources,
		Staging: r.cfg.StagingDir(),
		Logger:  r.logger,
	}
	for _, l := range loader.All(deps) {
		l := l
		if !r.selected(opts, l.Name()) {
			continue
		}
		r.runStep(summary, l.Name(), l.Load)
	}

	mapperDeps := mapper.Deps{
		DB:      r.db,
		Config:  r.cfg,
		Sources: r.sources,
		Staging: r.cfg.StagingDir(),
		Logger:  r.logger,
	}
	for _, builders := range [][]mapper.Builder{mapper.Direct(mapperDeps), mapper.Derived(mapperDeps)} {
		for _, b := range builders {
			b := b
			if !r.selected(opts, b.Name()) {
				continue
			}
			r.runStep(summary, b.Name(), b.Build)
		}
	}

	if opts.AutoResolve {
		r.runStep(summary, "auto-resolve", func() (int, error) {
			engine, err := conflict.NewEngine(conflict.OptionsFromConfig(r.db, r.cfg, r.logger))
			if err != nil {
				return 0, err
			}
			stats, err := engine.Run(opts.ResolveLimit)
			if err != nil {
				return 0, err
			}
			summary.Resolution = stats
			return stats.Resolved + stats.Ignored, nil
		})
	}

	r.collectCounts(summary)

	r.logger.Info("pipeline run complete", map[string]interface{}{
		"duration":     time.Since(started).String(),
		"failed_steps": len(summary.FailedSteps),
	})
	return summary, nil
}

// runStep executes one step with error and panic containment. A failing
// step never stops the run; it is recorded and later steps proceed with
// whatever data exists.
func (r *Runner) runStep(summary *Summary, name string, fn func() (int, error)) {
	started := time.Now()
	result := StepResult{Name: name}

	func() {
		defer func() {
			if p := recover(); p != nil {
				result.Error = fmt.Sprintf("panic: %v", p)
			}
		}()
		count, err := fn()
		result.Count = count
		if err != nil {
			result.Error = err.Error()
		}
	}()

	result.Duration = time.Since(started)
	summary.Steps = append(summary.Steps, result)

	if result.Error != "" {
		summary.FailedSteps = append(summary.FailedSteps, name)
		r.logger.Error("pipeline step failed", map[string]interface{}{
			"step":  name,
			"error": result.Error,
		})
		return
	}
	r.logger.Info("pipeline step complete", map[string]interface{}{
		"step":     name,
		"count":    result.Count,
		"duration": result.Duration.String(),
	})
}

// selected applies the only/skip filters to a step key
func (r *Runner) selected(opts Options, name string) bool {
	for _, s := range opts.Skip {
		if s == name {
			return false
		}
	}
	if len(opts.Only) == 0 {
		return true
	}
	for _, o := range opts.Only {
		if o == name {
			return true
		}
	}
	return false
}

// collectCounts fills the record and mapping tallies of the summary
func (r *Runner) collectCounts(summary *Summary) {
	vocabTables := map[string]string{
		"snomed": storage.TableSnomed,
		"icd10":  storage.TableICD10,
		"hcc":    storage.TableHCC,
		"cpt":    storage.TableCPT,
		"hcpcs":  storage.TableHCPCS,
		"rxnorm": storage.TableRxNorm,
		"ndc":    storage.TableNDC,
	}
	for key, table := range vocabTables {
		if n, err := r.db.CountCodes(table); err == nil {
			summary.Records[key] = n
		}
	}
	if counts, err := r.db.MappingCounts(); err == nil {
		summary.Mappings = counts
	}
	if stats, err := r.db.GetConflictStats(); err == nil {
		summary.Conflicts = stats
	}
}
