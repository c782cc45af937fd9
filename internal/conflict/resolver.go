// Package conflict automates resolution of mapping conflicts through an
// ordered strategy chain. Each open conflict is offered to every strategy
// in turn; the first one that claims it wins.
package conflict

import (
	"github.com/swapnilprakashpatil/codemx/internal/config"
	"github.com/swapnilprakashpatil/codemx/internal/logging"
	"github.com/swapnilprakashpatil/codemx/internal/storage"
)

// Outcome is a strategy's verdict on one conflict
type Outcome int

const (
	// None means the strategy does not claim the conflict
	None Outcome = iota
	// Resolved means the conflict was repaired and closed
	Resolved
	// Ignored means the conflict is noise and was closed as ignored
	Ignored
)

// Resolver is one resolution strategy
type Resolver interface {
	Name() string
	Attempt(c *storage.Conflict) (Outcome, error)
}

// Options configures the engine and its strategies
type Options struct {
	DB             *storage.DB
	Logger         *logging.Logger
	FuzzyThreshold float64
	CommitInterval int
	// CreatePlaceholders enables the placeholder strategy, which
	// fabricates inactive stub records. Off by default.
	CreatePlaceholders bool
	// SkipFuzzy disables the fuzzy matcher, leaving only pattern
	// rejection (and placeholders if enabled).
	SkipFuzzy bool
	// DryRun reports what would happen without writing anything
	DryRun bool
}

// OptionsFromConfig derives engine options from the resolve config section
func OptionsFromConfig(db *storage.DB, cfg *config.Config, logger *logging.Logger) Options {
	return Options{
		DB:                 db,
		Logger:             logger,
		FuzzyThreshold:     cfg.Resolve.FuzzyThreshold,
		CommitInterval:     cfg.Resolve.CommitInterval,
		CreatePlaceholders: cfg.Resolve.CreatePlaceholders,
	}
}

// Stats aggregates one engine run
type Stats struct {
	Processed  int            `json:"processed"`
	Resolved   int            `json:"resolved"`
	Ignored    int            `json:"ignored"`
	Unresolved int            `json:"unresolved"`
	ByResolver map[string]int `json:"byResolver"`
}

// Engine walks open conflicts in batches and applies the strategy chain
type Engine struct {
	opts      Options
	resolvers []Resolver
}

// NewEngine builds the engine with the standard chain: pattern rejection,
// then fuzzy matching, then placeholder creation when enabled.
func NewEngine(opts Options) (*Engine, error) {
	if opts.CommitInterval <= 0 {
		opts.CommitInterval = 1000
	}

	var resolvers []Resolver
	resolvers = append(resolvers, NewInvalidCodeRejector(opts))
	if !opts.SkipFuzzy {
		fuzzy, err := NewICD10FuzzyMatcher(opts)
		if err != nil {
			return nil, err
		}
		resolvers = append(resolvers, fuzzy)
	}
	if opts.CreatePlaceholders {
		resolvers = append(resolvers, NewPlaceholderCreator(opts))
	}

	return &Engine{opts: opts, resolvers: resolvers}, nil
}

// Run processes up to limit open conflicts (0 means all). Conflicts left
// open by every strategy count as unresolved.
func (e *Engine) Run(limit int) (*Stats, error) {
	stats := &Stats{ByResolver: make(map[string]int)}
	offset := 0

	for {
		batch := e.opts.CommitInterval
		if limit > 0 {
			remaining := limit - stats.Processed
			if remaining <= 0 {
				break
			}
			if remaining < batch {
				batch = remaining
			}
		}

		conflicts, err := e.opts.DB.OpenConflicts(batch, offset)
		if err != nil {
			return stats, err
		}
		if len(conflicts) == 0 {
			break
		}

		for i := range conflicts {
			c := &conflicts[i]
			stats.Processed++

			outcome := None
			for _, r := range e.resolvers {
				o, err := r.Attempt(c)
				if err != nil {
					return stats, err
				}
				if o != None {
					outcome = o
					stats.ByResolver[r.Name()]++
					break
				}
			}

			switch outcome {
			case Resolved:
				stats.Resolved++
			case Ignored:
				stats.Ignored++
			default:
				stats.Unresolved++
				offset++
			}
			// Claimed conflicts leave the open set, so only unresolved
			// ones shift the window. In dry-run nothing closes, so every
			// processed conflict shifts it.
			if e.opts.DryRun && outcome != None {
				offset++
			}
		}

		if len(conflicts) < batch {
			break
		}
	}

	e.opts.Logger.Info("conflict resolution run complete", map[string]interface{}{
		"processed":  stats.Processed,
		"resolved":   stats.Resolved,
		"ignored":    stats.Ignored,
		"unresolved": stats.Unresolved,
		"dry_run":    e.opts.DryRun,
	})
	return stats, nil
}
