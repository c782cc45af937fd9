package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// SourceRule describes where one vocabulary's bulk artifacts live and which
// files in its staging subdirectory the loaders actually read. Matching is
// case-insensitive throughout because publisher file names are not stable.
type SourceRule struct {
	// Subdir is the staging subdirectory name (e.g. "icd10cm")
	Subdir string `toml:"subdir"`
	// ZipKeywords route zip files from downloads/ into this subdirectory
	ZipKeywords []string `toml:"zip_keywords"`
	// KeepSuffix is the required file extension for staged files
	KeepSuffix string `toml:"keep_suffix"`
	// KeepContains are substrings at least one of which must appear in the name
	KeepContains []string `toml:"keep_contains"`
	// KeepExcludes are substrings that disqualify a file
	KeepExcludes []string `toml:"keep_excludes"`
}

// Keep reports whether a staged file name should stay in staging
func (r SourceRule) Keep(name string) bool {
	lower := strings.ToLower(name)
	if r.KeepSuffix != "" && !strings.HasSuffix(lower, strings.ToLower(r.KeepSuffix)) {
		return false
	}
	for _, ex := range r.KeepExcludes {
		if strings.Contains(lower, strings.ToLower(ex)) {
			return false
		}
	}
	if len(r.KeepContains) == 0 {
		return true
	}
	for _, c := range r.KeepContains {
		if strings.Contains(lower, strings.ToLower(c)) {
			return true
		}
	}
	return false
}

// MatchesZip reports whether a downloaded zip belongs to this source
func (r SourceRule) MatchesZip(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range r.ZipKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// SourceRegistry maps vocabulary keys to their source rules
type SourceRegistry map[string]SourceRule

// Subdirs returns every staging subdirectory in the registry
func (reg SourceRegistry) Subdirs() []string {
	out := make([]string, 0, len(reg))
	for _, r := range reg {
		out = append(out, r.Subdir)
	}
	return out
}

// DefaultSources returns the built-in registry matching the publisher
// release naming for each vocabulary.
func DefaultSources() SourceRegistry {
	return SourceRegistry{
		"snomed": {
			Subdir:       "snomed",
			ZipKeywords:  []string{"SnomedCT_ManagedServiceUS_PRODUCTION"},
			KeepSuffix:   ".zip",
			KeepContains: []string{"SnomedCT"},
		},
		"icd10": {
			Subdir:       "icd10cm",
			ZipKeywords:  []string{"code-descriptions-tabular-order"},
			KeepSuffix:   ".txt",
			KeepContains: []string{"order"},
			KeepExcludes: []string{"addenda"},
		},
		"hcc": {
			Subdir:       "hcc",
			ZipKeywords:  []string{"icd-10-cm-mappings", "initial-model-software", "midyear-final-icd-10-mappings"},
			KeepSuffix:   ".csv",
			KeepContains: []string{"Mappings"},
		},
		"cpt": {
			Subdir:       "cpt",
			ZipKeywords:  []string{"dhs_code_list"},
			KeepSuffix:   ".zip",
			KeepContains: []string{"dhs_code_list"},
		},
		"hcpcs": {
			Subdir:       "hcpcs",
			ZipKeywords:  []string{"alpha-numeric-hcpcs-file"},
			KeepSuffix:   ".txt",
			KeepContains: []string{"ANWEB"},
		},
		"rxnorm": {
			Subdir:       "rxnorm",
			ZipKeywords:  []string{"RxNorm_full"},
			KeepSuffix:   ".zip",
			KeepContains: []string{"RxNorm_full"},
		},
		"ndc": {
			Subdir:       "ndc",
			ZipKeywords:  []string{"ndctext"},
			KeepSuffix:   ".zip",
			KeepContains: []string{"ndctext"},
		},
	}
}

// LoadSources reads a sources.toml override if present, otherwise returns
// the built-in registry. Entries in the file replace built-ins per key.
func LoadSources(path string) (SourceRegistry, error) {
	reg := DefaultSources()
	if path == "" {
		return reg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return reg, nil
		}
		return nil, fmt.Errorf("failed to read source registry %s: %w", path, err)
	}

	var override SourceRegistry
	if err := toml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("failed to parse source registry %s: %w", path, err)
	}
	for key, rule := range override {
		reg[key] = rule
	}
	return reg, nil
}
