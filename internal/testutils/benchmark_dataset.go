package testutils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ahrav/go-triage/internal/domain"
)

// CaseDataset is a collection of labeled support cases used to measure
// how well the engine classifies and resolves them.
type CaseDataset struct {
	// Cases contains every labeled case.
	Cases []LabeledCase `json:"cases"`

	// Metadata provides information about the dataset itself.
	Metadata DatasetMetadata `json:"metadata"`
}

// LabeledCase is one engine input with the outcome a human triager
// recorded for it.
type LabeledCase struct {
	// ID uniquely identifies this case in the dataset.
	ID string `json:"id"`

	// Input is passed to the engine unchanged.
	Input domain.Input `json:"input"`

	// CodeDefect is the true answer to the binary question.
	CodeDefect bool `json:"code_defect"`

	// Entity is the entity the fix landed in. Empty when unknown.
	Entity string `json:"entity,omitempty"`

	// Domain groups the case (e.g. "billing", "orders").
	Domain string `json:"domain,omitempty"`
}

// DatasetMetadata contains information about the dataset, including
// licensing and provenance.
type DatasetMetadata struct {
	// Name identifies the dataset.
	Name string `json:"name"`

	// Version tracks dataset revisions.
	Version string `json:"version"`

	// License specifies the dataset's license.
	License string `json:"license"`

	// Source indicates where the cases came from.
	Source string `json:"source"`

	// Description provides details about the dataset contents.
	Description string `json:"description"`

	// Size is the total number of cases.
	Size int `json:"case_count"`
}

// LoadCaseDataset loads and validates a labeled dataset from a JSON file.
func LoadCaseDataset(path string) (*CaseDataset, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset file: %w", err)
	}

	var dataset CaseDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		return nil, fmt.Errorf("failed to parse dataset JSON: %w", err)
	}

	if err := ValidateCaseDataset(&dataset); err != nil {
		return nil, fmt.Errorf("dataset validation failed: %w", err)
	}

	return &dataset, nil
}

// ValidateCaseDataset checks a dataset for completeness and consistency.
func ValidateCaseDataset(dataset *CaseDataset) error {
	if dataset == nil {
		return fmt.Errorf("dataset is nil")
	}

	if err := validateMetadata(&dataset.Metadata); err != nil {
		return fmt.Errorf("metadata validation failed: %w", err)
	}

	if len(dataset.Cases) < MinimumDatasetSize {
		return fmt.Errorf("dataset must contain at least %d cases, found %d",
			MinimumDatasetSize, len(dataset.Cases))
	}

	seenIDs := make(map[string]bool)
	for i, c := range dataset.Cases {
		if err := validateCase(&c); err != nil {
			return fmt.Errorf("case %d validation failed: %w", i, err)
		}
		if seenIDs[c.ID] {
			return fmt.Errorf("duplicate case ID: %s", c.ID)
		}
		seenIDs[c.ID] = true
	}

	if dataset.Metadata.Size != len(dataset.Cases) {
		return fmt.Errorf("metadata size (%d) doesn't match actual case count (%d)",
			dataset.Metadata.Size, len(dataset.Cases))
	}

	return nil
}

func validateMetadata(meta *DatasetMetadata) error {
	if meta.Name == "" {
		return fmt.Errorf("dataset name is required")
	}
	if meta.Version == "" {
		return fmt.Errorf("dataset version is required")
	}
	if meta.License == "" {
		return fmt.Errorf("dataset license is required")
	}
	if meta.Size <= 0 {
		return fmt.Errorf("dataset size must be positive")
	}
	if !isCompatibleLicense(meta.License) {
		return fmt.Errorf("license %s is not in the list of compatible licenses", meta.License)
	}
	return nil
}

func validateCase(c *LabeledCase) error {
	if c.ID == "" {
		return fmt.Errorf("case ID is required")
	}
	if c.Input.Case.Text() == "" && len(c.Input.Case.CategoryTiers) == 0 {
		return fmt.Errorf("case %s has neither text nor category tiers", c.ID)
	}
	for i, m := range c.Input.Semantic {
		if m.Score < 0 || m.Score > 1 {
			return fmt.Errorf("case %s: semantic match %d score %v out of range", c.ID, i, m.Score)
		}
	}
	return nil
}

// DatasetStatistics summarizes a labeled dataset.
type DatasetStatistics struct {
	// TotalCases is the number of cases in the dataset.
	TotalCases int

	// CodeDefects is the number of cases labeled as code defects.
	CodeDefects int

	// WithEntity is the number of cases naming the entity that was fixed.
	WithEntity int

	// DomainsCount maps domain names to case counts.
	DomainsCount map[string]int

	// AvgHistory is the average number of similar past cases per case.
	AvgHistory float64
}

// ComputeDatasetStatistics analyzes a dataset and returns summary statistics.
func ComputeDatasetStatistics(dataset *CaseDataset) *DatasetStatistics {
	stats := &DatasetStatistics{
		TotalCases:   len(dataset.Cases),
		DomainsCount: make(map[string]int),
	}

	totalHistory := 0
	for _, c := range dataset.Cases {
		if c.Domain != "" {
			stats.DomainsCount[c.Domain]++
		} else {
			stats.DomainsCount["unspecified"]++
		}
		if c.CodeDefect {
			stats.CodeDefects++
		}
		if c.Entity != "" {
			stats.WithEntity++
		}
		totalHistory += len(c.Input.History)
	}

	if stats.TotalCases > 0 {
		stats.AvgHistory = float64(totalHistory) / float64(stats.TotalCases)
	}

	return stats
}

func isCompatibleLicense(license string) bool {
	normalized := strings.ToLower(strings.TrimSpace(license))
	return CompatibleLicenses[normalized]
}

// SaveCaseDataset writes a dataset to a JSON file.
func SaveCaseDataset(dataset *CaseDataset, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(dataset, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal dataset: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write dataset file: %w", err)
	}

	return nil
}
