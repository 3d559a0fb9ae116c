package domain

import "strings"

// LongevityTopics are the canonical discovery keywords for the knowledge base.
var LongevityTopics = []string{
	// Core longevity
	"NAD+ metabolism", "senolytics", "cellular senescence",
	"mitochondrial dysfunction", "autophagy", "healthspan",
	"lifespan extension", "metabolic aging", "epigenetic clock",
	"telomere attrition", "inflammaging",
	// Interventions
	"rapamycin", "metformin", "nicotinamide riboside",
	"nicotinamide mononucleotide", "GLP-1 agonist", "fasting",
	"resveratrol", "spermidine",
	// Metabolic disease
	"metabolic syndrome", "insulin resistance", "obesity inflammation",
}

// AuthorityJournals are high-impact venues that grant an authority uplift in
// relevance scoring. Matched case-insensitively by substring.
var AuthorityJournals = []string{
	"Nature Aging", "Cell Metabolism", "Aging Cell",
	"GeroScience", "Lancet Healthy Longevity",
	"Nature Medicine", "Cell", "Nature", "Science",
	"Journal of Clinical Investigation", "JAMA",
	"New England Journal of Medicine",
}

// IsAuthorityJournal reports whether journal matches a known high-impact venue.
func IsAuthorityJournal(journal string) bool {
	if journal == "" {
		return false
	}
	lower := strings.ToLower(journal)
	for _, j := range AuthorityJournals {
		if strings.Contains(lower, strings.ToLower(j)) {
			return true
		}
	}
	return false
}

// Authoritative reports whether a source counts toward the authority factor of
// answer confidence: primary expertise, clinical trials, and papers in
// high-impact journals.
func (m Metadata) Authoritative() bool {
	switch m.Type {
	case SourceExpertise, SourceClinicalTrial:
		return true
	}
	return IsAuthorityJournal(m.Journal)
}
