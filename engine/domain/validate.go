package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxQueryRunes bounds query text so a single request cannot blow the prompt
// budget before retrieval even starts.
const MaxQueryRunes = 2000

// ValidateQuery checks a query before any external call is made.
func ValidateQuery(q Query) error {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return NewValidationError("text", text, ErrEmptyQuery)
	}
	if utf8.RuneCountInString(text) > MaxQueryRunes {
		return NewValidationError("text", fmt.Sprintf("%d runes", utf8.RuneCountInString(text)), ErrQueryTooLong)
	}
	if len(q.Profile.Extra) > MaxExtraKeys {
		return NewValidationError("profile.extra", fmt.Sprintf("%d keys", len(q.Profile.Extra)), ErrExtraTooLarge)
	}
	return nil
}

// ValidateDocument checks a document before ingestion.
func ValidateDocument(doc Document) error {
	if doc.ID == "" {
		return NewValidationError("id", doc.ID, ErrMissingDocumentID)
	}
	if strings.TrimSpace(doc.Text) == "" {
		return NewValidationError("text", "", ErrEmptyDocument)
	}
	if !ValidSourceTypes[doc.Metadata.Type] {
		return NewValidationError("metadata.type", string(doc.Metadata.Type), ErrUnknownSourceType)
	}
	if doc.Metadata.ClinicalRelevance < 0 || doc.Metadata.ClinicalRelevance > 1 {
		return NewValidationError("metadata.clinical_relevance",
			fmt.Sprintf("%g", doc.Metadata.ClinicalRelevance), ErrRelevanceRange)
	}
	if len(doc.Metadata.Extra) > MaxExtraKeys {
		return NewValidationError("metadata.extra", fmt.Sprintf("%d keys", len(doc.Metadata.Extra)), ErrExtraTooLarge)
	}
	return nil
}
