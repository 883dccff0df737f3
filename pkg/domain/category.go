package domain

import (
	"sort"

	dErrors "datex/pkg/domain-errors"
)

// DataCategory names one independently grantable slice of a customer profile
// (a "Datenbaustein"). A consent's category set gates which slices the
// exchange gateway may release.
type DataCategory string

// Representative categories. The vocabulary is configuration-driven, not a
// closed enum: deployments extend it via NewVocabulary.
const (
	CategoryBasicData          DataCategory = "basicData"
	CategoryContactInformation DataCategory = "contactInformation"
	CategoryAddressData        DataCategory = "addressData"
	CategoryIdentification     DataCategory = "identification"
	CategoryKYCData            DataCategory = "kycData"
	CategoryComplianceData     DataCategory = "complianceData"
	CategoryPortfolioData      DataCategory = "portfolioData"
)

// Vocabulary is the set of categories a deployment recognizes.
type Vocabulary struct {
	categories map[DataCategory]bool
}

// DefaultVocabulary returns the representative category set.
func DefaultVocabulary() Vocabulary {
	return NewVocabulary(
		CategoryBasicData,
		CategoryContactInformation,
		CategoryAddressData,
		CategoryIdentification,
		CategoryKYCData,
		CategoryComplianceData,
		CategoryPortfolioData,
	)
}

// NewVocabulary builds a vocabulary from the given categories.
func NewVocabulary(categories ...DataCategory) Vocabulary {
	m := make(map[DataCategory]bool, len(categories))
	for _, c := range categories {
		m[c] = true
	}
	return Vocabulary{categories: m}
}

// Contains reports whether the vocabulary recognizes the category.
func (v Vocabulary) Contains(c DataCategory) bool {
	return v.categories[c]
}

// ValidateSet enforces that the set is non-empty and every member is known.
func (v Vocabulary) ValidateSet(set []DataCategory) error {
	if len(set) == 0 {
		return dErrors.New(dErrors.CodeInvalidCategorySet, "category set must not be empty")
	}
	for _, c := range set {
		if !v.Contains(c) {
			return dErrors.New(dErrors.CodeInvalidCategorySet, "unknown data category: "+string(c))
		}
	}
	return nil
}

// CategorySet is an unordered set of data categories.
type CategorySet map[DataCategory]bool

// NewCategorySet builds a set, deduplicating as it goes.
func NewCategorySet(categories ...DataCategory) CategorySet {
	s := make(CategorySet, len(categories))
	for _, c := range categories {
		s[c] = true
	}
	return s
}

// Covers reports whether s is a superset of other.
func (s CategorySet) Covers(other CategorySet) bool {
	for c := range other {
		if !s[c] {
			return false
		}
	}
	return true
}

// Contains reports set membership for a single category.
func (s CategorySet) Contains(c DataCategory) bool { return s[c] }

// Slice returns the members in stable sorted order.
func (s CategorySet) Slice() []DataCategory {
	out := make([]DataCategory, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings returns the sorted members as plain strings for persistence.
func (s CategorySet) Strings() []string {
	cats := s.Slice()
	out := make([]string, len(cats))
	for i, c := range cats {
		out[i] = string(c)
	}
	return out
}

// CategorySetFromStrings rebuilds a set from its persisted form.
func CategorySetFromStrings(values []string) CategorySet {
	s := make(CategorySet, len(values))
	for _, v := range values {
		s[DataCategory(v)] = true
	}
	return s
}
