package models

import (
	"time"

	"github.com/google/uuid"
)

// Privacy levels stamped on new records. Records start at standard; raising
// the level is a product decision outside this layer.
const (
	PrivacyStandard   = "standard"
	PrivacyRestricted = "restricted"
)

// Record section names. Every dot-path starts with one of these.
const (
	SectionIdentity   = "identity"
	SectionEducation  = "education"
	SectionFamily     = "family"
	SectionHealth     = "health"
	SectionExtensions = "extensions"
)

// RecordMeta carries audit stamps and derived scores for a subject record.
type RecordMeta struct {
	CreatedAt         time.Time `json:"createdAt"`
	CreatedBy         string    `json:"createdBy"`
	UpdatedAt         time.Time `json:"updatedAt"`
	UpdatedBy         string    `json:"updatedBy"`
	TrustScore        int       `json:"trustScore"`        // 0..100
	CompletenessScore float64   `json:"completenessScore"` // 0..1
	PrivacyLevel      string    `json:"privacyLevel"`
}

// SubjectRecord is the primary case record for one subject (student/client),
// scoped to a tenant and stored in that tenant's regional shard. All domain
// data lives in provenance-carrying sections; Meta holds stamps and scores.
type SubjectRecord struct {
	ID       uuid.UUID `json:"id"`
	TenantID string    `json:"tenantId"`

	Identity   Section `json:"identity"`
	Education  Section `json:"education"`
	Family     Section `json:"family"`
	Health     Section `json:"health"`
	Extensions Section `json:"extensions"`

	Meta RecordMeta `json:"meta"`

	// Version is the store's optimistic concurrency token. Zero for drafts;
	// incremented by the store on every committed write.
	Version int64 `json:"-"`
}

// Section returns the named section map, or false for an unknown name.
func (r *SubjectRecord) Section(name string) (Section, bool) {
	switch name {
	case SectionIdentity:
		return r.Identity, true
	case SectionEducation:
		return r.Education, true
	case SectionFamily:
		return r.Family, true
	case SectionHealth:
		return r.Health, true
	case SectionExtensions:
		return r.Extensions, true
	default:
		return nil, false
	}
}

// SetSection replaces the named section map. Returns false for an unknown
// name so callers can surface a path error instead of silently dropping the
// write.
func (r *SubjectRecord) SetSection(name string, s Section) bool {
	switch name {
	case SectionIdentity:
		r.Identity = s
	case SectionEducation:
		r.Education = s
	case SectionFamily:
		r.Family = s
	case SectionHealth:
		r.Health = s
	case SectionExtensions:
		r.Extensions = s
	default:
		return false
	}
	return true
}

// SectionNames lists the record sections in a stable order.
func SectionNames() []string {
	return []string{SectionIdentity, SectionEducation, SectionFamily, SectionHealth, SectionExtensions}
}

// SubjectDraft is the caller-supplied shape for record creation. RecordType
// is the required discriminator (e.g. "student"); the service rejects drafts
// without one.
type SubjectDraft struct {
	RecordType string  `json:"recordType"`
	Identity   Section `json:"identity,omitempty"`
	Education  Section `json:"education,omitempty"`
	Family     Section `json:"family,omitempty"`
	Health     Section `json:"health,omitempty"`
	Extensions Section `json:"extensions,omitempty"`
}

// RelatedEntity is a sub-record attached to a subject: a guardian, parent,
// or other contact. HasLegalResponsibility drives verification rules for
// minors.
type RelatedEntity struct {
	ID                     uuid.UUID `json:"id"`
	SubjectID              uuid.UUID `json:"subjectId"`
	TenantID               string    `json:"tenantId"`
	Kind                   string    `json:"kind"` // guardian, parent, contact
	Fields                 Section   `json:"fields"`
	HasLegalResponsibility bool      `json:"hasLegalResponsibility"`
	CreatedAt              time.Time `json:"createdAt"`
}

// RelatedDraft is the caller-supplied shape for a related entity. Kind is
// the required discriminator.
type RelatedDraft struct {
	Kind                   string  `json:"kind"`
	Fields                 Section `json:"fields,omitempty"`
	HasLegalResponsibility bool    `json:"hasLegalResponsibility"`
}

// EntityKindGuardian marks related entities that count as guardians for
// verification rule purposes.
const (
	EntityKindGuardian = "guardian"
	EntityKindParent   = "parent"
	EntityKindContact  = "contact"
)

// IsGuardian reports whether the entity counts as a guardian figure.
func (e RelatedEntity) IsGuardian() bool {
	return e.Kind == EntityKindGuardian || e.Kind == EntityKindParent
}
