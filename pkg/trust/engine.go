package trust

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/mindcase/mindcase-core/pkg/apperrors"
	"github.com/mindcase/mindcase-core/pkg/fieldpath"
	"github.com/mindcase/mindcase-core/pkg/models"
)

// confidenceFloor is the machine-confidence threshold above which an
// unverified field still earns half credit.
const confidenceFloor = 0.8

// Rule inspects a record (and its related entities) and returns a
// verification task for one unmet condition, or nil when the condition is
// satisfied. Rules must be deterministic: same inputs, same description.
type Rule func(record *models.SubjectRecord, related []models.RelatedEntity) *models.VerificationTask

// Engine computes trust and completeness scores against a fixed weight
// table and generates initial verification tasks from its rule set.
type Engine struct {
	weights WeightTable
	rules   []Rule
}

// Option configures an Engine.
type Option func(*Engine)

// WithRules appends rules to the default rule set.
func WithRules(rules ...Rule) Option {
	return func(e *Engine) {
		e.rules = append(e.rules, rules...)
	}
}

// NewEngine builds an engine over the given weight table. A nil table means
// DefaultWeights.
func NewEngine(weights WeightTable, opts ...Option) *Engine {
	if weights == nil {
		weights = DefaultWeights()
	}
	e := &Engine{
		weights: weights,
		rules:   defaultRules(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Score computes the 0-100 trust score. Per tracked field: full credit when
// verified, half credit when unverified but machine confidence exceeds 0.8,
// zero otherwise (including absent fields, which still weigh into the
// denominator). Deterministic, and monotonic under verification: turning an
// unverified field verified can only raise a field's credit.
func (e *Engine) Score(record *models.SubjectRecord) int {
	total := e.weights.Total()
	if total == 0 {
		return 0
	}

	var earned float64
	for _, path := range e.weights.Paths() {
		field, err := fieldpath.Get(record, path)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				continue
			}
			continue // unknown section in an override table: same zero credit
		}
		earned += fieldCredit(field) * e.weights[path]
	}

	score := int(math.Round(earned / total * 100))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

func fieldCredit(field models.Field) float64 {
	if field.Metadata.Verified {
		return 1.0
	}
	if c := field.Metadata.Confidence; c != nil && *c > confidenceFloor {
		return 0.5
	}
	return 0
}

// Completeness is the fraction of tracked fields carrying a value,
// regardless of verification state.
func (e *Engine) Completeness(record *models.SubjectRecord) float64 {
	if len(e.weights) == 0 {
		return 0
	}
	var present int
	for _, path := range e.weights.Paths() {
		field, err := fieldpath.Get(record, path)
		if err == nil && field.HasValue() {
			present++
		}
	}
	return float64(present) / float64(len(e.weights))
}

// GenerateInitialTasks runs every rule and returns the tasks for unmet
// conditions, stamped with fresh ids and the record's tenant/subject scope.
func (e *Engine) GenerateInitialTasks(record *models.SubjectRecord, related []models.RelatedEntity) []models.VerificationTask {
	now := time.Now()
	var tasks []models.VerificationTask
	for _, rule := range e.rules {
		task := rule(record, related)
		if task == nil {
			continue
		}
		task.ID = uuid.New()
		task.SubjectID = record.ID
		task.TenantID = record.TenantID
		task.Status = models.TaskPending
		task.CreatedAt = now
		tasks = append(tasks, *task)
	}
	return tasks
}

// defaultRules covers the conditions every new student record must clear.
func defaultRules() []Rule {
	return []Rule{
		ruleDateOfBirthVerified,
		ruleGuardianPresent,
		ruleLegalResponsibility,
	}
}

func ruleDateOfBirthVerified(record *models.SubjectRecord, _ []models.RelatedEntity) *models.VerificationTask {
	field, err := fieldpath.Get(record, "identity.dateOfBirth")
	if err == nil && field.Metadata.Verified {
		return nil
	}
	return &models.VerificationTask{
		FieldPath:   "identity.dateOfBirth",
		Description: "Verify date of birth against an official identity document",
	}
}

func ruleGuardianPresent(_ *models.SubjectRecord, related []models.RelatedEntity) *models.VerificationTask {
	for _, entity := range related {
		if entity.IsGuardian() {
			return nil
		}
	}
	return &models.VerificationTask{
		FieldPath:   "family.primaryGuardian",
		Description: "Record at least one guardian or parent for this subject",
	}
}

func ruleLegalResponsibility(_ *models.SubjectRecord, related []models.RelatedEntity) *models.VerificationTask {
	var guardians int
	for _, entity := range related {
		if !entity.IsGuardian() {
			continue
		}
		guardians++
		if entity.HasLegalResponsibility {
			return nil
		}
	}
	if guardians == 0 {
		// Covered by the guardian-present rule; avoid a second task for the
		// same gap.
		return nil
	}
	return &models.VerificationTask{
		FieldPath:   "family.primaryGuardian",
		Description: "Confirm which guardian holds legal responsibility",
	}
}
