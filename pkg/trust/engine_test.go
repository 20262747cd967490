package trust

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindcase/mindcase-core/pkg/models"
)

func verifiedField(value any) models.Field {
	f := models.NewField(value)
	f.Metadata.Verified = true
	return f
}

func confidentField(value any, confidence float64) models.Field {
	return models.NewImportedField(value, confidence, "import-1")
}

// Weight table from the product's scoring contract: two verified fields out
// of 60 total weight land exactly on 50.
func TestEngine_Score_WorkedExample(t *testing.T) {
	engine := NewEngine(WeightTable{
		"identity.firstName":   10,
		"identity.lastName":    10,
		"identity.dateOfBirth": 20,
		"identity.nationalId":  20,
	})

	record := &models.SubjectRecord{
		Identity: models.Section{
			"firstName":   verifiedField("Ada"),
			"lastName":    models.NewField("Lovelace"),
			"dateOfBirth": verifiedField("2015-12-10"),
			"nationalId":  models.NewField("X1234567"),
		},
	}

	assert.Equal(t, 50, engine.Score(record))
}

func TestEngine_Score_EmptyRecordIsZero(t *testing.T) {
	engine := NewEngine(nil)
	assert.Equal(t, 0, engine.Score(&models.SubjectRecord{}))
}

func TestEngine_Score_AllVerifiedIsHundred(t *testing.T) {
	engine := NewEngine(nil)
	record := &models.SubjectRecord{
		Identity: models.Section{
			"firstName":   verifiedField("Ada"),
			"lastName":    verifiedField("Lovelace"),
			"dateOfBirth": verifiedField("2015-12-10"),
			"nationalId":  verifiedField("X1234567"),
		},
		Education: models.Section{"school": verifiedField("Northfield Primary")},
		Family:    models.Section{"primaryGuardian": verifiedField("Anne Lovelace")},
		Health: models.Section{
			"diagnoses":   verifiedField([]string{"dyslexia"}),
			"medications": verifiedField([]string{}),
		},
	}
	assert.Equal(t, 100, engine.Score(record))
}

func TestEngine_Score_HighConfidenceEarnsHalfCredit(t *testing.T) {
	engine := NewEngine(WeightTable{"identity.firstName": 10})

	atFloor := &models.SubjectRecord{
		Identity: models.Section{"firstName": confidentField("Ada", 0.8)},
	}
	aboveFloor := &models.SubjectRecord{
		Identity: models.Section{"firstName": confidentField("Ada", 0.9)},
	}

	assert.Equal(t, 0, engine.Score(atFloor), "confidence must exceed 0.8, not equal it")
	assert.Equal(t, 50, engine.Score(aboveFloor))
}

func TestEngine_Score_AbsentFieldsStayInDenominator(t *testing.T) {
	engine := NewEngine(WeightTable{
		"identity.firstName": 10,
		"identity.lastName":  10,
	})
	record := &models.SubjectRecord{
		Identity: models.Section{"firstName": verifiedField("Ada")},
	}
	assert.Equal(t, 50, engine.Score(record))
}

func TestEngine_Score_Deterministic(t *testing.T) {
	engine := NewEngine(nil)
	record := &models.SubjectRecord{
		Identity: models.Section{
			"firstName":   verifiedField("Ada"),
			"dateOfBirth": confidentField("2015-12-10", 0.95),
		},
	}
	first := engine.Score(record)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, engine.Score(record))
	}
}

// Verifying any previously-unverified tracked field must never lower the
// score.
func TestEngine_Score_MonotonicUnderVerification(t *testing.T) {
	engine := NewEngine(nil)
	record := &models.SubjectRecord{
		Identity: models.Section{
			"firstName":   models.NewField("Ada"),
			"lastName":    confidentField("Lovelace", 0.95),
			"dateOfBirth": verifiedField("2015-12-10"),
			"nationalId":  models.NewField("X1234567"),
		},
		Education: models.Section{"school": models.NewField("Northfield Primary")},
	}

	for _, path := range engine.weights.Paths() {
		before := engine.Score(record)

		section, key := splitForTest(t, path)
		fields, ok := record.Section(section)
		if !ok || fields == nil {
			continue
		}
		field, ok := fields[key]
		if !ok || field.Metadata.Verified {
			continue
		}
		field.Metadata.Verified = true
		fields[key] = field

		after := engine.Score(record)
		assert.GreaterOrEqual(t, after, before, "verifying %s decreased the score", path)
	}
}

func splitForTest(t *testing.T, path string) (string, string) {
	t.Helper()
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			return path[:i], path[i+1:]
		}
	}
	t.Fatalf("path %q has no dot", path)
	return "", ""
}

func TestEngine_Score_StaysInRange(t *testing.T) {
	engine := NewEngine(nil)
	records := []*models.SubjectRecord{
		{},
		{Identity: models.Section{"firstName": verifiedField("Ada")}},
		{Health: models.Section{"diagnoses": confidentField("adhd", 0.99)}},
	}
	for _, record := range records {
		score := engine.Score(record)
		assert.GreaterOrEqual(t, score, 0)
		assert.LessOrEqual(t, score, 100)
	}
}

func TestEngine_Completeness_CountsPresentFields(t *testing.T) {
	engine := NewEngine(WeightTable{
		"identity.firstName": 10,
		"identity.lastName":  10,
		"education.school":   10,
		"health.diagnoses":   10,
	})
	record := &models.SubjectRecord{
		Identity: models.Section{
			"firstName": models.NewField("Ada"),
			"lastName":  models.NewField(""), // empty string counts as absent
		},
		Education: models.Section{"school": models.NewField("Northfield Primary")},
	}
	assert.InDelta(t, 0.5, engine.Completeness(record), 1e-9)
}

func TestEngine_GenerateInitialTasks_UnverifiedDOB(t *testing.T) {
	engine := NewEngine(nil)
	record := &models.SubjectRecord{
		Identity: models.Section{"dateOfBirth": models.NewField("2015-12-10")},
	}
	guardian := models.RelatedEntity{Kind: models.EntityKindGuardian, HasLegalResponsibility: true}

	tasks := engine.GenerateInitialTasks(record, []models.RelatedEntity{guardian})

	require.Len(t, tasks, 1)
	assert.Equal(t, "identity.dateOfBirth", tasks[0].FieldPath)
	assert.Equal(t, models.TaskPending, tasks[0].Status)
	assert.Equal(t, "Verify date of birth against an official identity document", tasks[0].Description)
}

func TestEngine_GenerateInitialTasks_NoGuardians(t *testing.T) {
	engine := NewEngine(nil)
	record := &models.SubjectRecord{
		Identity: models.Section{"dateOfBirth": verifiedField("2015-12-10")},
	}

	tasks := engine.GenerateInitialTasks(record, nil)

	require.Len(t, tasks, 1)
	assert.Equal(t, "Record at least one guardian or parent for this subject", tasks[0].Description)
}

func TestEngine_GenerateInitialTasks_GuardiansWithoutLegalResponsibility(t *testing.T) {
	engine := NewEngine(nil)
	record := &models.SubjectRecord{
		Identity: models.Section{"dateOfBirth": verifiedField("2015-12-10")},
	}
	related := []models.RelatedEntity{
		{Kind: models.EntityKindGuardian},
		{Kind: models.EntityKindParent},
		{Kind: models.EntityKindContact, HasLegalResponsibility: true}, // not a guardian
	}

	tasks := engine.GenerateInitialTasks(record, related)

	require.Len(t, tasks, 1)
	assert.Equal(t, "Confirm which guardian holds legal responsibility", tasks[0].Description)
}

func TestEngine_GenerateInitialTasks_AllRulesSatisfied(t *testing.T) {
	engine := NewEngine(nil)
	record := &models.SubjectRecord{
		Identity: models.Section{"dateOfBirth": verifiedField("2015-12-10")},
	}
	guardian := models.RelatedEntity{Kind: models.EntityKindGuardian, HasLegalResponsibility: true}

	tasks := engine.GenerateInitialTasks(record, []models.RelatedEntity{guardian})

	assert.Empty(t, tasks)
}

func TestEngine_GenerateInitialTasks_CustomRuleAppended(t *testing.T) {
	custom := func(record *models.SubjectRecord, _ []models.RelatedEntity) *models.VerificationTask {
		return &models.VerificationTask{
			FieldPath:   "education.school",
			Description: "Confirm current school enrolment",
		}
	}
	engine := NewEngine(nil, WithRules(custom))
	record := &models.SubjectRecord{
		Identity: models.Section{"dateOfBirth": verifiedField("2015-12-10")},
	}
	guardian := models.RelatedEntity{Kind: models.EntityKindGuardian, HasLegalResponsibility: true}

	tasks := engine.GenerateInitialTasks(record, []models.RelatedEntity{guardian})

	require.Len(t, tasks, 1)
	assert.Equal(t, "education.school", tasks[0].FieldPath)
}
