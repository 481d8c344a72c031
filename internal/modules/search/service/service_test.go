package service

import (
	"errors"
	"testing"

	"github.com/microcosm-cc/bluemonday"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"tutorme.app/marketplace/internal/entity"
	"tutorme.app/marketplace/pkg/apperror"
)

func TestNewTutorDoc(t *testing.T) {
	s := &meiliTutorSearch{sanitizer: bluemonday.StrictPolicy(), log: zap.NewNop()}

	tutor := &entity.TutorProfile{
		ProfileBase: entity.ProfileBase{ID: "t1", FullName: "Tom", Subjects: []string{"physics"}},
		Bio:         "<p>I teach <b>physics</b></p><script>alert(1)</script>  &amp; maths",
		HourlyRate:  30,
	}
	doc := newTutorDoc(tutor, s.cleanText)
	assert.Equal(t, "I teach physics & maths", doc.Bio)
	assert.True(t, doc.Listed)

	tutor.HourlyRate = 0
	assert.False(t, newTutorDoc(tutor, s.cleanText).Listed)
}

func TestNopTutorSearch(t *testing.T) {
	s := NewNopTutorSearch()
	assert.NoError(t, s.IndexTutor(&entity.TutorProfile{}))
	_, err := s.GenerateSearchToken(entity.RoleStudent)
	assert.True(t, errors.Is(err, apperror.ErrUnavailable))
}

func TestGenerateSearchToken_RequiresSigningKey(t *testing.T) {
	s := &meiliTutorSearch{log: zap.NewNop()}
	_, err := s.GenerateSearchToken(entity.RoleTutor)
	assert.True(t, errors.Is(err, apperror.ErrUnavailable))
}
