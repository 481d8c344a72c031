package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to SessionStatus
		want     bool
	}{
		{StatusPending, StatusScheduled, true},
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCompleted, false},
		{StatusScheduled, StatusConfirmed, true},
		{StatusScheduled, StatusCompleted, true},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusPending, false},
		{StatusPending, StatusCancelled, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestDecodeProfile(t *testing.T) {
	p, err := DecodeProfile(RoleTutor, "t1", []byte(`{"fullName":"Tom","hourlyRate":25,"subjects":["physics"]}`))
	require.NoError(t, err)

	tutor, ok := p.(*TutorProfile)
	require.True(t, ok)
	assert.Equal(t, "t1", tutor.ID)
	assert.Equal(t, RoleTutor, tutor.Role)
	assert.Equal(t, 25.0, tutor.HourlyRate)
	assert.Len(t, tutor.Availability, 7)

	p, err = DecodeProfile(RoleStudent, "s1", []byte(`{"fullName":"Sue"}`))
	require.NoError(t, err)
	student := p.(*StudentProfile)
	assert.True(t, student.OnFreePlan())

	_, err = DecodeProfile(Role("admin"), "x", []byte(`{}`))
	assert.Error(t, err)
}

func TestSession_Helpers(t *testing.T) {
	now := time.Now()
	s := Session{TutorID: "t", StudentID: "s", Status: StatusConfirmed, Date: now.Add(time.Hour), Duration: 90, Rate: 40}
	assert.True(t, s.Upcoming(now))
	assert.Equal(t, 60.0, s.Earnings())
	assert.True(t, s.Involves("t"))
	assert.False(t, s.Involves(""))

	s.Status = StatusCancelled
	assert.False(t, s.Upcoming(now))
}

func TestRole(t *testing.T) {
	assert.Equal(t, "tutors", RoleTutor.Partition())
	assert.Equal(t, "/student-dashboard", RoleStudent.Dashboard())
	assert.False(t, Role("admin").Valid())
	assert.Equal(t, SubjectOption{ID: "math", Value: "math", Label: "Mathematics"}, Subject{ID: "math", Name: "Mathematics"}.Option())
}
