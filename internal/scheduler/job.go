package scheduler

import (
	"context"

	"go.uber.org/zap"

	studentService "tutorme.app/marketplace/internal/modules/student/service"
	tutorService "tutorme.app/marketplace/internal/modules/tutor/service"
)

// Job is a unit of background work.
type Job interface {
	// Name identifies the job in logs and for RunByName.
	Name() string
	// Schedule is a cron spec, or "" for on-demand jobs.
	Schedule() string
	Run(ctx context.Context) error
}

type planExpiryJob struct {
	students studentService.StudentService
	schedule string
	log      *zap.Logger
}

// NewPlanExpiryJob downgrades students whose paid plan has ended.
func NewPlanExpiryJob(students studentService.StudentService, schedule string, log *zap.Logger) Job {
	if schedule == "" {
		schedule = "@hourly"
	}
	return &planExpiryJob{students: students, schedule: schedule, log: log}
}

func (j *planExpiryJob) Name() string     { return "plan-expiry" }
func (j *planExpiryJob) Schedule() string { return j.schedule }

func (j *planExpiryJob) Run(ctx context.Context) error {
	n, err := j.students.ExpirePlans(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		j.log.Info("expired subscription plans", zap.Int("students", n))
	}
	return nil
}

type tutorReindexJob struct {
	tutors   tutorService.TutorService
	schedule string
	log      *zap.Logger
}

// NewTutorReindexJob rebuilds the tutor search index from the database.
func NewTutorReindexJob(tutors tutorService.TutorService, schedule string, log *zap.Logger) Job {
	return &tutorReindexJob{tutors: tutors, schedule: schedule, log: log}
}

func (j *tutorReindexJob) Name() string     { return "tutor-reindex" }
func (j *tutorReindexJob) Schedule() string { return j.schedule }

func (j *tutorReindexJob) Run(ctx context.Context) error {
	n, err := j.tutors.Reindex(ctx)
	if err != nil {
		return err
	}
	j.log.Info("reindexed tutors", zap.Int("tutors", n))
	return nil
}
