package repository

import (
	"portage/internal/db"
	"portage/internal/model"
)

// AttemptRepository persists the per-attempt audit log. It is written
// by the scheduler and read by the admin API; the broker never rebuilds
// job state from it.
type AttemptRepository struct{}

func NewAttemptRepository() *AttemptRepository {
	return &AttemptRepository{}
}

func (r *AttemptRepository) Save(a *model.Attempt) error {
	return db.DB.Create(a).Error
}

func (r *AttemptRepository) Recent(n int) ([]model.Attempt, error) {
	var attempts []model.Attempt
	return attempts, db.DB.Order("id desc").Limit(n).Find(&attempts).Error
}

func (r *AttemptRepository) ByJob(jobID int) ([]model.Attempt, error) {
	var attempts []model.Attempt
	return attempts, db.DB.Where("job_id = ?", jobID).Order("id").Find(&attempts).Error
}
