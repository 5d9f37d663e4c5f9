package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/repoinsight/internal/model"
)

// ErrJobNotFound 归档中不存在该任务
var ErrJobNotFound = errors.New("job not found")

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Save 写入或覆盖任务快照
func (r *JobRepository) Save(job *model.AnalysisJob) error {
	return r.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(job.ToRecord()).Error
}

func (r *JobRepository) GetByID(id string) (*model.AnalysisJob, error) {
	var rec model.JobRecord
	err := r.db.Where("id = ?", id).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to load job %s: %w", id, err)
	}
	return rec.ToJob(), nil
}

// ListByUser 分页获取用户的任务，按创建时间倒序
func (r *JobRepository) ListByUser(userID int64, page, pageSize int, status string) ([]*model.AnalysisJob, int64, error) {
	var records []*model.JobRecord
	var total int64

	query := r.db.Model(&model.JobRecord{}).Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize
	if err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&records).Error; err != nil {
		return nil, 0, err
	}

	jobs := make([]*model.AnalysisJob, len(records))
	for i, rec := range records {
		jobs[i] = rec.ToJob()
	}
	return jobs, total, nil
}

// DeleteFinishedBefore 删除在 cutoff 之前结束的任务
func (r *JobRepository) DeleteFinishedBefore(cutoff time.Time) (int64, error) {
	res := r.db.Where("status IN ? AND completed_at < ?",
		[]string{string(model.StatusCompleted), string(model.StatusFailed)}, cutoff).
		Delete(&model.JobRecord{})
	return res.RowsAffected, res.Error
}
