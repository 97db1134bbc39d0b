package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"survey_analytics_backend/internal/model"
	"survey_analytics_backend/internal/util"
)

// publicSurveyCacheTTL 投放页是无鉴权的高频入口，短 TTL 缓存挡住重复的联表查询
const publicSurveyCacheTTL = time.Minute

type SurveyRepository struct {
	DB  *gorm.DB
	RDB *redis.Client
}

func NewSurveyRepository(db *gorm.DB, rdb *redis.Client) *SurveyRepository {
	return &SurveyRepository{DB: db, RDB: rdb}
}

func (r *SurveyRepository) Create(survey *model.Survey) error {
	return r.DB.Create(survey).Error
}

func (r *SurveyRepository) FindByID(id uint) (*model.Survey, error) {
	var survey model.Survey
	err := r.DB.
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.display_order ASC")
		}).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("question_options.display_order ASC")
		}).
		First(&survey, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrSurveyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &survey, nil
}

func (r *SurveyRepository) FindByPublicToken(token string) (*model.Survey, error) {
	cacheKey := "survey:public:" + token
	if r.RDB != nil {
		if data, err := r.RDB.Get(context.Background(), cacheKey).Bytes(); err == nil {
			var cached model.Survey
			if json.Unmarshal(data, &cached) == nil {
				return &cached, nil
			}
		}
	}

	var survey model.Survey
	err := r.DB.
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.display_order ASC")
		}).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("question_options.display_order ASC")
		}).
		Where("public_token = ?", token).
		First(&survey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrSurveyNotFound
	}
	if err != nil {
		return nil, err
	}

	if r.RDB != nil {
		if data, err := json.Marshal(&survey); err == nil {
			r.RDB.Set(context.Background(), cacheKey, data, publicSurveyCacheTTL)
		}
	}
	return &survey, nil
}

func (r *SurveyRepository) ListByCreator(userID uint, page, limit int) ([]model.Survey, int64, error) {
	var surveys []model.Survey
	var total int64

	q := r.DB.Model(&model.Survey{}).Where("created_by = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := q.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&surveys).Error
	if err != nil {
		return nil, 0, err
	}
	return surveys, total, nil
}

func (r *SurveyRepository) UpdateStatus(id uint, status model.SurveyStatus) error {
	if err := r.DB.Model(&model.Survey{}).Where("id = ?", id).Update("status", status).Error; err != nil {
		return err
	}
	r.invalidatePublicCache(id)
	return nil
}

func (r *SurveyRepository) Delete(id uint) error {
	r.invalidatePublicCache(id)
	return r.DB.Delete(&model.Survey{}, id).Error
}

// invalidatePublicCache 状态变更会影响投放页可见性，主动清掉缓存
func (r *SurveyRepository) invalidatePublicCache(id uint) {
	if r.RDB == nil {
		return
	}
	var token string
	if err := r.DB.Model(&model.Survey{}).Where("id = ?", id).Pluck("public_token", &token).Error; err != nil || token == "" {
		return
	}
	r.RDB.Del(context.Background(), "survey:public:"+token)
}

func (r *SurveyRepository) CountByCreatorAndStatus(userID uint, status model.SurveyStatus) (int64, error) {
	var count int64
	q := r.DB.Model(&model.Survey{}).Where("created_by = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Count(&count).Error
	return count, err
}
