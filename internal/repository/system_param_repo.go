package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"recurring-card/config"
	"recurring-card/internal/model"
	"recurring-card/pkg/cache"
	"recurring-card/pkg/common"
	"recurring-card/pkg/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrParamNotFound = errors.New("system parameter not found")

type SystemParamRepository interface {
	Get(ctx context.Context, name string, destValue interface{}) error
	Set(ctx context.Context, name string, value interface{}, description string, opts ...utils.DBOption) error
}

type systemParamRepository struct {
	cfg           *config.Config
	inmemoryCache cache.Cache
	db            *gorm.DB
}

func NewSystemParamRepository(cfg *config.Config, inmemoryCache cache.Cache, db *gorm.DB) SystemParamRepository {
	return &systemParamRepository{cfg: cfg, inmemoryCache: inmemoryCache, db: db}
}

func (s *systemParamRepository) Get(ctx context.Context, name string, destValue interface{}) error {
	key := fmt.Sprintf(common.KEY_SYSTEM_PARAM, name)
	if raw, found := cache.GetFromCache[[]byte](s.inmemoryCache, key); found {
		return json.Unmarshal(raw, destValue)
	}

	var param model.SystemParameter
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&param).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrParamNotFound
		}
		return err
	}
	s.inmemoryCache.Set(key, []byte(param.Value), s.cfg.Cache.SysParamExpDuration)
	return json.Unmarshal(param.Value, destValue)
}

func (s *systemParamRepository) Set(ctx context.Context, name string, value interface{}, description string, opts ...utils.DBOption) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal system parameter %s: %w", name, err)
	}
	param := model.SystemParameter{Name: name, Value: raw, Description: description}
	err = utils.ApplyOptions(s.db.WithContext(ctx), opts...).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "description", "updated_at"}),
		}).
		Create(&param).Error
	if err != nil {
		return err
	}
	s.inmemoryCache.Delete(fmt.Sprintf(common.KEY_SYSTEM_PARAM, name))
	return nil
}
