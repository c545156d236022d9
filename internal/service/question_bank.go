package service

import (
	"assessment_engine/internal/model"
	"assessment_engine/internal/util"
	"assessment_engine/pkg/logger"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ObjectQuestionBank reads definitions stored as JSON documents at <prefix>/<id>.json.
type ObjectQuestionBank struct {
	Storage StorageProvider
	Prefix  string
}

func NewObjectQuestionBank(storage StorageProvider, prefix string) *ObjectQuestionBank {
	return &ObjectQuestionBank{Storage: storage, Prefix: prefix}
}

func (b *ObjectQuestionBank) Key(assessmentID uint) string {
	return path.Join(b.Prefix, strconv.FormatUint(uint64(assessmentID), 10)+".json")
}

func (b *ObjectQuestionBank) GetDefinition(ctx context.Context, assessmentID uint) (*model.AssessmentDefinition, error) {
	data, err := b.Storage.Get(ctx, b.Key(assessmentID))
	if errors.Is(err, ErrObjectNotFound) {
		return nil, util.ErrAssessmentNotFound
	}
	if err != nil {
		return nil, err
	}

	var def model.AssessmentDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("decode assessment %d: %w", assessmentID, err)
	}
	if len(def.Questions) == 0 {
		return nil, util.ErrAssessmentNotFound
	}
	def.ID = assessmentID
	def.Normalize()
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("assessment %d: %w", assessmentID, err)
	}
	return &def, nil
}

// PutDefinition 写入定义文档，供导入脚本使用
func (b *ObjectQuestionBank) PutDefinition(ctx context.Context, def *model.AssessmentDefinition) error {
	def.Normalize()
	if err := def.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(def)
	if err != nil {
		return err
	}
	return b.Storage.Put(ctx, b.Key(def.ID), data, "application/json")
}

// CachedQuestionBank is a read-through Redis cache in front of another bank.
// Concurrent misses for the same id share one load. Redis failures fall back to
// the underlying bank.
type CachedQuestionBank struct {
	Next  QuestionBank
	Redis *redis.Client
	TTL   time.Duration
	group singleflight.Group
}

func NewCachedQuestionBank(next QuestionBank, rdb *redis.Client, ttl time.Duration) *CachedQuestionBank {
	return &CachedQuestionBank{Next: next, Redis: rdb, TTL: ttl}
}

func (b *CachedQuestionBank) cacheKey(assessmentID uint) string {
	return fmt.Sprintf("assessment:definition:%d", assessmentID)
}

func (b *CachedQuestionBank) GetDefinition(ctx context.Context, assessmentID uint) (*model.AssessmentDefinition, error) {
	key := b.cacheKey(assessmentID)

	if b.Redis != nil {
		raw, err := b.Redis.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var def model.AssessmentDefinition
			if err := json.Unmarshal(raw, &def); err == nil {
				return &def, nil
			}
			logger.Log.Warn("Discarding undecodable cached definition", zap.String("key", key))
		case !errors.Is(err, redis.Nil):
			logger.Log.Warn("Definition cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	v, err, _ := b.group.Do(key, func() (interface{}, error) {
		def, err := b.Next.GetDefinition(ctx, assessmentID)
		if err != nil {
			return nil, err
		}
		if b.Redis != nil {
			if data, err := json.Marshal(def); err == nil {
				if err := b.Redis.Set(ctx, key, data, b.TTL).Err(); err != nil {
					logger.Log.Warn("Definition cache write failed", zap.String("key", key), zap.Error(err))
				}
			}
		}
		return def, nil
	})
	if err != nil {
		return nil, err
	}
	// 共享结果，返回副本避免调用方互相影响
	def := *v.(*model.AssessmentDefinition)
	def.Questions = append([]model.Question(nil), def.Questions...)
	return &def, nil
}

// Invalidate drops a cached definition, e.g. after it was re-imported.
func (b *CachedQuestionBank) Invalidate(ctx context.Context, assessmentID uint) error {
	if b.Redis == nil {
		return nil
	}
	return b.Redis.Del(ctx, b.cacheKey(assessmentID)).Err()
}
