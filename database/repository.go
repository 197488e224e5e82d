/*
 * Copyright 2023 ICON Foundation
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"math"
	"time"

	"github.com/icon-project/btp2/common/errors"
	"gorm.io/gorm"
)

type Model struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Pageable struct {
	// Page 0-indexed
	Page uint `json:"page" query:"page"`
	// Size zero for unlimited
	Size uint `json:"size" query:"size"`
	// Sort for example "FIELD desc,FIELD"
	Sort string `json:"sort,omitempty" query:"sort"`
}

type Page[T any] struct {
	Content       []T      `json:"content"`
	TotalElements int      `json:"total_elements"`
	TotalPages    int      `json:"total_pages"`
	Pageable      Pageable `json:"pageable"`
}

type Repository[T any] interface {
	Save(ctx context.Context, v *T) error
	// SaveIfAbsent stores v unless a record matching query exists, and
	// returns the stored or existing record.
	SaveIfAbsent(ctx context.Context, v *T, query interface{}, conds ...interface{}) (*T, bool, error)
	Delete(ctx context.Context, query interface{}, conds ...interface{}) error
	Count(ctx context.Context, query interface{}, conds ...interface{}) (int64, error)
	FindOne(ctx context.Context, query interface{}, conds ...interface{}) (*T, error)
	Find(ctx context.Context, query interface{}, conds ...interface{}) ([]T, error)
	Page(ctx context.Context, p Pageable, query interface{}, conds ...interface{}) (*Page[T], error)
}

type GormRepository[T any] struct {
	db   *gorm.DB
	name string
}

func NewRepository[T any](db *gorm.DB, name string) (*GormRepository[T], error) {
	if err := db.Table(name).AutoMigrate(new(T)); err != nil {
		return nil, errors.Wrapf(err, "fail to AutoMigrate table:%s err:%s", name, err.Error())
	}
	return &GormRepository[T]{
		db:   db,
		name: name,
	}, nil
}

func (r *GormRepository[T]) table(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Table(r.name)
}

func (r *GormRepository[T]) where(ctx context.Context, query interface{}, conds ...interface{}) *gorm.DB {
	ret := r.table(ctx)
	if query != nil {
		ret = ret.Where(query, conds...)
	}
	return ret
}

func (r *GormRepository[T]) Save(ctx context.Context, v *T) error {
	return r.table(ctx).Save(v).Error
}

func (r *GormRepository[T]) SaveIfAbsent(ctx context.Context, v *T, query interface{}, conds ...interface{}) (ret *T, saved bool, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found := new(T)
		if fe := tx.Table(r.name).Where(query, conds...).First(found).Error; fe == nil {
			ret = found
			return nil
		} else if !errors.Is(fe, gorm.ErrRecordNotFound) {
			return fe
		}
		if se := tx.Table(r.name).Create(v).Error; se != nil {
			return se
		}
		ret, saved = v, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return ret, saved, nil
}

func (r *GormRepository[T]) Delete(ctx context.Context, query interface{}, conds ...interface{}) error {
	return r.table(ctx).Where(query, conds...).Delete(new(T)).Error
}

func (r *GormRepository[T]) Count(ctx context.Context, query interface{}, conds ...interface{}) (int64, error) {
	var count int64
	if err := r.where(ctx, query, conds...).Count(&count).Error; err != nil {
		return -1, err
	}
	return count, nil
}

func filterError(err error) error {
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return nil
}

// FindOne returns nil without error if nothing matches.
func (r *GormRepository[T]) FindOne(ctx context.Context, query interface{}, conds ...interface{}) (*T, error) {
	v := new(T)
	if err := r.where(ctx, query, conds...).First(v).Error; err != nil {
		return nil, filterError(err)
	}
	return v, nil
}

func (r *GormRepository[T]) Find(ctx context.Context, query interface{}, conds ...interface{}) ([]T, error) {
	var l []T
	if err := r.where(ctx, query, conds...).Find(&l).Error; err != nil {
		return nil, filterError(err)
	}
	return l, nil
}

func (r *GormRepository[T]) Page(ctx context.Context, p Pageable, query interface{}, conds ...interface{}) (*Page[T], error) {
	var count int64
	if err := r.where(ctx, query, conds...).Count(&count).Error; err != nil {
		return nil, err
	}
	ret := r.where(ctx, query, conds...)
	if p.Size > 0 {
		ret = ret.Offset(int(p.Page * p.Size)).Limit(int(p.Size))
	}
	if len(p.Sort) > 0 {
		ret = ret.Order(p.Sort)
	}
	l := make([]T, 0)
	if err := ret.Find(&l).Error; err != nil {
		return nil, filterError(err)
	}
	totalPages := 0
	if count > 0 {
		totalPages = 1
		if p.Size > 0 {
			totalPages = int(math.Ceil(float64(count) / float64(p.Size)))
		}
	}
	return &Page[T]{
		Pageable:      p,
		TotalElements: int(count),
		TotalPages:    totalPages,
		Content:       l,
	}, nil
}
