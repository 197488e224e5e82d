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
	"fmt"
	"testing"

	"github.com/icon-project/btp2/common/log"
	"github.com/stretchr/testify/assert"
)

var (
	dbConfig = Config{
		Driver: DriverSQLite,
		DBName: ":memory:",
	}
)

type record struct {
	Model
	Network string
	Address string
}

func newTestRepository(t *testing.T) *GormRepository[record] {
	db, err := OpenDatabase(dbConfig, log.New())
	if err != nil {
		assert.FailNow(t, err.Error())
	}
	r, err := NewRepository[record](db, "record")
	if err != nil {
		assert.FailNow(t, err.Error())
	}
	return r
}

func Test_OpenDatabaseUnsupported(t *testing.T) {
	_, err := OpenDatabase(Config{Driver: "oracle"}, log.New())
	assert.Error(t, err)
}

func Test_Repository(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	count, err := r.Count(ctx, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), count)

	var l []*record
	for i := 0; i < 3; i++ {
		v := &record{Network: "eth", Address: fmt.Sprintf("0x%02d", i)}
		assert.NoError(t, r.Save(ctx, v))
		assert.True(t, v.ID > 0)
		assert.False(t, v.CreatedAt.IsZero())
		l = append(l, v)
	}

	found, err := r.FindOne(ctx, &record{Address: "0x01"})
	assert.NoError(t, err)
	if assert.NotNil(t, found) {
		assert.Equal(t, l[1].ID, found.ID)
	}
	found, err = r.FindOne(ctx, &record{Address: "0x99"})
	assert.NoError(t, err)
	assert.Nil(t, found)

	rl, err := r.Find(ctx, &record{Network: "eth"})
	assert.NoError(t, err)
	assert.Len(t, rl, 3)

	page, err := r.Page(ctx, Pageable{Size: 2, Sort: "address desc"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, 3, page.TotalElements)
	assert.Equal(t, 2, page.TotalPages)
	if assert.Len(t, page.Content, 2) {
		assert.Equal(t, "0x02", page.Content[0].Address)
	}
	page, err = r.Page(ctx, Pageable{Page: 1, Size: 2, Sort: "address desc"}, nil)
	assert.NoError(t, err)
	assert.Len(t, page.Content, 1)

	assert.NoError(t, r.Delete(ctx, &record{Address: "0x00"}))
	count, err = r.Count(ctx, &record{Network: "eth"})
	assert.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func Test_RepositorySaveIfAbsent(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	v, saved, err := r.SaveIfAbsent(ctx, &record{Network: "eth", Address: "0x01"},
		&record{Network: "eth", Address: "0x01"})
	assert.NoError(t, err)
	assert.True(t, saved)
	id := v.ID

	v, saved, err = r.SaveIfAbsent(ctx, &record{Network: "eth", Address: "0x01"},
		&record{Network: "eth", Address: "0x01"})
	assert.NoError(t, err)
	assert.False(t, saved)
	assert.Equal(t, id, v.ID)

	count, err := r.Count(ctx, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
