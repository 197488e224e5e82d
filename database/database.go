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
	"fmt"
	"net/url"

	"github.com/glebarez/sqlite"
	"github.com/icon-project/btp2/common/errors"
	"github.com/icon-project/btp2/common/log"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	DriverMysql    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	DefaultSQLiteDBName = "binder.db"
)

// Config selects the driver for deployment records. Zero value is a
// SQLite file named DefaultSQLiteDBName.
type Config struct {
	Driver   string `json:"driver"`
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`
	Host     string `json:"host,omitempty"`
	Port     uint   `json:"port,omitempty"`
	DBName   string `json:"dbname"`
}

var zeroDefaultDatetimePrecision = 0

func (c Config) dialector() (gorm.Dialector, error) {
	switch c.Driver {
	case DriverMysql:
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True",
			c.User, c.Password, c.Host, c.Port, c.DBName)
		return mysql.New(mysql.Config{
			DSN:                      dsn,
			DefaultStringSize:        256,
			DisableDatetimePrecision: true,
			DefaultDatetimePrecision: &zeroDefaultDatetimePrecision,
			DontSupportRenameIndex:   true,
			DontSupportRenameColumn:  true,
		}), nil
	case DriverPostgres:
		dsn := fmt.Sprintf("user=%s password=%s host=%s port=%d dbname=%s sslmode=disable",
			c.User, c.Password, c.Host, c.Port, c.DBName)
		return postgres.Open(dsn), nil
	case DriverSQLite, "":
		name := c.DBName
		if len(name) == 0 {
			name = DefaultSQLiteDBName
		}
		dsn := "file:" + name
		if len(c.User) > 0 {
			q := url.Values{}
			q.Set("_auth_user", c.User)
			q.Set("_auth_pass", c.Password)
			dsn = dsn + "?_auth&" + q.Encode()
		}
		return sqlite.Open(dsn), nil
	default:
		return nil, errors.Errorf("not support db type:%s", c.Driver)
	}
}

func OpenDatabase(cfg Config, l log.Logger) (*gorm.DB, error) {
	d, err := cfg.dialector()
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(d, &gorm.Config{
		Logger: newLogger(l.WithFields(log.Fields{log.FieldKeyModule: "database"})),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fail to Open driver:%s err:%s", cfg.Driver, err.Error())
	}
	if cfg.Driver == DriverSQLite || len(cfg.Driver) == 0 {
		// in-memory databases are per connection
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.Wrapf(err, "fail to DB err:%s", err.Error())
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}
