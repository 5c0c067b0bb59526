/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"context"
	"database/sql"
	"strings"

	"github.com/blnkfinance/quakevault/config"
	"github.com/blnkfinance/quakevault/internal/apierror"
	"github.com/blnkfinance/quakevault/model"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// NewDataSource opens the vault store selected by the data source DSN.
// A postgres:// DSN selects Postgres; anything else is a directory for the JSON file store.
// An unusable store is reported here so the process can refuse to start.
func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	dns := configuration.DataSource.Dns
	if IsPostgresDSN(dns) {
		con, err := ConnectDB(dns)
		if err != nil {
			return nil, err
		}
		return NewPostgresStore(con), nil
	}

	dir := strings.TrimPrefix(dns, "file://")
	if dir == "" {
		dir = config.DEFAULT_DATA_DIR
	}
	return NewFileStore(dir)
}

func IsPostgresDSN(dns string) bool {
	return strings.HasPrefix(dns, "postgres://") || strings.HasPrefix(dns, "postgresql://")
}

// ConnectDB opens and pings a Postgres connection. The schema is managed by
// the migrate command.
func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		logrus.WithError(err).Error("database connection error")
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func vaultNotFound(id int64) error {
	return apierror.NewAPIError(apierror.ErrNotFound, "Vault not found", errors.Wrapf(model.ErrVaultNotFound, "vault %d", id))
}

func noActiveVault() error {
	return apierror.NewAPIError(apierror.ErrNotFound, "No vault has been created yet", model.ErrNoActiveVault)
}

// Snapshot renders the content of any store in the persisted document layout.
func Snapshot(ctx context.Context, ds IDataSource) (*model.VaultStore, error) {
	vaults, err := ds.GetAllVaults(ctx)
	if err != nil {
		return nil, err
	}
	store := model.NewVaultStore()
	store.Vaults = vaults
	store.Normalize()
	return store, nil
}
