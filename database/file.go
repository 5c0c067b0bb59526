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
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/blnkfinance/quakevault/internal/apierror"
	"github.com/blnkfinance/quakevault/model"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
)

// StoreFileName is the name of the JSON document inside the data directory.
const StoreFileName = "vaults.json"

var tracer = otel.Tracer("quakevault.database")

// FileStore keeps every vault in a single JSON document. The document is read
// before every operation and replaced atomically after every mutation.
// One process is expected to write a given directory.
type FileStore struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewFileStore ensures dir exists and that any existing store in it is readable.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create data directory %s", dir)
	}
	fs := &FileStore{path: filepath.Join(dir, StoreFileName), now: time.Now}
	if _, err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

// Path returns the location of the store document.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) load() (*model.VaultStore, error) {
	content, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return model.NewVaultStore(), nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read vault store %s", f.path)
	}

	store := model.NewVaultStore()
	if len(content) == 0 {
		return store, nil
	}
	if err := json.Unmarshal(content, store); err != nil {
		return nil, errors.Wrapf(err, "decode vault store %s", f.path)
	}
	store.Normalize()
	return store, nil
}

// save writes to a temporary file in the same directory and renames it over
// the store, so readers observe either the old or the new document.
func (f *FileStore) save(store *model.VaultStore) error {
	content, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode vault store")
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), StoreFileName+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temporary store file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write temporary store file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "sync temporary store file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temporary store file")
	}
	return errors.Wrap(os.Rename(tmpPath, f.path), "replace vault store")
}

// mutate runs fn against the freshly loaded store and persists the result
// when fn reports a change.
func (f *FileStore) mutate(fn func(store *model.VaultStore) (bool, error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	store, err := f.load()
	if err != nil {
		return storeError(err)
	}
	changed, err := fn(store)
	if err != nil || !changed {
		return err
	}
	if err := f.save(store); err != nil {
		return storeError(err)
	}
	return nil
}

func (f *FileStore) read() (*model.VaultStore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	store, err := f.load()
	if err != nil {
		return nil, storeError(err)
	}
	return store, nil
}

func storeError(err error) error {
	return apierror.NewAPIError(apierror.ErrInternalServer, "Vault store is unavailable", err)
}

func (f *FileStore) CreateVault(ctx context.Context, params model.CreateVault) (model.Vault, error) {
	_, span := tracer.Start(ctx, "FileStore.CreateVault")
	defer span.End()

	var created model.Vault
	err := f.mutate(func(store *model.VaultStore) (bool, error) {
		created = store.Append(params, f.now())
		return true, nil
	})
	if err != nil {
		span.RecordError(err)
		return model.Vault{}, err
	}
	return created, nil
}

func (f *FileStore) GetAllVaults(ctx context.Context) ([]model.Vault, error) {
	_, span := tracer.Start(ctx, "FileStore.GetAllVaults")
	defer span.End()

	store, err := f.read()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	vaults := make([]model.Vault, 0, len(store.Vaults))
	for _, v := range store.Vaults {
		vaults = append(vaults, v.Clone())
	}
	return vaults, nil
}

func (f *FileStore) GetVaultByID(ctx context.Context, id int64) (*model.Vault, error) {
	_, span := tracer.Start(ctx, "FileStore.GetVaultByID")
	defer span.End()

	store, err := f.read()
	if err != nil {
		return nil, err
	}
	v := store.Find(id)
	if v == nil {
		return nil, vaultNotFound(id)
	}
	vault := v.Clone()
	return &vault, nil
}

func (f *FileStore) GetLatestVault(ctx context.Context) (*model.Vault, error) {
	_, span := tracer.Start(ctx, "FileStore.GetLatestVault")
	defer span.End()

	store, err := f.read()
	if err != nil {
		return nil, err
	}
	v := store.Latest()
	if v == nil {
		return nil, noActiveVault()
	}
	vault := v.Clone()
	return &vault, nil
}

func (f *FileStore) AppendDonation(ctx context.Context, vaultID int64, req model.DonationRequest) (*model.Donation, model.Vault, error) {
	_, span := tracer.Start(ctx, "FileStore.AppendDonation")
	defer span.End()

	var (
		donation *model.Donation
		updated  model.Vault
	)
	err := f.mutate(func(store *model.VaultStore) (bool, error) {
		v := store.Find(vaultID)
		if v == nil {
			return false, vaultNotFound(vaultID)
		}
		donation = v.ApplyDonation(req, f.now())
		updated = v.Clone()
		return donation != nil, nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, model.Vault{}, err
	}
	return donation, updated, nil
}

func (f *FileStore) ClearStore(ctx context.Context) error {
	return f.mutate(func(store *model.VaultStore) (bool, error) {
		*store = *model.NewVaultStore()
		return true, nil
	})
}

func (f *FileStore) Close() error {
	return nil
}
