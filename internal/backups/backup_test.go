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

package backups

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/blnkfinance/quakevault/config"
	"github.com/blnkfinance/quakevault/database"
	"github.com/blnkfinance/quakevault/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = params
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func seededStore(t *testing.T) database.IDataSource {
	fs, err := database.NewFileStore(t.TempDir())
	require.NoError(t, err)
	_, err = fs.CreateVault(context.Background(), model.CreateVault{
		Threshold:     decimal.RequireFromString("6"),
		MaxDonation:   decimal.RequireFromString("10"),
		DepositAmount: decimal.RequireFromString("100"),
		Recipient:     "0xrelief",
	})
	require.NoError(t, err)
	return fs
}

func TestKey(t *testing.T) {
	b := NewS3BackupWithClient(&fakePutter{}, "bucket", "quakevault")
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	assert.Equal(t, "quakevault/2024-03-09/vaults-140507.json", b.Key(at))
}

func TestUploadWritesSnapshot(t *testing.T) {
	putter := &fakePutter{}
	b := NewS3BackupWithClient(putter, "snapshots", "quakevault")
	b.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	key, err := b.Upload(context.Background(), seededStore(t))
	require.NoError(t, err)
	assert.Equal(t, "quakevault/2024-01-02/vaults-030405.json", key)
	assert.Equal(t, "snapshots", *putter.input.Bucket)
	assert.Equal(t, key, *putter.input.Key)
	assert.Equal(t, "application/json", *putter.input.ContentType)

	var snapshot model.VaultStore
	require.NoError(t, json.Unmarshal(putter.body, &snapshot))
	require.Len(t, snapshot.Vaults, 1)
	assert.Equal(t, "0xrelief", snapshot.Vaults[0].Recipient)
}

func TestUploadFailure(t *testing.T) {
	b := NewS3BackupWithClient(&fakePutter{err: errors.New("access denied")}, "snapshots", "quakevault")
	_, err := b.Upload(context.Background(), seededStore(t))
	assert.ErrorContains(t, err, "access denied")
}

func TestNewS3BackupRequiresBucket(t *testing.T) {
	_, err := NewS3Backup(context.Background(), "quakevault", config.BackupConfig{})
	assert.Error(t, err)
}

func TestNewS3BackupCustomEndpoint(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		method, path = r.Method, r.URL.Path
		mu.Unlock()
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	b, err := NewS3Backup(context.Background(), "quakevault", config.BackupConfig{
		S3Endpoint:         server.URL,
		S3BucketName:       "snapshots",
		S3Region:           "eu-west-1",
		AwsAccessKeyId:     "test",
		AwsSecretAccessKey: "secret",
	})
	require.NoError(t, err)
	b.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	key, err := b.Upload(context.Background(), seededStore(t))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/snapshots/"+key, path)
}
