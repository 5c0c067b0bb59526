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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/blnkfinance/quakevault/config"
	"github.com/blnkfinance/quakevault/database"
	"github.com/sirupsen/logrus"
)

const defaultRegion = "us-east-1"

// ObjectPutter is the part of the S3 client the backup needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Backup uploads JSON snapshots of the vault store to a bucket.
type S3Backup struct {
	client  ObjectPutter
	bucket  string
	project string
	now     func() time.Time
}

func NewS3Backup(ctx context.Context, project string, cnf config.BackupConfig) (*S3Backup, error) {
	if cnf.S3BucketName == "" {
		return nil, errors.New("s3 bucket name is required for backups")
	}
	region := cnf.S3Region
	if region == "" {
		region = defaultRegion
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
		awsconfig.WithRequestChecksumCalculation(aws.RequestChecksumCalculationWhenRequired),
	}
	if cnf.AwsAccessKeyId != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cnf.AwsAccessKeyId, cnf.AwsSecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cnf.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cnf.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3BackupWithClient(client, cnf.S3BucketName, project), nil
}

func NewS3BackupWithClient(client ObjectPutter, bucket, project string) *S3Backup {
	return &S3Backup{client: client, bucket: bucket, project: project, now: time.Now}
}

// Key names the object for a snapshot taken at t, grouped by day.
func (b *S3Backup) Key(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s/%s/vaults-%s.json", b.project, t.Format("2006-01-02"), t.Format("150405"))
}

// Upload writes the current store snapshot to the bucket and returns its key.
func (b *S3Backup) Upload(ctx context.Context, ds database.IDataSource) (string, error) {
	snapshot, err := database.Snapshot(ctx, ds)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", err
	}

	key := b.Key(b.now())
	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload snapshot to s3: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"bucket": b.bucket,
		"key":    key,
		"vaults": len(snapshot.Vaults),
		"bytes":  len(data),
	}).Info("vault snapshot uploaded")
	return key, nil
}
