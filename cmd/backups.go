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

package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/blnkfinance/quakevault/internal/backups"
)

func backupCommands(app *quakevaultInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "back up the vault store",
	}

	cmd.AddCommand(backupToS3Commands(app))

	return cmd
}

func backupToS3Commands(app *quakevaultInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "s3",
		Short: "upload a JSON snapshot of every vault to S3",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			backup, err := backups.NewS3Backup(ctx, app.cnf.ProjectName, app.cnf.Backup)
			if err != nil {
				logrus.Error(err)
				return
			}

			key, err := backup.Upload(ctx, app.qv.DataSource())
			if err != nil {
				logrus.Error(err)
				return
			}
			fmt.Printf("Snapshot uploaded to s3://%s/%s\n", app.cnf.Backup.S3BucketName, key)
		},
	}

	return cmd
}
