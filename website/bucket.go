// Copyright 2016-2023, Pulumi Corporation.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package website

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	s3sdk "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pkg/errors"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/s3"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"golang.org/x/sync/errgroup"
)

// fallbackContentType is used when a file's extension is unrecognized.
const fallbackContentType = "text/plain"

// newOriginBucket creates the publicly readable bucket the website is
// served from, configured as an S3 website endpoint.
func newOriginBucket(ctx *pulumi.Context, name string, args *WebsiteArgs,
	parent pulumi.Resource) (*s3.Bucket, error) {

	bucket, err := s3.NewBucket(ctx, fmt.Sprintf("%s-bucket", name), &s3.BucketArgs{
		Acl: pulumi.String("public-read"),
		Website: &s3.BucketWebsiteArgs{
			IndexDocument: pulumi.String(args.IndexDocument),
			ErrorDocument: pulumi.String(args.ErrorDocument),
		},
	}, pulumi.Parent(parent))
	if err != nil {
		return nil, errors.Wrap(err, "creating origin bucket")
	}

	return bucket, nil
}

// objectStore is the slice of the S3 API the uploader needs.
type objectStore interface {
	Put(ctx context.Context, bucket, key, contentType string, body io.Reader) error
}

type s3ObjectStore struct {
	client *s3sdk.Client
}

func (s *s3ObjectStore) Put(ctx context.Context, bucket, key, contentType string, body io.Reader) error {
	_, err := s.client.PutObject(ctx, &s3sdk.PutObjectInput{
		Bucket:      awssdk.String(bucket),
		Key:         awssdk.String(key),
		Body:        body,
		ACL:         s3types.ObjectCannedACLPublicRead,
		ContentType: awssdk.String(contentType),
	})
	return err
}

// newObjectStore is a seam for tests.
var newObjectStore = func(ctx context.Context) (objectStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "loading AWS config")
	}
	return &s3ObjectStore{client: s3sdk.NewFromConfig(cfg)}, nil
}

// uploadSiteAssets pushes every file under root into the bucket once its
// name resolves. Uploads happen on every update that resolves the bucket
// name, but never during a preview: an upload has no meaningful dry-run
// representation. The returned output carries the number of files uploaded.
//
// Upload failures are deliberately non-fatal to the provisioning run: the
// first failure cancels the rest of the batch, already-uploaded objects are
// left in place, and the error is reported through the engine's log stream.
func uploadSiteAssets(ctx *pulumi.Context, site *Website, args *WebsiteArgs,
	bucket *s3.Bucket) pulumi.IntOutput {

	return bucket.Bucket.ApplyT(func(bucketName string) (int, error) {
		if ctx.DryRun() {
			logDebug(ctx, site, "preview: skipping asset upload")
			return 0, nil
		}

		files, err := listSiteFiles(args.SiteRoot)
		if err != nil {
			logWarn(ctx, site, fmt.Sprintf("enumerating site files: %v", err))
			return 0, nil
		}
		if len(files) == 0 {
			return 0, nil
		}

		logInfo(ctx, site, fmt.Sprintf("uploading %d files from %q to bucket %q", len(files), args.SiteRoot, bucketName))

		store, err := newObjectStore(context.Background())
		if err != nil {
			logError(ctx, site, fmt.Sprintf("creating S3 client: %v", err))
			return 0, nil
		}

		if err := putAll(store, bucketName, args.SiteRoot, files); err != nil {
			logError(ctx, site, fmt.Sprintf("uploading to bucket %q: %v", bucketName, err))
			return 0, nil
		}

		logInfo(ctx, site, fmt.Sprintf("uploaded %d files to bucket %q", len(files), bucketName))
		return len(files), nil
	}).(pulumi.IntOutput)
}

// listSiteFiles enumerates every regular file under root, returned as
// slash-separated paths relative to root, suitable as object keys.
func listSiteFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// putAll uploads all files concurrently, one request per file. The first
// failure cancels the remaining uploads; files already uploaded stay.
func putAll(store objectStore, bucket, root string, files []string) error {
	g, gctx := errgroup.WithContext(context.Background())

	for _, key := range files {
		key := key
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			f, err := os.Open(filepath.Join(root, filepath.FromSlash(key)))
			if err != nil {
				return errors.Wrapf(err, "opening %q", key)
			}
			defer f.Close()

			if err := store.Put(gctx, bucket, key, contentTypeFor(key), f); err != nil {
				return errors.Wrapf(err, "putting %q", key)
			}
			return nil
		})
	}

	return g.Wait()
}

func contentTypeFor(key string) string {
	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		return ct
	}
	return fallbackContentType
}
