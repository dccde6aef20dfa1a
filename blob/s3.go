// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// maxObjectSize caps the size of a firmware object. SMI2021 images are a few
// tens of kilobytes.
const maxObjectSize = 1 << 20

// S3 is a Store fetching firmware objects from a S3 bucket.
type S3 struct {
	client *s3.Client
	bucket string
	prefix string
	// anonymous is set when the bucket is accessed without credentials.
	anonymous bool
}

// NewS3 returns a Store reading objects named prefix/<name> from bucket.
//
// Credentials come from the default AWS configuration chain. When none are
// available the bucket is accessed anonymously, which works for public
// firmware mirrors. Such buckets usually deny listing, so S3 answers
// AccessDenied instead of NoSuchKey for a missing object; anonymous stores
// treat both as the firmware being absent.
func NewS3(ctx context.Context, region, bucket, prefix string) (*S3, error) {
	if bucket == "" {
		return nil, errors.New("blob: bucket is required")
	}
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	anonymous := false
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		cfg = aws.Config{Region: region, Credentials: aws.AnonymousCredentials{}}
		anonymous = true
	} else if creds, err := cfg.Credentials.Retrieve(ctx); err != nil || creds.AccessKeyID == "" {
		cfg.Credentials = aws.AnonymousCredentials{}
		anonymous = true
	}
	return &S3{client: s3.NewFromConfig(cfg), bucket: bucket, prefix: prefix, anonymous: anonymous}, nil
}

func (s *S3) String() string {
	return "s3://" + path.Join(s.bucket, s.prefix)
}

// Load implements Store.
func (s *S3) Load(ctx context.Context, name string) ([]byte, error) {
	key := s.key(name)
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if s.missing(err) {
			return nil, &notExistError{store: s.String(), name: name}
		}
		return nil, fmt.Errorf("blob: get %s: %w", key, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxObjectSize+1))
	if err != nil {
		return nil, fmt.Errorf("blob: read %s: %w", key, err)
	}
	if len(b) > maxObjectSize {
		return nil, fmt.Errorf("blob: %s is larger than %d bytes", key, maxObjectSize)
	}
	return b, nil
}

// missing returns true when err means the object is not there.
func (s *S3) missing(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	return s.anonymous && errors.As(err, &apiErr) && apiErr.ErrorCode() == "AccessDenied"
}

func (s *S3) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

var _ Store = &S3{}
