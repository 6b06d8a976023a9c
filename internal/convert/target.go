// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of mzpeak-go.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mzpeak/mzpeak-go/pkg/schema"
)

// ShardTarget abstracts where finished shard archives land.
type ShardTarget interface {
	WriteFile(name string, data []byte) error
}

// FileTarget places shard archives in a local directory.
type FileTarget struct {
	path string
}

func NewFileTarget(path string) (*FileTarget, error) {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, fmt.Errorf("create target directory: %w", err)
	}
	return &FileTarget{path: path}, nil
}

func (ft *FileTarget) WriteFile(name string, data []byte) error {
	return os.WriteFile(filepath.Join(ft.path, name), data, 0o640)
}

// S3TargetConfig configures an S3-compatible object store target.
type S3TargetConfig struct {
	Endpoint     string
	Bucket       string
	Prefix       string
	AccessKey    string
	SecretKey    string
	Region       string
	UsePathStyle bool
}

// S3Target uploads shard archives to an S3-compatible object store.
type S3Target struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3Target(cfg S3TargetConfig) (*S3Target, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 target: empty bucket name")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("S3 target: load AWS config: %w", err)
	}

	opts := func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}

	client := s3.NewFromConfig(awsCfg, opts)
	return &S3Target{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (st *S3Target) WriteFile(name string, data []byte) error {
	key := name
	if st.prefix != "" {
		key = path.Join(st.prefix, name)
	}
	_, err := st.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket:      aws.String(st.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(schema.Mimetype),
	})
	if err != nil {
		return fmt.Errorf("S3 target: put object %q: %w", key, err)
	}
	return nil
}

// UploadShards copies finished shard archives to the target, keyed by
// their base names so the shard index stays visible downstream.
func UploadShards(target ShardTarget, shards []ShardStats) error {
	for _, shard := range shards {
		data, err := os.ReadFile(shard.Path)
		if err != nil {
			return fmt.Errorf("read shard %d: %w", shard.ShardID, err)
		}
		if err := target.WriteFile(filepath.Base(shard.Path), data); err != nil {
			return fmt.Errorf("upload shard %d: %w", shard.ShardID, err)
		}
	}
	return nil
}
