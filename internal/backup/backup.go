// Package backup keeps snapshots of the contact book in an S3-compatible
// bucket (AWS S3 or MinIO).
//
// A snapshot is one YAML document per contact, in the same format as
// `ct export`, stored under <prefix>/<snapshot>/<contactId>.yaml. Snapshot
// names are UTC timestamps, so they sort chronologically.
package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/steveyegge/contacts/internal/contact"
)

// SnapshotLayout is the layout of snapshot names.
const SnapshotLayout = "20060102T150405Z"

// Config holds the bucket location. Credentials fall back to the default AWS
// chain (environment, shared config, instance role) when not set.
type Config struct {
	Bucket          string
	Prefix          string
	Region          string // default us-east-1
	Endpoint        string // optional, e.g. a MinIO URL
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string
}

// Store reads and writes snapshots in one bucket.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// New creates a Store from cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("backup bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewWithClient wraps an existing S3 client.
func NewWithClient(client *s3.Client, bucket, prefix string) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// Bucket returns the bucket name.
func (s *Store) Bucket() string { return s.bucket }

func (s *Store) key(parts ...string) string {
	if s.prefix != "" {
		parts = append([]string{s.prefix}, parts...)
	}
	return path.Join(parts...)
}

// Push uploads every contact as a new snapshot taken at now and returns the
// snapshot name.
func (s *Store) Push(ctx context.Context, contacts []*contact.Contact, now time.Time) (string, error) {
	snapshot := now.UTC().Format(SnapshotLayout)
	for _, c := range contacts {
		data, err := contact.Export(c)
		if err != nil {
			return snapshot, err
		}
		key := s.key(snapshot, c.ContactID+".yaml")
		_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      &s.bucket,
			Key:         &key,
			Body:        bytes.NewReader(data),
			ContentType: aws.String("application/yaml"),
		})
		if err != nil {
			return snapshot, fmt.Errorf("failed to upload %s: %w", key, err)
		}
	}
	return snapshot, nil
}

// Snapshots lists snapshot names, oldest first.
func (s *Store) Snapshots(ctx context.Context) ([]string, error) {
	prefix := ""
	if s.prefix != "" {
		prefix = s.prefix + "/"
	}

	var names []string
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &s.bucket,
			Prefix:            &prefix,
			Delimiter:         aws.String("/"),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list snapshots: %w", err)
		}
		for _, p := range out.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(p.Prefix), prefix), "/")
			if _, err := time.Parse(SnapshotLayout, name); err == nil {
				names = append(names, name)
			}
		}
		if aws.ToBool(out.IsTruncated) && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		break
	}
	sort.Strings(names)
	return names, nil
}

// Latest returns the newest snapshot name.
func (s *Store) Latest(ctx context.Context) (string, error) {
	names, err := s.Snapshots(ctx)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no snapshots in s3://%s/%s", s.bucket, s.prefix)
	}
	return names[len(names)-1], nil
}

// Documents downloads and parses every document of a snapshot, ordered by
// key.
func (s *Store) Documents(ctx context.Context, snapshot string) ([]contact.Document, error) {
	prefix := s.key(snapshot) + "/"

	var keys []string
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &s.bucket,
			Prefix:            &prefix,
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list snapshot %s: %w", snapshot, err)
		}
		for _, obj := range out.Contents {
			if k := aws.ToString(obj.Key); strings.HasSuffix(k, ".yaml") {
				keys = append(keys, k)
			}
		}
		if aws.ToBool(out.IsTruncated) && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		break
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("snapshot %s is empty or missing", snapshot)
	}
	sort.Strings(keys)

	docs := make([]contact.Document, 0, len(keys))
	for _, key := range keys {
		doc, err := s.document(ctx, key)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *Store) document(ctx context.Context, key string) (contact.Document, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	doc, err := contact.ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return doc, nil
}
