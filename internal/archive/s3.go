// Package archive keeps a copy of every accepted upload in S3-compatible storage.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/JonMunkholm/grades/internal/config"
	"github.com/JonMunkholm/grades/internal/core"
)

const contentType = "text/csv; charset=utf-8"

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver writes raw uploads under prefix/YYYY/MM/DD/<upload id>-<file name>.
type S3Archiver struct {
	client putObjectAPI
	bucket string
	prefix string
	now    func() time.Time
}

var _ core.Archiver = (*S3Archiver)(nil)

// New builds an archiver from cfg. Static credentials are used when both keys
// are set, otherwise the default AWS credential chain. optFns tweak the S3
// client (tests swap the HTTP transport).
func New(ctx context.Context, cfg config.ArchiveConfig, optFns ...func(*s3.Options)) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("archive: bucket required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}

	opts := append([]func(*s3.Options){func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}}, optFns...)

	return NewWithClient(s3.NewFromConfig(awsCfg, opts...), cfg.Bucket, cfg.Prefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client putObjectAPI, bucket, prefix string) *S3Archiver {
	return &S3Archiver{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		now:    time.Now,
	}
}

// Archive stores content and returns the object key.
func (a *S3Archiver) Archive(ctx context.Context, uploadID, fileName string, content []byte) (string, error) {
	key := Key(a.prefix, a.now().UTC(), uploadID, fileName)

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
		Metadata:    map[string]string{"upload-id": uploadID},
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", a.bucket, key, err)
	}
	return key, nil
}

// Key builds the object key for an upload received at t.
func Key(prefix string, t time.Time, uploadID, fileName string) string {
	return path.Join(prefix, t.Format("2006/01/02"), uploadID+"-"+sanitize(fileName))
}

// sanitize keeps the base name with letters, digits, dots, dashes and
// underscores; anything else becomes an underscore.
func sanitize(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "upload.csv"
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, name)
}
