package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"polysynergy/file-manager/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsCfg "github.com/aws/aws-sdk-go-v2/config" // Alias config to avoid clash
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
)

// Observer receives one call per store operation.
type Observer interface {
	Observe(op string, bytes int64, err error, dur time.Duration)
}

type nopObserver struct{}

func (nopObserver) Observe(string, int64, error, time.Duration) {}

// S3Storage implements ObjectStore on top of an S3-compatible backend.
// One instance is created per process and shared by every request.
type S3Storage struct {
	client        *s3.Client        // Regular client for object operations
	presignClient *s3.PresignClient // Special client for generating presigned URLs
	region        string
	timeout       time.Duration
	observer      Observer
	log           zerolog.Logger
}

// NewS3Storage creates the shared S3 client. Transient failures are retried
// by the SDK's standard retryer with bounded exponential backoff.
func NewS3Storage(ctx context.Context, cfg config.S3Config, observer Observer, log zerolog.Logger) (*S3Storage, error) {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = retry.DefaultMaxAttempts
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = retry.DefaultMaxBackoff
	}

	opts := []func(*awsCfg.LoadOptions) error{
		awsCfg.WithRegion(cfg.Region),
		awsCfg.WithRetryer(func() aws.Retryer {
			return retry.NewStandard(func(o *retry.StandardOptions) {
				o.MaxAttempts = maxAttempts
				o.MaxBackoff = maxBackoff
			})
		}),
	}
	// Static keys when configured, otherwise the default chain (env, profile, IAM role).
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsCfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsSDKConfig, err := awsCfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsSDKConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			// S3-compatible services like MinIO
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	if observer == nil {
		observer = nopObserver{}
	}
	timeout := cfg.OperationTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	log.Info().Str("endpoint", cfg.Endpoint).Str("region", cfg.Region).
		Int("max_attempts", maxAttempts).Msg("S3 storage initialized")

	return &S3Storage{
		client:        s3Client,
		presignClient: s3.NewPresignClient(s3Client),
		region:        cfg.Region,
		timeout:       timeout,
		observer:      observer,
		log:           log,
	}, nil
}

func (s *S3Storage) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *S3Storage) done(op string, n int64, start time.Time, err error) {
	s.observer.Observe(op, n, err, time.Since(start))
}

// regionOpt overrides the client region for objects living elsewhere.
func (s *S3Storage) regionOpt(region string) []func(*s3.Options) {
	if region == "" || region == s.region {
		return nil
	}
	return []func(*s3.Options){func(o *s3.Options) { o.Region = region }}
}

// Put uploads body under ref.
func (s *S3Storage) Put(ctx context.Context, ref Ref, body []byte, opts PutOptions) (attrs *ObjectAttrs, err error) {
	start := time.Now()
	defer func() { s.done("put", int64(len(body)), start, err) }()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	input := &s3.PutObjectInput{
		Bucket:        aws.String(ref.Bucket),
		Key:           aws.String(ref.Key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if opts.ACL != "" {
		input.ACL = types.ObjectCannedACL(opts.ACL)
	}
	if len(opts.Metadata) > 0 {
		input.Metadata = opts.Metadata
	}

	out, err := s.client.PutObject(ctx, input, s.regionOpt(ref.Region)...)
	if err != nil {
		return nil, wrapErr("put", ref, err)
	}

	attrs = &ObjectAttrs{
		Key:          ref.Key,
		Size:         int64(len(body)),
		ContentType:  opts.ContentType,
		LastModified: time.Now().UTC(),
		Metadata:     opts.Metadata,
	}
	if out.ETag != nil {
		attrs.ETag = *out.ETag
	}
	return attrs, nil
}

// Get opens the object payload.
func (s *S3Storage) Get(ctx context.Context, ref Ref) (rc io.ReadCloser, attrs *ObjectAttrs, err error) {
	start := time.Now()
	defer func() { s.done("get", 0, start, err) }()

	// No timeout here: the deadline would cut the body stream short.
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	}, s.regionOpt(ref.Region)...)
	if err != nil {
		return nil, nil, wrapErr("get", ref, err)
	}

	attrs = &ObjectAttrs{
		Key:          ref.Key,
		Size:         aws.ToInt64(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		ETag:         aws.ToString(out.ETag),
		LastModified: aws.ToTime(out.LastModified),
		Metadata:     out.Metadata,
	}
	return out.Body, attrs, nil
}

// Head retrieves object metadata without the payload.
func (s *S3Storage) Head(ctx context.Context, ref Ref) (attrs *ObjectAttrs, err error) {
	start := time.Now()
	defer func() { s.done("head", 0, start, err) }()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	}, s.regionOpt(ref.Region)...)
	if err != nil {
		return nil, wrapErr("head", ref, err)
	}

	return &ObjectAttrs{
		Key:          ref.Key,
		Size:         aws.ToInt64(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		ETag:         aws.ToString(out.ETag),
		LastModified: aws.ToTime(out.LastModified),
		Metadata:     out.Metadata,
	}, nil
}

// Delete removes an object. S3 reports success for absent keys.
func (s *S3Storage) Delete(ctx context.Context, ref Ref) (err error) {
	start := time.Now()
	defer func() { s.done("delete", 0, start, err) }()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	}, s.regionOpt(ref.Region)...)
	if err != nil {
		err = wrapErr("delete", ref, err)
		if errors.Is(err, ErrObjectNotFound) {
			return nil
		}
		return err
	}
	return nil
}

// DeleteMany issues a single quiet multi-object delete.
func (s *S3Storage) DeleteMany(ctx context.Context, bucket string, keys []string) (err error) {
	if len(keys) == 0 {
		return nil
	}
	if len(keys) > MaxKeysPerRequest {
		return fmt.Errorf("delete of %d keys exceeds the %d key limit", len(keys), MaxKeysPerRequest)
	}
	start := time.Now()
	defer func() { s.done("delete_many", 0, start, err) }()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	objects := make([]types.ObjectIdentifier, len(keys))
	for i, k := range keys {
		objects[i] = types.ObjectIdentifier{Key: aws.String(k)}
	}
	out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(bucket),
		Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
	})
	if err != nil {
		return wrapErr("delete_many", Ref{Bucket: bucket}, err)
	}
	for _, e := range out.Errors {
		code := aws.ToString(e.Code)
		if code == "NoSuchKey" {
			continue
		}
		return fmt.Errorf("s3 delete_many %s/%s: %s: %s", bucket, aws.ToString(e.Key), code, aws.ToString(e.Message))
	}
	return nil
}

// List returns one ListObjectsV2 page.
func (s *S3Storage) List(ctx context.Context, bucket string, in ListInput) (page *ListPage, err error) {
	start := time.Now()
	defer func() { s.done("list", 0, start, err) }()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	maxKeys := in.MaxKeys
	if maxKeys <= 0 || maxKeys > MaxKeysPerRequest {
		maxKeys = MaxKeysPerRequest
	}
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		MaxKeys: aws.Int32(int32(maxKeys)),
	}
	if in.Prefix != "" {
		input.Prefix = aws.String(in.Prefix)
	}
	if in.Delimiter != "" {
		input.Delimiter = aws.String(in.Delimiter)
	}
	if in.ContinuationToken != "" {
		input.ContinuationToken = aws.String(in.ContinuationToken)
	}

	out, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, wrapErr("list", Ref{Bucket: bucket, Key: in.Prefix}, err)
	}

	page = &ListPage{
		IsTruncated:           aws.ToBool(out.IsTruncated),
		NextContinuationToken: aws.ToString(out.NextContinuationToken),
	}
	for _, obj := range out.Contents {
		page.Objects = append(page.Objects, ObjectAttrs{
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			ETag:         aws.ToString(obj.ETag),
			LastModified: aws.ToTime(obj.LastModified),
		})
	}
	for _, cp := range out.CommonPrefixes {
		page.CommonPrefixes = append(page.CommonPrefixes, aws.ToString(cp.Prefix))
	}
	return page, nil
}

// Copy performs a server-side copy and reports the destination attributes.
func (s *S3Storage) Copy(ctx context.Context, src, dst Ref, opts CopyOptions) (attrs *ObjectAttrs, err error) {
	start := time.Now()
	defer func() { s.done("copy", 0, start, err) }()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	input := &s3.CopyObjectInput{
		Bucket:            aws.String(dst.Bucket),
		Key:               aws.String(dst.Key),
		CopySource:        aws.String(copySource(src)),
		MetadataDirective: types.MetadataDirectiveCopy,
	}
	if opts.Metadata != nil {
		// REPLACE drops the stored content type too, so it is sent again.
		input.MetadataDirective = types.MetadataDirectiveReplace
		input.Metadata = opts.Metadata
		if opts.ContentType != "" {
			input.ContentType = aws.String(opts.ContentType)
		}
	}
	if opts.ACL != "" {
		input.ACL = types.ObjectCannedACL(opts.ACL)
	}
	out, err := s.client.CopyObject(ctx, input, s.regionOpt(dst.Region)...)
	if err != nil {
		return nil, wrapErr("copy", src, err)
	}

	attrs = &ObjectAttrs{Key: dst.Key}
	if out.CopyObjectResult != nil {
		attrs.ETag = aws.ToString(out.CopyObjectResult.ETag)
		attrs.LastModified = aws.ToTime(out.CopyObjectResult.LastModified)
	}
	return attrs, nil
}

// Presign creates a temporary URL for downloading (GET).
func (s *S3Storage) Presign(ctx context.Context, ref Ref, ttl time.Duration) (u string, err error) {
	start := time.Now()
	defer func() { s.done("presign", 0, start, err) }()

	optFns := []func(*s3.PresignOptions){s3.WithPresignExpires(ClampExpiry(ttl))}
	if clientOpts := s.regionOpt(ref.Region); clientOpts != nil {
		optFns = append(optFns, s3.WithPresignClientFromClientOptions(clientOpts...))
	}

	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	}, optFns...)
	if err != nil {
		return "", wrapErr("presign", ref, err)
	}
	return req.URL, nil
}

// HeadBucket probes the bucket; it never mutates anything.
func (s *S3Storage) HeadBucket(ctx context.Context, bucket string) (err error) {
	start := time.Now()
	defer func() { s.done("head_bucket", 0, start, err) }()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err = s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err != nil {
		err = wrapErr("head_bucket", Ref{Bucket: bucket}, err)
		if errors.Is(err, ErrObjectNotFound) {
			// HeadBucket reports a missing bucket as a bare 404.
			return fmt.Errorf("%w: %s", ErrBucketNotFound, bucket)
		}
		return err
	}
	return nil
}

// EnsureBucket creates bucket in the client's region unless it already
// exists, then applies the browser CORS rule to it either way.
func (s *S3Storage) EnsureBucket(ctx context.Context, bucket string) error {
	err := s.HeadBucket(ctx, bucket)
	switch {
	case err == nil:
	case errors.Is(err, ErrBucketNotFound):
		if err := s.createBucket(ctx, bucket); err != nil {
			return err
		}
	default:
		return err
	}
	s.applyCORS(ctx, bucket)
	return nil
}

func (s *S3Storage) createBucket(ctx context.Context, bucket string) (err error) {
	start := time.Now()
	defer func() { s.done("create_bucket", 0, start, err) }()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	input := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	if s.region != "" && s.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}
	_, err = s.client.CreateBucket(ctx, input)
	var owned *types.BucketAlreadyOwnedByYou
	if errors.As(err, &owned) {
		err = nil
	}
	if err != nil {
		s.log.Error().Err(err).Str("bucket", bucket).Msg("failed to create bucket")
		return wrapErr("create_bucket", Ref{Bucket: bucket}, err)
	}
	s.log.Info().Str("bucket", bucket).Msg("created bucket")
	return nil
}

// BucketCORS lets browsers fetch presigned URLs and upload from any origin.
func BucketCORS() *types.CORSConfiguration {
	return &types.CORSConfiguration{
		CORSRules: []types.CORSRule{{
			AllowedHeaders: []string{"*"},
			AllowedMethods: []string{"GET", "HEAD", "POST", "PUT"},
			AllowedOrigins: []string{"*"},
			ExposeHeaders:  []string{"ETag"},
			MaxAgeSeconds:  aws.Int32(3000),
		}},
	}
}

// applyCORS only warns on failure; many S3-compatible stores reject it.
func (s *S3Storage) applyCORS(ctx context.Context, bucket string) {
	var err error
	start := time.Now()
	defer func() { s.done("put_bucket_cors", 0, start, err) }()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err = s.client.PutBucketCors(ctx, &s3.PutBucketCorsInput{
		Bucket:            aws.String(bucket),
		CORSConfiguration: BucketCORS(),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("bucket", bucket).Msg("failed to set bucket CORS")
	}
}

// CheckCredentials resolves credentials once through the provider chain.
func (s *S3Storage) CheckCredentials(ctx context.Context) error {
	provider := s.client.Options().Credentials
	if provider == nil {
		return ErrCredentialsUnavailable
	}
	creds, err := provider.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCredentialsUnavailable, err)
	}
	if !creds.HasKeys() {
		return ErrCredentialsUnavailable
	}
	return nil
}

// copySource escapes every key segment but keeps the separators.
func copySource(src Ref) string {
	segs := strings.Split(src.Key, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return src.Bucket + "/" + strings.Join(segs, "/")
}

// wrapErr translates SDK errors into the package sentinels, keeping the
// original error in the chain.
func wrapErr(op string, ref Ref, err error) error {
	target := ref.Bucket + "/" + ref.Key
	if sentinel := classify(err); sentinel != nil {
		return fmt.Errorf("s3 %s %s: %w: %w", op, target, sentinel, err)
	}
	return fmt.Errorf("s3 %s %s: %w", op, target, err)
}

func classify(err error) error {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	switch {
	case errors.As(err, &noSuchKey), errors.As(err, &notFound):
		return ErrObjectNotFound
	case errors.As(err, &noSuchBucket):
		return ErrBucketNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "404":
			return ErrObjectNotFound
		case "NoSuchBucket":
			return ErrBucketNotFound
		case "AccessDenied", "Forbidden", "403":
			return ErrAccessDenied
		case "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken", "InvalidToken":
			return ErrCredentialsUnavailable
		}
	}
	return nil
}
