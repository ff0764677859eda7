// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-lifecycle.
//
// go-lifecycle is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package s3 implements the provider contract against the AWS S3 bucket
// lifecycle configuration API. Setting a custom endpoint makes it work
// against any S3-compatible store (MinIO, Ceph RGW, etc).
package s3

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/time/rate"

	"github.com/jeremyhahn/go-lifecycle/pkg/policy"
	"github.com/jeremyhahn/go-lifecycle/pkg/provider"
)

var (
	// ErrRegionNotSet is returned when the required region is not set.
	ErrRegionNotSet = errors.New("region not set")
)

const (
	defaultTimeout   = 30 * time.Second
	defaultRateLimit = 10 // provider calls per second
	defaultBurst     = 20
)

// S3 talks to the bucket lifecycle configuration API of S3 or an
// S3-compatible endpoint. It implements provider.Provider and
// provider.KeyLister.
type S3 struct {
	svc     *awss3.Client
	timeout time.Duration
	limiter *rate.Limiter
}

// New creates an unconfigured S3 provider.
func New() *S3 {
	return &S3{}
}

// Configure sets up the provider with the necessary settings.
//
// Supported settings: region (required), endpoint, accessKey, secretKey,
// usePathStyle ("true" for most S3-compatible stores), timeout (Go duration).
func (s *S3) Configure(settings map[string]string) error {
	region := settings["region"]
	if region == "" {
		return ErrRegionNotSet
	}

	ctx := context.Background()
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}

	if accessKey, secretKey := settings["accessKey"], settings["secretKey"]; accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return err
	}

	s.svc = awss3.NewFromConfig(cfg, func(o *awss3.Options) {
		if endpoint := settings["endpoint"]; endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		if settings["usePathStyle"] == "true" {
			o.UsePathStyle = true
		}
	})

	s.timeout = defaultTimeout
	if raw := settings["timeout"]; raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", raw, err)
		}
		s.timeout = timeout
	}

	s.limiter = rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst)
	return nil
}

// GetConfiguration fetches the bucket's lifecycle configuration. A bucket
// with no lifecycle configuration yields an empty State.
func (s *S3) GetConfiguration(ctx context.Context, target policy.Target) (*provider.State, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrTransient, err)
	}

	out, err := s.svc.GetBucketLifecycleConfiguration(ctx, &awss3.GetBucketLifecycleConfigurationInput{
		Bucket: aws.String(target.Bucket()),
	})
	if err != nil {
		if isNoSuchLifecycleConfiguration(err) {
			return &provider.State{Raw: map[string]any{}}, nil
		}
		return nil, classify(err)
	}

	state := &provider.State{
		Rules: make([]policy.Rule, 0, len(out.Rules)),
		Raw:   make(map[string]any, len(out.Rules)),
	}
	for _, rule := range out.Rules {
		mapped := fromLifecycleRule(rule)
		state.Rules = append(state.Rules, mapped)
		state.Raw[mapped.ID] = rule
	}
	return state, nil
}

// PutConfiguration replaces the bucket's lifecycle configuration with the
// desired rules. Rules whose provider-native payload from prior still
// matches the desired state are submitted as fetched, so provider fields
// outside the declared model are never stripped on update. An empty
// desired list deletes the configuration entirely.
func (s *S3) PutConfiguration(ctx context.Context, target policy.Target, desired []policy.Rule, prior *provider.State) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", provider.ErrTransient, err)
	}

	if len(desired) == 0 {
		_, err := s.svc.DeleteBucketLifecycle(ctx, &awss3.DeleteBucketLifecycleInput{
			Bucket: aws.String(target.Bucket()),
		})
		if err != nil {
			return classify(err)
		}
		return nil
	}

	rules := make([]types.LifecycleRule, 0, len(desired))
	for _, r := range desired {
		if prior != nil {
			if raw, ok := prior.Raw[r.ID].(types.LifecycleRule); ok && fromLifecycleRule(raw).Equivalent(r) {
				rules = append(rules, raw)
				continue
			}
		}
		rules = append(rules, toLifecycleRule(r))
	}

	_, err := s.svc.PutBucketLifecycleConfiguration(ctx, &awss3.PutBucketLifecycleConfigurationInput{
		Bucket: aws.String(target.Bucket()),
		LifecycleConfiguration: &types.BucketLifecycleConfiguration{
			Rules: rules,
		},
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

// ListKeys returns up to max object keys under the prefix, used to sample
// the objects a rule change is about to affect.
func (s *S3) ListKeys(ctx context.Context, target policy.Target, prefix string, max int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrTransient, err)
	}

	input := &awss3.ListObjectsV2Input{
		Bucket: aws.String(target.Bucket()),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}
	if max > 0 {
		input.MaxKeys = aws.Int32(int32(max)) // #nosec G115 -- max is a small sample size
	}

	out, err := s.svc.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, classify(err)
	}

	keys := make([]string, 0, len(out.Contents))
	for _, obj := range out.Contents {
		if obj.Key != nil {
			keys = append(keys, *obj.Key)
		}
	}
	return keys, nil
}
