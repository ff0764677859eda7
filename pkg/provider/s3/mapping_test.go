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

package s3

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-lifecycle/pkg/policy"
	"github.com/jeremyhahn/go-lifecycle/pkg/provider"
)

func TestToLifecycleRule(t *testing.T) {
	rule := policy.Rule{
		ID:     "archive-logs",
		Prefix: "logs/",
		Status: policy.StatusEnabled,
		Transitions: []policy.Transition{
			{AfterDays: 30, StorageClass: policy.StorageClassInfrequentAccess},
			{AfterDays: 90, StorageClass: policy.StorageClassArchive},
			{AfterDays: 365, StorageClass: policy.StorageClassDeepArchive},
		},
		Expiration: &policy.Expiration{AfterDays: 3650},
	}

	mapped := toLifecycleRule(rule)

	assert.Equal(t, "archive-logs", aws.ToString(mapped.ID))
	assert.Equal(t, types.ExpirationStatusEnabled, mapped.Status)
	require.NotNil(t, mapped.Filter)
	assert.Equal(t, "logs/", aws.ToString(mapped.Filter.Prefix))

	require.Len(t, mapped.Transitions, 3)
	assert.Equal(t, int32(30), aws.ToInt32(mapped.Transitions[0].Days))
	assert.Equal(t, types.TransitionStorageClassStandardIa, mapped.Transitions[0].StorageClass)
	assert.Equal(t, types.TransitionStorageClassGlacier, mapped.Transitions[1].StorageClass)
	assert.Equal(t, types.TransitionStorageClassDeepArchive, mapped.Transitions[2].StorageClass)

	require.NotNil(t, mapped.Expiration)
	assert.Equal(t, int32(3650), aws.ToInt32(mapped.Expiration.Days))
}

func TestLifecycleRule_RoundTrip(t *testing.T) {
	original := policy.Rule{
		ID:     "r1",
		Prefix: "data/",
		Status: policy.StatusDisabled,
		Transitions: []policy.Transition{
			{AfterDays: 60, StorageClass: policy.StorageClassArchive},
		},
		Expiration: &policy.Expiration{AfterDays: 400},
	}

	mapped := fromLifecycleRule(toLifecycleRule(original))
	assert.Equal(t, original, mapped)
}

func TestFromLifecycleRule_PrefixSources(t *testing.T) {
	tests := []struct {
		name string
		rule types.LifecycleRule
		want string
	}{
		{
			name: "filter prefix",
			rule: types.LifecycleRule{
				ID:     aws.String("a"),
				Filter: &types.LifecycleRuleFilter{Prefix: aws.String("filter/")},
			},
			want: "filter/",
		},
		{
			name: "and clause prefix",
			rule: types.LifecycleRule{
				ID: aws.String("b"),
				Filter: &types.LifecycleRuleFilter{
					And: &types.LifecycleRuleAndOperator{Prefix: aws.String("and/")},
				},
			},
			want: "and/",
		},
		{
			name: "legacy top-level prefix",
			rule: types.LifecycleRule{
				ID:     aws.String("c"),
				Prefix: aws.String("legacy/"), //nolint:staticcheck // exercising the deprecated field
			},
			want: "legacy/",
		},
		{
			name: "no prefix anywhere",
			rule: types.LifecycleRule{ID: aws.String("d")},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fromLifecycleRule(tt.rule).Prefix)
		})
	}
}

func TestFromLifecycleRule_UnknownStorageClassPassesThrough(t *testing.T) {
	rule := types.LifecycleRule{
		ID: aws.String("r1"),
		Transitions: []types.Transition{
			{Days: aws.Int32(30), StorageClass: types.TransitionStorageClass("GLACIER_IR")},
		},
	}

	mapped := fromLifecycleRule(rule)
	require.Len(t, mapped.Transitions, 1)
	assert.Equal(t, policy.StorageClass("GLACIER_IR"), mapped.Transitions[0].StorageClass)

	// And back out unchanged.
	back := toLifecycleRule(mapped)
	assert.Equal(t, types.TransitionStorageClass("GLACIER_IR"), back.Transitions[0].StorageClass)
}

func TestStatusMapping(t *testing.T) {
	assert.Equal(t, types.ExpirationStatusEnabled, toS3Status(policy.StatusEnabled))
	assert.Equal(t, types.ExpirationStatusDisabled, toS3Status(policy.StatusDisabled))
	assert.Equal(t, policy.StatusEnabled, fromS3Status(types.ExpirationStatusEnabled))
	assert.Equal(t, policy.StatusDisabled, fromS3Status(types.ExpirationStatusDisabled))
}

func apiError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no such bucket", apiError("NoSuchBucket"), provider.ErrNotFound},
		{"not found", apiError("NotFound"), provider.ErrNotFound},
		{"access denied", apiError("AccessDenied"), provider.ErrPermissionDenied},
		{"bad credentials", apiError("InvalidAccessKeyId"), provider.ErrPermissionDenied},
		{"bad signature", apiError("SignatureDoesNotMatch"), provider.ErrPermissionDenied},
		{"throttled", apiError("SlowDown"), provider.ErrTransient},
		{"throttling exception", apiError("ThrottlingException"), provider.ErrTransient},
		{"service unavailable", apiError("ServiceUnavailable"), provider.ErrTransient},
		{"internal error", apiError("InternalError"), provider.ErrTransient},
		{"malformed xml", apiError("MalformedXML"), provider.ErrMalformed},
		{"invalid argument", apiError("InvalidArgument"), provider.ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := classify(tt.err)
			assert.True(t, errors.Is(classified, tt.want), "got %v", classified)

			var apiErr smithy.APIError
			assert.True(t, errors.As(classified, &apiErr), "original error must stay inspectable")
		})
	}
}

func TestClassify_TransportFailureIsTransient(t *testing.T) {
	err := classify(fmt.Errorf("dial tcp: connection refused"))
	assert.True(t, errors.Is(err, provider.ErrTransient))
}

func TestClassify_ContextErrorsPassThrough(t *testing.T) {
	assert.Equal(t, context.DeadlineExceeded, classify(context.DeadlineExceeded))
	assert.Equal(t, context.Canceled, classify(context.Canceled))
	assert.True(t, provider.IsTransient(classify(context.DeadlineExceeded)))
}

func TestClassify_Nil(t *testing.T) {
	assert.NoError(t, classify(nil))
}

func TestClassify_UnknownAPIErrorUnwrapped(t *testing.T) {
	err := classify(apiError("SomeNewErrorCode"))
	assert.False(t, errors.Is(err, provider.ErrTransient))
	assert.False(t, errors.Is(err, provider.ErrNotFound))
	assert.False(t, errors.Is(err, provider.ErrPermissionDenied))
	assert.False(t, errors.Is(err, provider.ErrMalformed))
}

func TestIsNoSuchLifecycleConfiguration(t *testing.T) {
	assert.True(t, isNoSuchLifecycleConfiguration(apiError("NoSuchLifecycleConfiguration")))
	assert.False(t, isNoSuchLifecycleConfiguration(apiError("NoSuchBucket")))
	assert.False(t, isNoSuchLifecycleConfiguration(errors.New("plain")))
}
