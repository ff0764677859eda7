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

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/jeremyhahn/go-lifecycle/pkg/policy"
	"github.com/jeremyhahn/go-lifecycle/pkg/provider"
)

// Storage tier mapping between the declared model and S3 storage classes.
var (
	toS3StorageClass = map[policy.StorageClass]types.TransitionStorageClass{
		policy.StorageClassStandard:         types.TransitionStorageClass("STANDARD"),
		policy.StorageClassInfrequentAccess: types.TransitionStorageClassStandardIa,
		policy.StorageClassArchive:          types.TransitionStorageClassGlacier,
		policy.StorageClassDeepArchive:      types.TransitionStorageClassDeepArchive,
	}

	fromS3StorageClass = map[types.TransitionStorageClass]policy.StorageClass{
		types.TransitionStorageClass("STANDARD"): policy.StorageClassStandard,
		types.TransitionStorageClassStandardIa:   policy.StorageClassInfrequentAccess,
		types.TransitionStorageClassGlacier:      policy.StorageClassArchive,
		types.TransitionStorageClassDeepArchive:  policy.StorageClassDeepArchive,
	}
)

// toLifecycleRule maps a declared rule onto the S3 lifecycle rule schema.
func toLifecycleRule(r policy.Rule) types.LifecycleRule {
	rule := types.LifecycleRule{
		ID:     aws.String(r.ID),
		Status: toS3Status(r.Status),
		Filter: &types.LifecycleRuleFilter{
			Prefix: aws.String(r.Prefix),
		},
	}

	for _, t := range r.Transitions {
		sc, ok := toS3StorageClass[t.StorageClass]
		if !ok {
			// Unknown classes round-trip verbatim; the provider rejects
			// anything it does not support.
			sc = types.TransitionStorageClass(t.StorageClass)
		}
		rule.Transitions = append(rule.Transitions, types.Transition{
			Days:         aws.Int32(int32(t.AfterDays)), // #nosec G115 -- validated positive day count
			StorageClass: sc,
		})
	}

	if r.Expiration != nil {
		rule.Expiration = &types.LifecycleExpiration{
			Days: aws.Int32(int32(r.Expiration.AfterDays)), // #nosec G115 -- validated positive day count
		}
	}

	return rule
}

// fromLifecycleRule maps an S3 lifecycle rule into the declared model.
// Provider-only fields (dates, tag filters, noncurrent version clauses) are
// dropped from the mapped form; the raw payload in provider.State carries
// them through a write-back untouched.
func fromLifecycleRule(rule types.LifecycleRule) policy.Rule {
	r := policy.Rule{
		ID:     aws.ToString(rule.ID),
		Status: fromS3Status(rule.Status),
	}

	switch {
	case rule.Filter != nil && rule.Filter.Prefix != nil:
		r.Prefix = aws.ToString(rule.Filter.Prefix)
	case rule.Filter != nil && rule.Filter.And != nil:
		r.Prefix = aws.ToString(rule.Filter.And.Prefix)
	case rule.Prefix != nil: //nolint:staticcheck // legacy top-level prefix still appears in the wild
		r.Prefix = aws.ToString(rule.Prefix) //nolint:staticcheck
	}

	for _, t := range rule.Transitions {
		sc, ok := fromS3StorageClass[t.StorageClass]
		if !ok {
			sc = policy.StorageClass(t.StorageClass)
		}
		r.Transitions = append(r.Transitions, policy.Transition{
			AfterDays:    int(aws.ToInt32(t.Days)),
			StorageClass: sc,
		})
	}

	if rule.Expiration != nil && rule.Expiration.Days != nil {
		r.Expiration = &policy.Expiration{AfterDays: int(aws.ToInt32(rule.Expiration.Days))}
	}

	return r
}

func toS3Status(s policy.RuleStatus) types.ExpirationStatus {
	if s == policy.StatusEnabled {
		return types.ExpirationStatusEnabled
	}
	return types.ExpirationStatusDisabled
}

func fromS3Status(s types.ExpirationStatus) policy.RuleStatus {
	if s == types.ExpirationStatusEnabled {
		return policy.StatusEnabled
	}
	return policy.StatusDisabled
}

// classify translates SDK errors into the provider error taxonomy so the
// applier can distinguish retryable from terminal without string inspection.
func classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		// Transport-level failure (connection refused/reset, DNS): retryable.
		return errors.Join(provider.ErrTransient, err)
	}

	switch apiErr.ErrorCode() {
	case "NoSuchBucket", "NotFound":
		return errors.Join(provider.ErrNotFound, err)
	case "AccessDenied", "AllAccessDisabled", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return errors.Join(provider.ErrPermissionDenied, err)
	case "Throttling", "ThrottlingException", "SlowDown", "RequestTimeout",
		"RequestLimitExceeded", "ServiceUnavailable", "InternalError":
		return errors.Join(provider.ErrTransient, err)
	case "MalformedXML", "InvalidArgument", "InvalidRequest":
		return errors.Join(provider.ErrMalformed, err)
	}
	return err
}

func isNoSuchLifecycleConfiguration(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchLifecycleConfiguration"
}
