// Package catalogarn parses S3 Tables table-bucket ARNs of the form
// arn:<partition>:s3tables:<region>:<account>:bucket/<name>.
package catalogarn

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws/arn"
)

const service = "s3tables"

var ErrInvalidARN = errors.New("invalid s3 tables catalog arn")

type TableBucketARN struct {
	Partition string
	Region    string
	AccountID string
	Bucket    string
	raw       string
}

func Parse(raw string) (TableBucketARN, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return TableBucketARN{}, fmt.Errorf("%w: arn is empty", ErrInvalidARN)
	}
	parsed, err := arn.Parse(raw)
	if err != nil {
		return TableBucketARN{}, fmt.Errorf("%w: %v", ErrInvalidARN, err)
	}
	if parsed.Service != service {
		return TableBucketARN{}, fmt.Errorf("%w: service %q, want %q", ErrInvalidARN, parsed.Service, service)
	}
	if parsed.Region == "" {
		return TableBucketARN{}, fmt.Errorf("%w: region is required", ErrInvalidARN)
	}
	if parsed.AccountID == "" {
		return TableBucketARN{}, fmt.Errorf("%w: account id is required", ErrInvalidARN)
	}
	kind, bucket, ok := strings.Cut(parsed.Resource, "/")
	if !ok || kind != "bucket" || bucket == "" || strings.Contains(bucket, "/") {
		return TableBucketARN{}, fmt.Errorf("%w: resource %q, want bucket/<name>", ErrInvalidARN, parsed.Resource)
	}
	return TableBucketARN{
		Partition: parsed.Partition,
		Region:    parsed.Region,
		AccountID: parsed.AccountID,
		Bucket:    bucket,
		raw:       raw,
	}, nil
}

// RegionOf returns the region embedded in raw, or "" when raw does not parse.
func RegionOf(raw string) string {
	parsed, err := Parse(raw)
	if err != nil {
		return ""
	}
	return parsed.Region
}

func (a TableBucketARN) String() string {
	if a.raw != "" {
		return a.raw
	}
	return arn.ARN{
		Partition: a.Partition,
		Service:   service,
		Region:    a.Region,
		AccountID: a.AccountID,
		Resource:  "bucket/" + a.Bucket,
	}.String()
}
