package catalogarn

import (
	"errors"
	"testing"
)

func TestParseTableBucketARN(t *testing.T) {
	parsed, err := Parse("arn:aws:s3tables:us-east-1:111122223333:bucket/daily-sales")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parsed.Partition != "aws" || parsed.Region != "us-east-1" || parsed.AccountID != "111122223333" {
		t.Fatalf("parsed = %#v", parsed)
	}
	if parsed.Bucket != "daily-sales" {
		t.Fatalf("Bucket = %q", parsed.Bucket)
	}
	if parsed.String() != "arn:aws:s3tables:us-east-1:111122223333:bucket/daily-sales" {
		t.Fatalf("String() = %q", parsed.String())
	}
}

func TestParseTrimsWhitespace(t *testing.T) {
	parsed, err := Parse("  arn:aws-cn:s3tables:cn-north-1:111122223333:bucket/b1 \n")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parsed.Partition != "aws-cn" || parsed.Bucket != "b1" {
		t.Fatalf("parsed = %#v", parsed)
	}
}

func TestParseRejectsInvalidARNs(t *testing.T) {
	tests := []string{
		"",
		"not-an-arn",
		"arn:aws:s3:::my-bucket",
		"arn:aws:s3tables::111122223333:bucket/b1",
		"arn:aws:s3tables:us-east-1::bucket/b1",
		"arn:aws:s3tables:us-east-1:111122223333:table/b1",
		"arn:aws:s3tables:us-east-1:111122223333:bucket/",
		"arn:aws:s3tables:us-east-1:111122223333:bucket/b1/table/t1",
	}
	for _, raw := range tests {
		_, err := Parse(raw)
		if err == nil {
			t.Fatalf("Parse(%q) expected error", raw)
		}
		if !errors.Is(err, ErrInvalidARN) {
			t.Fatalf("Parse(%q) error = %v, want ErrInvalidARN", raw, err)
		}
	}
}

func TestRegionOf(t *testing.T) {
	if got := RegionOf("arn:aws:s3tables:eu-central-1:111122223333:bucket/b1"); got != "eu-central-1" {
		t.Fatalf("RegionOf() = %q", got)
	}
	if got := RegionOf("garbage"); got != "" {
		t.Fatalf("RegionOf() = %q, want empty", got)
	}
}

func TestStringWithoutRaw(t *testing.T) {
	value := TableBucketARN{Partition: "aws", Region: "us-west-2", AccountID: "1", Bucket: "b"}
	if value.String() != "arn:aws:s3tables:us-west-2:1:bucket/b" {
		t.Fatalf("String() = %q", value.String())
	}
}
