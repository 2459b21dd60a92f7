package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// stubS3 is an in-memory s3API double keyed by object key.
type stubS3 struct {
	objects map[string][]byte
	puts    []string
}

func newStubS3() *stubS3 {
	return &stubS3{objects: make(map[string][]byte)}
}

func (s *stubS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := s.objects[*in.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (s *stubS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	s.objects[*in.Key] = body
	s.puts = append(s.puts, *in.Key)
	return &s3.PutObjectOutput{}, nil
}

const testCrashID = "00000000-0000-0000-0000-000002140504"

func TestS3StoreRawCrashRoundTrip(t *testing.T) {
	stub := newStubS3()
	st := newS3StoreWithClient(stub, S3Config{Bucket: "crashes", Prefix: "prod"}, t.TempDir())

	raw := map[string]any{"ProductName": "Firefox", "Version": "12.0"}
	if err := st.Save(context.Background(), testCrashID, raw, map[string]any{"success": true}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, ok := stub.objects["prod/v1/raw_crash/"+testCrashID]; !ok {
		t.Fatalf("raw crash key missing; wrote %v", stub.puts)
	}

	got, err := st.GetRawCrash(context.Background(), testCrashID)
	if err != nil {
		t.Fatalf("GetRawCrash: %v", err)
	}
	if got["ProductName"] != "Firefox" {
		t.Errorf("ProductName = %v", got["ProductName"])
	}

	processed, err := st.GetProcessed(context.Background(), testCrashID)
	if err != nil {
		t.Fatalf("GetProcessed: %v", err)
	}
	if processed["success"] != true {
		t.Errorf("success = %v", processed["success"])
	}
}

func TestS3StoreNotFound(t *testing.T) {
	st := newS3StoreWithClient(newStubS3(), S3Config{Bucket: "crashes"}, t.TempDir())

	if _, err := st.GetRawCrash(context.Background(), testCrashID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRawCrash = %v, want ErrNotFound", err)
	}
	if _, err := st.GetProcessed(context.Background(), testCrashID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetProcessed = %v, want ErrNotFound", err)
	}
	if _, err := st.GetDumps(context.Background(), testCrashID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetDumps = %v, want ErrNotFound", err)
	}
}

func TestS3StoreGetDumps(t *testing.T) {
	stub := newStubS3()
	names, _ := json.Marshal([]string{"upload_file_minidump", "browser"})
	stub.objects["v1/dump_names/"+testCrashID] = names
	stub.objects["v1/upload_file_minidump/"+testCrashID] = []byte{0x4d, 0x44, 0x4d, 0x50}
	stub.objects["v1/browser/"+testCrashID] = []byte{0x00}

	st := newS3StoreWithClient(stub, S3Config{Bucket: "crashes"}, t.TempDir())
	dumps, err := st.GetDumps(context.Background(), testCrashID)
	if err != nil {
		t.Fatalf("GetDumps: %v", err)
	}
	if len(dumps) != 2 {
		t.Fatalf("dumps = %v", dumps)
	}
	for name, path := range dumps {
		if !strings.Contains(path, "TEMPORARY") {
			t.Errorf("dump %s path %q lacks TEMPORARY marker", name, path)
		}
	}
}

func TestS3StoreGetDumpsMissingDumpCleansUp(t *testing.T) {
	stub := newStubS3()
	names, _ := json.Marshal([]string{"upload_file_minidump", "missing"})
	stub.objects["v1/dump_names/"+testCrashID] = names
	stub.objects["v1/upload_file_minidump/"+testCrashID] = []byte{0x4d}

	dir := t.TempDir()
	st := newS3StoreWithClient(stub, S3Config{Bucket: "crashes"}, dir)
	if _, err := st.GetDumps(context.Background(), testCrashID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetDumps = %v, want ErrNotFound", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("temp dir not cleaned up: %d files left", len(entries))
	}
}

func TestParseS3Path(t *testing.T) {
	bucket, prefix := ParseS3Path("crashes/prod/us-east")
	if bucket != "crashes" || prefix != "prod/us-east" {
		t.Errorf("ParseS3Path = %q, %q", bucket, prefix)
	}
	bucket, prefix = ParseS3Path("crashes")
	if bucket != "crashes" || prefix != "" {
		t.Errorf("ParseS3Path = %q, %q", bucket, prefix)
	}
}

func TestS3ConfigValidate(t *testing.T) {
	cfg := S3Config{}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate accepted empty bucket")
	}
	cfg.Bucket = "crashes"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}
