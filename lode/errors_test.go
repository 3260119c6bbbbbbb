package lode

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		errMsg   string
		wantKind error
	}{
		{"context deadline exceeded", "context deadline exceeded", ErrTimeout},
		{"operation timed out", "operation timed out", ErrTimeout},
		{"AccessDenied response", "AccessDenied: you do not have access", ErrAccessDenied},
		{"Forbidden response", "Forbidden", ErrAccessDenied},
		{"HTTP 403", "received status 403", ErrAccessDenied},
		{"permission denied", "open /data/requests: permission denied", ErrPermissionDenied},
		{"EACCES errno", "open /tmp/file: EACCES", ErrPermissionDenied},
		{"no space left on device", "write /data/x: no space left on device", ErrDiskFull},
		{"quota exceeded", "quota exceeded for user", ErrDiskFull},
		{"no such file", "no such file or directory", ErrNotFound},
		{"NoSuchKey S3", "NoSuchKey: The specified key does not exist", ErrNotFound},
		{"HTTP 429", "received status 429", ErrThrottled},
		{"SlowDown S3", "SlowDown: please reduce request rate", ErrThrottled},
		{"NoCredentialProviders", "NoCredentialProviders: no valid providers", ErrAuth},
		{"ExpiredToken", "ExpiredToken: the security token has expired", ErrAuth},
		{"connection refused", "dial tcp 127.0.0.1:9000: connection refused", ErrNetwork},
		{"unclassified", "something odd happened", ErrUnclassified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(errors.New(tt.errMsg))
			if got != tt.wantKind {
				t.Errorf("classifyError(%q) = %v, want %v", tt.errMsg, got, tt.wantKind)
			}
		})
	}
}

func TestClassifyError_Nil(t *testing.T) {
	if got := classifyError(nil); got != nil {
		t.Errorf("classifyError(nil) = %v, want nil", got)
	}
}

func TestClassifyError_TimeoutInterface(t *testing.T) {
	err := fmt.Errorf("put: %w", &timeoutError{msg: "slow"})
	if got := classifyError(err); got != ErrTimeout {
		t.Errorf("classifyError = %v, want ErrTimeout", got)
	}
}

func TestWrapWriteError(t *testing.T) {
	backend := errors.New("write /x: no space left on device")
	err := WrapWriteError(backend, "requests/x")

	if !errors.Is(err, ErrDiskFull) {
		t.Errorf("errors.Is(err, ErrDiskFull) = false for %v", err)
	}
	if !errors.Is(err, backend) {
		t.Error("backend error lost from chain")
	}
	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("error type = %T, want *StorageError", err)
	}
	if se.Op != "write" || se.Path != "requests/x" {
		t.Errorf("Op = %q, Path = %q", se.Op, se.Path)
	}
	if WrapWriteError(nil, "x") != nil {
		t.Error("WrapWriteError(nil) should be nil")
	}
}

func TestWrap_KeepsExistingClassification(t *testing.T) {
	inner := NewStorageError(ErrAuth, "init", "s3", errors.New("no creds"))
	err := WrapReadError(fmt.Errorf("open: %w", inner), "p")

	var se *StorageError
	if !errors.As(err, &se) || se.Op != "init" {
		t.Errorf("classification replaced: %v", err)
	}
	if !IsStorageError(err) {
		t.Error("IsStorageError = false")
	}
	if IsStorageError(errors.New("plain")) {
		t.Error("IsStorageError(plain) = true")
	}
}

type timeoutError struct{ msg string }

func (e *timeoutError) Error() string { return e.msg }
func (e *timeoutError) Timeout() bool { return true }
