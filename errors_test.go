package scorebook

import (
	"errors"
	"fmt"
	"testing"
)

func TestStoreError_RetryClassification(t *testing.T) {
	busy := wrapStoreErr("insert record", fmt.Errorf("database is locked (5) (SQLITE_BUSY)"))

	var storeErr *StoreError
	if !errors.As(busy, &storeErr) {
		t.Fatalf("error type = %T", busy)
	}
	if !storeErr.Retryable {
		t.Error("lock contention not marked retryable")
	}

	hard := wrapStoreErr("insert record", fmt.Errorf("UNIQUE constraint failed"))
	if errors.As(hard, &storeErr) && storeErr.Retryable {
		t.Error("constraint violation marked retryable")
	}
}

func TestStoreError_Unwrap(t *testing.T) {
	inner := errors.New("disk I/O error")
	err := wrapStoreErr("commit", inner)

	if !errors.Is(err, inner) {
		t.Error("wrapped cause not reachable via errors.Is")
	}
}

func TestSyncError_Unwrap(t *testing.T) {
	err := &SyncError{Scope: "[player_stats]", Failed: 2, Err: ErrUnknownEntity}

	if !errors.Is(err, ErrUnknownEntity) {
		t.Error("wrapped cause not reachable via errors.Is")
	}

	var syncErr *SyncError
	if !errors.As(err, &syncErr) || syncErr.Failed != 2 {
		t.Errorf("errors.As lost detail: %+v", syncErr)
	}
}

func TestInvalidRecordError_Message(t *testing.T) {
	err := &InvalidRecordError{Entity: EntityPlayerStats, Field: "position", Reason: "required tracked field missing"}

	var invalid *InvalidRecordError
	if !errors.As(error(err), &invalid) {
		t.Fatal("errors.As failed")
	}
	msg := err.Error()
	if msg == "" || invalid.Field != "position" {
		t.Errorf("err = %q field = %q", msg, invalid.Field)
	}
}
