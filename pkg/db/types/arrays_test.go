package dbtypes

import (
	"testing"

	"github.com/google/uuid"
)

func TestUUIDArrayRoundTripsThroughLiteral(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	value, err := UUIDArray{a, b}.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}

	var scanned UUIDArray
	if err := scanned.Scan([]byte(value.(string))); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(scanned) != 2 || !scanned.Contains(a) || !scanned.Contains(b) {
		t.Fatalf("unexpected scan result %v", scanned)
	}
	if scanned.Contains(uuid.New()) {
		t.Fatalf("unexpected match for unknown id")
	}
}

func TestUUIDArrayEmptyAndNil(t *testing.T) {
	value, err := UUIDArray(nil).Value()
	if err != nil || value != "{}" {
		t.Fatalf("expected empty literal, got %v (%v)", value, err)
	}
	var scanned UUIDArray
	if err := scanned.Scan(nil); err != nil || len(scanned) != 0 {
		t.Fatalf("expected empty array from nil, got %v (%v)", scanned, err)
	}
	if err := scanned.Scan("{not-a-uuid}"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestStringArrayScansQuotedTokens(t *testing.T) {
	var scanned StringArray
	if err := scanned.Scan(`{"customer_refused",other}`); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(scanned) != 2 || scanned[0] != "customer_refused" || scanned[1] != "other" {
		t.Fatalf("unexpected tokens %v", scanned)
	}
	if err := scanned.Scan(42); err == nil {
		t.Fatalf("expected unsupported type error")
	}
}
