package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestNextReferenceShape(t *testing.T) {
	svc := NewReferenceService(NewMemorySequenceAllocator())

	ref, err := svc.NextReference(context.Background(), PaymentReferencePrefix)
	if err != nil {
		t.Fatalf("NextReference failed: %v", err)
	}
	if ref != "RC-0000-0000-0019" {
		t.Errorf("first reference = %q, want RC-0000-0000-0019", ref)
	}
	if !ValidateReference(ref) {
		t.Errorf("generated reference %q does not validate", ref)
	}
}

func TestNextReferencePrefixes(t *testing.T) {
	svc := NewReferenceService(NewMemorySequenceAllocator())

	for _, prefix := range []string{PaymentReferencePrefix, RefundReferencePrefix, RemissionReferencePrefix} {
		ref, err := svc.NextReference(context.Background(), prefix)
		if err != nil {
			t.Fatalf("NextReference(%s) failed: %v", prefix, err)
		}
		if !strings.HasPrefix(ref, prefix+"-") {
			t.Errorf("reference %q missing prefix %s", ref, prefix)
		}
		if !ValidateReference(ref) {
			t.Errorf("reference %q does not validate", ref)
		}
	}
}

func TestValidateReferenceRejectsBadShapes(t *testing.T) {
	cases := []string{
		"",
		"RC-0000-0000",
		"rc-0000-0000-0019",
		"RC-0000-0000-00190",
		"RC-0000-0000-001X9",
		"R-0000-0000-0019",
		"RCCC-0000-0000-0019",
		"RC-000A-0000-0019",
		"RC-0000-0X00-0019",
		"RC 0000 0000 0019",
		"RC-0000-0000-0019 ",
	}
	for _, ref := range cases {
		if ValidateReference(ref) {
			t.Errorf("ValidateReference(%q) = true, want false", ref)
		}
	}
}

func TestValidateReferenceRejectsSingleDigitChanges(t *testing.T) {
	svc := NewReferenceService(NewMemorySequenceAllocator())
	alloc := svc.sequences.(*MemorySequenceAllocator)
	alloc.Seed(referenceSequence, 4_829_173_645)

	ref, err := svc.NextReference(context.Background(), PaymentReferencePrefix)
	if err != nil {
		t.Fatalf("NextReference failed: %v", err)
	}

	raw := strings.ReplaceAll(ref[len("RC-"):], "-", "")
	for pos := 0; pos < 11; pos++ {
		for d := byte('0'); d <= '9'; d++ {
			if raw[pos] == d {
				continue
			}
			mutated := raw[:pos] + string(d) + raw[pos+1:]
			candidate := "RC-" + mutated[0:4] + "-" + mutated[4:8] + "-" + mutated[8:12]
			if ValidateReference(candidate) {
				t.Errorf("altered reference %q (position %d) validates", candidate, pos)
			}
		}
	}
}

func TestValidateReferenceRejectsAdjacentTranspositions(t *testing.T) {
	svc := NewReferenceService(NewMemorySequenceAllocator())
	alloc := svc.sequences.(*MemorySequenceAllocator)
	alloc.Seed(referenceSequence, 90_817_263_544)

	ref, err := svc.NextReference(context.Background(), PaymentReferencePrefix)
	if err != nil {
		t.Fatalf("NextReference failed: %v", err)
	}

	raw := []byte(strings.ReplaceAll(ref[len("RC-"):], "-", ""))
	for pos := 0; pos < 10; pos++ {
		if raw[pos] == raw[pos+1] {
			continue
		}
		swapped := make([]byte, len(raw))
		copy(swapped, raw)
		swapped[pos], swapped[pos+1] = swapped[pos+1], swapped[pos]
		candidate := "RC-" + string(swapped[0:4]) + "-" + string(swapped[4:8]) + "-" + string(swapped[8:12])
		if ValidateReference(candidate) {
			t.Errorf("transposed reference %q (positions %d/%d) validates", candidate, pos, pos+1)
		}
	}
}

func TestNextReferenceConcurrentUniqueness(t *testing.T) {
	svc := NewReferenceService(NewMemorySequenceAllocator())

	const workers = 20
	const perWorker = 50

	var mu sync.Mutex
	seen := make(map[string]bool, workers*perWorker)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				ref, err := svc.NextReference(context.Background(), PaymentReferencePrefix)
				if err != nil {
					t.Errorf("NextReference failed: %v", err)
					return
				}
				mu.Lock()
				if seen[ref] {
					t.Errorf("duplicate reference generated: %s", ref)
				}
				seen[ref] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Errorf("generated %d unique references, want %d", len(seen), workers*perWorker)
	}
}

func TestNextReferenceExhaustion(t *testing.T) {
	alloc := NewMemorySequenceAllocator()
	alloc.Seed(referenceSequence, maxReferencePayload-1)
	svc := NewReferenceService(alloc)

	ref, err := svc.NextReference(context.Background(), PaymentReferencePrefix)
	if err != nil {
		t.Fatalf("reference at payload ceiling failed: %v", err)
	}
	if !ValidateReference(ref) {
		t.Errorf("reference %q at payload ceiling does not validate", ref)
	}

	if _, err := svc.NextReference(context.Background(), PaymentReferencePrefix); !errors.Is(err, ErrSequenceExhausted) {
		t.Errorf("past the ceiling got %v, want ErrSequenceExhausted", err)
	}
}

func TestMod11CheckCharacter(t *testing.T) {
	cases := []struct {
		payload string
		want    byte
	}{
		{"00000000001", '9'},
		{"00000000010", '8'},
		{"00000000000", '0'},
	}
	for _, tc := range cases {
		got, err := mod11CheckCharacter(tc.payload)
		if err != nil {
			t.Fatalf("mod11CheckCharacter(%s) failed: %v", tc.payload, err)
		}
		if got != tc.want {
			t.Errorf("mod11CheckCharacter(%s) = %c, want %c", tc.payload, got, tc.want)
		}
	}

	if _, err := mod11CheckCharacter("0000000000A"); err == nil {
		t.Error("non-digit payload accepted")
	}
}
