package creem

import "testing"

func TestSignProducesStableDigest(t *testing.T) {
	params := []Param{
		{Key: "checkout_id", Value: "ch_123"},
		{Key: "order_id", Value: "ord_456"},
	}

	first := Sign(params, "sk_test")
	second := Sign(params, "sk_test")

	if first != second {
		t.Fatalf("expected deterministic signature, got %q and %q", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("expected 64-char hex digest, got %d chars", len(first))
	}
}

func TestSignIsOrderSensitive(t *testing.T) {
	a := Sign([]Param{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}, "sk_test")
	b := Sign([]Param{{Key: "b", Value: "2"}, {Key: "a", Value: "1"}}, "sk_test")

	if a == b {
		t.Fatal("expected reordered params to produce a different signature")
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		params []Param
	}{
		{
			name: "typical redirect params",
			params: []Param{
				{Key: "checkout_id", Value: "ch_1"},
				{Key: "order_id", Value: "ord_2"},
				{Key: "customer_id", Value: "cus_3"},
			},
		},
		{
			name:   "single param",
			params: []Param{{Key: "request_id", Value: "1700000000-abc"}},
		},
		{
			name: "reverse ordering",
			params: []Param{
				{Key: "customer_id", Value: "cus_3"},
				{Key: "checkout_id", Value: "ch_1"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := Sign(tt.params, "sk_test")
			if !Verify(tt.params, sig, "sk_test") {
				t.Fatal("expected signature to verify for the ordering it was signed with")
			}
		})
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	params := []Param{{Key: "order_id", Value: "ord_1"}}
	sig := Sign(params, "sk_test")

	// Flip one character of the hex digest.
	altered := []byte(sig)
	if altered[0] == 'a' {
		altered[0] = 'b'
	} else {
		altered[0] = 'a'
	}

	if Verify(params, string(altered), "sk_test") {
		t.Fatal("expected altered signature to fail verification")
	}
}

func TestVerifyStripsOnlySignatureKey(t *testing.T) {
	signed := []Param{{Key: "order_id", Value: "ord_1"}}
	sig := Sign(signed, "sk_test")

	received := []Param{
		{Key: "order_id", Value: "ord_1"},
		{Key: "signature", Value: sig},
	}

	if !Verify(received, sig, "sk_test") {
		t.Fatal("expected verification to ignore the signature key")
	}
}

func TestVerifyKeepsEmptyValues(t *testing.T) {
	// A present-but-empty value is part of the canonical string ("promo=");
	// only null/absent keys are excluded, and that happens before the
	// parameter list is built.
	signed := []Param{
		{Key: "order_id", Value: "ord_1"},
		{Key: "promo", Value: ""},
	}
	sig := Sign(signed, "sk_test")

	received := append([]Param{}, signed...)
	received = append(received, Param{Key: "signature", Value: sig})
	if !Verify(received, sig, "sk_test") {
		t.Fatal("expected empty-valued key to verify against the string it was signed in")
	}

	withoutEmpty := []Param{{Key: "order_id", Value: "ord_1"}}
	if Verify(withoutEmpty, sig, "sk_test") {
		t.Fatal("dropping the empty-valued key must change the canonical string")
	}
}

func TestVerifyFailsClosedOnMalformedInput(t *testing.T) {
	if Verify(nil, "", "sk_test") {
		t.Fatal("expected empty signature to fail verification")
	}
	if Verify([]Param{}, "deadbeef", "sk_test") {
		t.Fatal("expected empty params with bogus signature to fail verification")
	}
	if Verify([]Param{{Key: "", Value: ""}}, "deadbeef", "") {
		t.Fatal("expected malformed params to fail verification")
	}
}
