package auth

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestTokenCodec_RoundTrip(t *testing.T) {
	codec := NewTokenCodec()
	claim := BearerClaim{
		Identity:  "user-42",
		ExpiresAt: time.Now().Add(time.Hour),
	}

	token, err := codec.Encode(claim, testSecret)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Fatalf("Encode() = %q, want compact JWS", token)
	}

	got, err := codec.Decode(token, testSecret)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.Identity != "user-42" {
		t.Errorf("Identity = %q, want user-42", got.Identity)
	}
	// exp is carried at second precision, rounded up
	if got.ExpiresAt.Before(claim.ExpiresAt) || got.ExpiresAt.Sub(claim.ExpiresAt) >= time.Second {
		t.Errorf("ExpiresAt = %v, want within a second after %v", got.ExpiresAt, claim.ExpiresAt)
	}
}

func TestTokenCodec_RoundTripManyIdentities(t *testing.T) {
	codec := NewTokenCodec()
	exp := time.Now().Add(10 * time.Minute)

	for _, identity := range []string{"a", "usr-0001", "user@example.com", "ünïcødé", strings.Repeat("x", 512)} {
		token, err := codec.Encode(BearerClaim{Identity: identity, ExpiresAt: exp}, testSecret)
		if err != nil {
			t.Fatalf("Encode(%q) error = %v", identity, err)
		}
		got, err := codec.Decode(token, testSecret)
		if err != nil {
			t.Fatalf("Decode(%q) error = %v", identity, err)
		}
		if got.Identity != identity {
			t.Errorf("Identity = %q, want %q", got.Identity, identity)
		}
	}
}

func TestTokenCodec_WeakKey(t *testing.T) {
	codec := NewTokenCodec()
	claim := BearerClaim{Identity: "user-42", ExpiresAt: time.Now().Add(time.Hour)}

	for _, n := range []int{0, 1, 32, MinSecretLength - 1} {
		_, err := codec.Encode(claim, testSecret[:n])
		if !errors.Is(err, ErrWeakKey) {
			t.Errorf("Encode() with %d-byte secret error = %v, want ErrWeakKey", n, err)
		}
	}

	if _, err := codec.Encode(claim, testSecret[:MinSecretLength]); err != nil {
		t.Errorf("Encode() with %d-byte secret error = %v", MinSecretLength, err)
	}
}

func TestTokenCodec_SignatureInvalid(t *testing.T) {
	codec := NewTokenCodec()
	token, err := codec.Encode(BearerClaim{Identity: "user-42", ExpiresAt: time.Now().Add(time.Hour)}, testSecret)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	t.Run("wrong secret", func(t *testing.T) {
		other := []byte(strings.Repeat("z", MinSecretLength))
		if _, err := codec.Decode(token, other); !errors.Is(err, ErrSignatureInvalid) {
			t.Errorf("Decode() error = %v, want ErrSignatureInvalid", err)
		}
	})

	t.Run("every single byte altered", func(t *testing.T) {
		for i := 0; i < len(token); i++ {
			if token[i] == '.' {
				continue
			}
			tampered := []byte(token)
			tampered[i] = swapBase64URLChar(tampered[i])

			_, err := codec.Decode(string(tampered), testSecret)
			if !errors.Is(err, ErrSignatureInvalid) {
				t.Fatalf("Decode() with byte %d altered error = %v, want ErrSignatureInvalid", i, err)
			}
		}
	})
}

// swapBase64URLChar returns a different character from the base64url alphabet.
func swapBase64URLChar(c byte) byte {
	if c == 'A' {
		return 'B'
	}
	return 'A'
}

func TestTokenCodec_Expired(t *testing.T) {
	codec := NewTokenCodec()

	t.Run("claim already expired", func(t *testing.T) {
		token, err := codec.Encode(BearerClaim{Identity: "user-42", ExpiresAt: time.Now().Add(-2 * time.Second)}, testSecret)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		if _, err := codec.Decode(token, testSecret); !errors.Is(err, ErrTokenExpired) {
			t.Errorf("Decode() error = %v, want ErrTokenExpired", err)
		}
	})

	t.Run("clock moves past expiry", func(t *testing.T) {
		issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		codec := &TokenCodec{now: fixedClock(issued)}

		token, err := codec.Encode(BearerClaim{Identity: "user-42", ExpiresAt: issued.Add(time.Hour)}, testSecret)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		if _, err := codec.Decode(token, testSecret); err != nil {
			t.Fatalf("Decode() before expiry error = %v", err)
		}

		codec.now = fixedClock(issued.Add(time.Hour + time.Second))
		if _, err := codec.Decode(token, testSecret); !errors.Is(err, ErrTokenExpired) {
			t.Errorf("Decode() after expiry error = %v, want ErrTokenExpired", err)
		}
	})

	t.Run("usable at exactly the expiry instant", func(t *testing.T) {
		issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		codec := &TokenCodec{now: fixedClock(issued)}
		exp := issued.Add(time.Hour)

		token, err := codec.Encode(BearerClaim{Identity: "user-42", ExpiresAt: exp}, testSecret)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}

		codec.now = fixedClock(exp)
		if _, err := codec.Decode(token, testSecret); err != nil {
			t.Errorf("Decode() at expiry instant error = %v", err)
		}

		codec.now = fixedClock(exp.Add(time.Nanosecond))
		if _, err := codec.Decode(token, testSecret); !errors.Is(err, ErrTokenExpired) {
			t.Errorf("Decode() just past expiry error = %v, want ErrTokenExpired", err)
		}
	})

	t.Run("fractional expiry is not cut short", func(t *testing.T) {
		issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		codec := &TokenCodec{now: fixedClock(issued)}
		exp := issued.Add(time.Hour + 900*time.Millisecond)

		token, err := codec.Encode(BearerClaim{Identity: "user-42", ExpiresAt: exp}, testSecret)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}

		codec.now = fixedClock(issued.Add(time.Hour + 500*time.Millisecond))
		if _, err := codec.Decode(token, testSecret); err != nil {
			t.Errorf("Decode() before fractional expiry error = %v", err)
		}
	})
}

func TestTokenCodec_Malformed(t *testing.T) {
	codec := NewTokenCodec()

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"single segment", "abc"},
		{"two segments", "abc.def"},
		{"four segments", "a.b.c.d"},
		{"empty signature", "abc.def."},
	}

	valid, err := codec.Encode(BearerClaim{Identity: "user-42", ExpiresAt: time.Now().Add(time.Hour)}, testSecret)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	// A byte turned into a separator changes the segment count.
	for _, i := range []int{0, strings.Index(valid, ".") + 1, len(valid) - 1} {
		dotted := []byte(valid)
		dotted[i] = '.'
		tests = append(tests, struct {
			name  string
			token string
		}{fmt.Sprintf("byte %d replaced by separator", i), string(dotted)})
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := codec.Decode(tt.token, testSecret); !errors.Is(err, ErrMalformedToken) {
				t.Errorf("Decode(%q) error = %v, want ErrMalformedToken", tt.token, err)
			}
		})
	}
}

func TestTokenCodec_MissingSubject(t *testing.T) {
	codec := NewTokenCodec()

	token, err := codec.Encode(BearerClaim{ExpiresAt: time.Now().Add(time.Hour)}, testSecret)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if _, err := codec.Decode(token, testSecret); !errors.Is(err, ErrMalformedToken) {
		t.Errorf("Decode() error = %v, want ErrMalformedToken", err)
	}
}
