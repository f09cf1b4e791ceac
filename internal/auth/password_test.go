package auth

import "testing"

func TestDeriveAndVerify(t *testing.T) {
	svc := NewPasswordService()

	salt, hash, err := svc.Derive("password123")
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}
	if salt == "" || hash == "" {
		t.Fatal("Derive() returned empty salt or hash")
	}
	if hash == "password123" {
		t.Fatal("hash must not equal the plaintext")
	}

	if !svc.Verify("password123", salt, hash) {
		t.Error("Verify() with the right password = false, want true")
	}
	if svc.Verify("password124", salt, hash) {
		t.Error("Verify() with a near-miss password = true, want false")
	}
	if svc.Verify("", salt, hash) {
		t.Error("Verify() with an empty password = true, want false")
	}
}

// Two derivations of the same password must produce different salts (and
// therefore different hashes) — same-password accounts stay unlinkable.
func TestDerive_FreshSaltPerCall(t *testing.T) {
	svc := NewPasswordService()

	salt1, hash1, err := svc.Derive("password123")
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}
	salt2, hash2, err := svc.Derive("password123")
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}

	if salt1 == salt2 {
		t.Error("two derivations reused a salt")
	}
	if hash1 == hash2 {
		t.Error("two derivations of the same password produced the same hash")
	}

	// Each hash still verifies under its own salt.
	if !svc.Verify("password123", salt1, hash1) || !svc.Verify("password123", salt2, hash2) {
		t.Error("derived credentials failed to verify")
	}
}

// Corrupt stored values simply never verify — no panic, no error channel.
func TestVerify_MalformedStoredValues(t *testing.T) {
	svc := NewPasswordService()
	salt, hash, _ := svc.Derive("password123")

	if svc.Verify("password123", "not base64 !!!", hash) {
		t.Error("Verify() with a corrupt salt = true, want false")
	}
	if svc.Verify("password123", salt, "not base64 !!!") {
		t.Error("Verify() with a corrupt hash = true, want false")
	}
	if svc.Verify("password123", "", "") {
		t.Error("Verify() with empty stored values = true, want false")
	}
}

func TestVerify_CrossedCredentials(t *testing.T) {
	svc := NewPasswordService()
	salt1, _, _ := svc.Derive("password123")
	_, hash2, _ := svc.Derive("password123")

	// hash2 was derived under a different salt.
	if svc.Verify("password123", salt1, hash2) {
		t.Error("Verify() with a mismatched salt/hash pair = true, want false")
	}
}
