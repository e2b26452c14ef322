package identifier

import "testing"

func TestValidateAccepts(t *testing.T) {
	cases := []string{"a", "alice", "room-1", "12345678901234567890"}
	for _, c := range cases {
		if err := Validate([]byte(c)); err != nil {
			t.Errorf("Validate(%q) = %v, want nil", c, err)
		}
	}
}

func TestValidateRejectsEmpty(t *testing.T) {
	if err := Validate(nil); err != ErrEmpty {
		t.Errorf("Validate(nil) = %v, want ErrEmpty", err)
	}
	if err := Validate([]byte{}); err != ErrEmpty {
		t.Errorf("Validate([]byte{}) = %v, want ErrEmpty", err)
	}
}

func TestValidateRejectsTooLong(t *testing.T) {
	b := make([]byte, MaxLength+1)
	for i := range b {
		b[i] = 'a'
	}
	if err := Validate(b); err != ErrTooLong {
		t.Errorf("Validate(21 bytes) = %v, want ErrTooLong", err)
	}
}

func TestValidateAcceptsMaxLength(t *testing.T) {
	b := make([]byte, MaxLength)
	for i := range b {
		b[i] = 'a'
	}
	if err := Validate(b); err != nil {
		t.Errorf("Validate(20 bytes) = %v, want nil", err)
	}
}

func TestValidateRejectsWhitespace(t *testing.T) {
	cases := []string{"a b", "a\tb", "a\rb", "a\nb", " lead", "trail "}
	for _, c := range cases {
		if err := Validate([]byte(c)); err != ErrWhitespace {
			t.Errorf("Validate(%q) = %v, want ErrWhitespace", c, err)
		}
	}
}

func TestValid(t *testing.T) {
	if !Valid([]byte("alice")) {
		t.Error("Valid(alice) = false, want true")
	}
	if Valid([]byte("")) {
		t.Error("Valid(\"\") = true, want false")
	}
}
