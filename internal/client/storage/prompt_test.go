package storage

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
)

func TestPrompterLine(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("  alice@example.com  \nsecond\n"), &out)

	got, err := p.Line("Email: ")
	if err != nil {
		t.Fatalf("Line failed: %v", err)
	}
	if got != "alice@example.com" {
		t.Errorf("Line = %q; want %q", got, "alice@example.com")
	}
	if out.String() != "Email: " {
		t.Errorf("label = %q", out.String())
	}

	got, _ = p.Line("> ")
	if got != "second" {
		t.Errorf("second Line = %q", got)
	}

	if _, err := p.Line("> "); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestPrompterPassword_NotTerminal(t *testing.T) {
	p := NewPrompter(strings.NewReader(" secret \n"), io.Discard)

	got, err := p.Password("Password: ")
	if err != nil {
		t.Fatalf("Password failed: %v", err)
	}
	if got != " secret " {
		t.Errorf("Password = %q; want spaces kept", got)
	}
}

func TestPrompterPassword_Terminal(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	defer w.Close()

	var out bytes.Buffer
	p := NewPrompter(r, &out)
	p.isTerm = func(int) bool { return true }
	p.readPwd = func(int) ([]byte, error) { return []byte("hidden"), nil }

	got, err := p.Password("Password: ")
	if err != nil {
		t.Fatalf("Password failed: %v", err)
	}
	if got != "hidden" {
		t.Errorf("Password = %q; want %q", got, "hidden")
	}
	if out.String() != "Password: \n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestPrompterConfirm(t *testing.T) {
	p := NewPrompter(strings.NewReader("y\nYES\nno\n\n"), io.Discard)

	want := []bool{true, true, false, false, false}
	for i, w := range want {
		if got := p.Confirm("Sure?"); got != w {
			t.Errorf("answer %d: Confirm = %v; want %v", i, got, w)
		}
	}
}
