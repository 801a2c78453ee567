package passphrase

import (
	"errors"
	"testing"
)

func TestSourcePrefersEnvironment(t *testing.T) {
	t.Setenv("RFQ_TEST_PASS", "from-env")
	s := NewSource("RFQ_TEST_PASS", "")
	s.terminal = func() (string, bool, error) {
		t.Fatalf("terminal must not be consulted")
		return "", false, nil
	}
	got, err := s.Get()
	if err != nil || got != "from-env" {
		t.Fatalf("unexpected result %q %v", got, err)
	}
}

func TestSourceRejectsEmptyEnvironment(t *testing.T) {
	t.Setenv("RFQ_TEST_PASS", "  ")
	if _, err := NewSource("RFQ_TEST_PASS", "").Get(); err == nil {
		t.Fatalf("expected empty passphrase to be rejected")
	}
}

func TestSourcePromptsOnceAndCaches(t *testing.T) {
	calls := 0
	s := NewSource("RFQ_TEST_PASS_UNSET", "")
	s.terminal = func() (string, bool, error) {
		calls++
		return "typed", true, nil
	}
	for i := 0; i < 2; i++ {
		got, err := s.Get()
		if err != nil || got != "typed" {
			t.Fatalf("unexpected result %q %v", got, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected a single prompt, got %d", calls)
	}
}

func TestSourceWithoutTerminal(t *testing.T) {
	s := NewSource("RFQ_TEST_PASS_UNSET", "")
	s.terminal = func() (string, bool, error) { return "", false, nil }
	if _, err := s.Get(); err == nil {
		t.Fatalf("expected an error without terminal or environment")
	}

	s = NewSource("", "")
	s.terminal = func() (string, bool, error) { return "", true, errors.New("tty gone") }
	if _, err := s.Get(); err == nil {
		t.Fatalf("expected read failure to surface")
	}
}
