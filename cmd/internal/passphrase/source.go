package passphrase

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Source lazily resolves the attestor keystore passphrase from an environment
// variable or by prompting the operator. The value is cached after the first
// successful retrieval.
type Source struct {
	envVar string
	prompt string

	// terminal overrides stdin detection and reading in tests.
	terminal func() (string, bool, error)

	once  sync.Once
	value string
	err   error
}

// NewSource constructs a passphrase source that checks envVar before
// prompting on the terminal.
func NewSource(envVar, prompt string) *Source {
	if strings.TrimSpace(prompt) == "" {
		prompt = "Enter keystore passphrase: "
	}
	s := &Source{envVar: strings.TrimSpace(envVar), prompt: prompt}
	s.terminal = s.readTerminal
	return s
}

func (s *Source) readTerminal() (string, bool, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", false, nil
	}
	fmt.Fprint(os.Stderr, s.prompt)
	bytes, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", true, err
	}
	return string(bytes), true, nil
}

// Get returns the cached passphrase or resolves it on first use. Whitespace
// only passphrases are rejected.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		if s.envVar != "" {
			if value, ok := os.LookupEnv(s.envVar); ok {
				if strings.TrimSpace(value) == "" {
					s.err = fmt.Errorf("%s is set but empty", s.envVar)
					return
				}
				s.value = value
				return
			}
		}

		value, interactive, err := s.terminal()
		switch {
		case !interactive && s.envVar != "":
			s.err = fmt.Errorf("keystore passphrase required; set %s or run interactively", s.envVar)
			return
		case !interactive:
			s.err = errors.New("keystore passphrase required and no terminal available")
			return
		case err != nil && !errors.Is(err, io.EOF):
			s.err = fmt.Errorf("failed to read passphrase: %w", err)
			return
		}
		if strings.TrimSpace(value) == "" {
			s.err = errors.New("keystore passphrase cannot be empty")
			return
		}
		s.value = value
	})

	return s.value, s.err
}
