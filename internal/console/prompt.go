package console

import (
	"bufio"
	"io"
	"strings"
)

type promptValidator func(string) (bool, string)

type promptConfig struct {
	tries     int
	validator promptValidator
}

type promptOption func(*promptConfig)

func WithValidator(v promptValidator) promptOption {
	return func(cfg *promptConfig) {
		cfg.validator = v
	}
}

func WithMaxTries(i int) promptOption {
	return func(cfg *promptConfig) {
		cfg.tries = i
	}
}

// Prompt asks until the answer passes the validator. The reader is shared
// with the caller so no input is lost after the prompt returns.
func Prompt(r *bufio.Reader, w io.Writer, prompt string, opts ...promptOption) (string, error) {
	config := &promptConfig{}
	for _, opt := range opts {
		opt(config)
	}

	tries := 0
	for {
		if _, err := io.WriteString(w, prompt); err != nil {
			return "", err
		}

		line, err := r.ReadString('\n')
		if err != nil && line == "" {
			return "", err
		}
		input := strings.TrimSpace(line)

		if config.validator != nil {
			if ok, msg := config.validator(input); !ok {
				io.WriteString(w, msg)

				tries++
				if config.tries > 0 && config.tries == tries {
					io.WriteString(w, "Too many tries.\n")
					return "", ErrTooManyTries
				}
				continue
			}
		}

		return input, nil
	}
}
