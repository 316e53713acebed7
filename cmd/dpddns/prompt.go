package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"dpddns/dnspod"
)

// ErrUnattended is returned instead of blocking when a one-time code is
// needed but nobody is at a terminal to type it.
var ErrUnattended = errors.New("one-time code needed but stdin is not a terminal")

type terminal struct {
	fd           int
	isTerminal   func(fd int) bool
	readPassword func(fd int) ([]byte, error)
	out          io.Writer
}

// codePrompt hands out the --code value once, then asks on the terminal.
// Reading gives up after timeout.
func codePrompt(tty terminal, code string, timeout time.Duration) dnspod.CodePrompt {
	return func(ctx context.Context) (string, error) {
		if code != "" {
			c := code
			code = ""
			return c, nil
		}

		if !tty.isTerminal(tty.fd) {
			return "", ErrUnattended
		}

		if timeout > 0 {
			tCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			ctx = tCtx
		}

		type result struct {
			code []byte
			err  error
		}
		ch := make(chan result, 1)

		fmt.Fprint(tty.out, "Please input your one-time code: ")
		go func() {
			b, err := tty.readPassword(tty.fd)
			ch <- result{b, err}
		}()

		select {
		case r := <-ch:
			fmt.Fprintln(tty.out)
			if r.err != nil {
				return "", r.err
			}
			return strings.TrimSpace(string(r.code)), nil
		case <-ctx.Done():
			fmt.Fprintln(tty.out)
			return "", fmt.Errorf("waiting for one-time code: %w", ctx.Err())
		}
	}
}
