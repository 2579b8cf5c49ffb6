package cli

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/awnumar/memguard"
	"github.com/pkg/errors"
	"golang.org/x/term"
)

// PasswordReader reads one password after printing prompt.
type PasswordReader func(prompt string) ([]byte, error)

// TerminalPasswordReader reads from the terminal without echo. When in is
// not a terminal it reads a line from lines instead, so passwords can be
// piped in. lines must wrap in.
func TerminalPasswordReader(in *os.File, lines *bufio.Reader, out io.Writer) PasswordReader {
	return func(prompt string) ([]byte, error) {
		fmt.Fprint(out, prompt)
		fd := int(in.Fd())
		if !term.IsTerminal(fd) {
			return readSecretLine(lines)
		}
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return nil, errors.Wrap(err, "reading password")
		}
		return pw, nil
	}
}

func readSecretLine(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadBytes('\n')
	if err != nil && (err != io.EOF || len(line) == 0) {
		memguard.WipeBytes(line)
		return nil, errors.Wrap(err, "reading password")
	}
	pw := bytes.TrimRight(line, "\r\n")
	out := append([]byte(nil), pw...)
	memguard.WipeBytes(line)
	return out, nil
}

// readNewPassword asks twice and returns the password once both match.
func readNewPassword(read PasswordReader, what string) ([]byte, error) {
	first, err := read(fmt.Sprintf("Choose %s: ", what))
	if err != nil {
		return nil, err
	}
	if len(first) == 0 {
		return nil, fmt.Errorf("%s cannot be empty", what)
	}
	again, err := read(fmt.Sprintf("Type %s again: ", what))
	if err != nil {
		memguard.WipeBytes(first)
		return nil, err
	}
	defer memguard.WipeBytes(again)
	if !bytes.Equal(first, again) {
		memguard.WipeBytes(first)
		return nil, fmt.Errorf("the two %ss do not match", what)
	}
	return first, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", errors.Wrap(err, "reading input")
	}
	return strings.TrimSpace(line), nil
}

func readChoice(r *bufio.Reader, max int) (int, error) {
	line, err := readLine(r)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > max {
		return 0, fmt.Errorf("%q is not a number between 1 and %d", line, max)
	}
	return n, nil
}
