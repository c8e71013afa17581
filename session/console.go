package session

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// Console reads answers line by line and writes menus. Once input ends every
// read fails and Closed reports true.
type Console struct {
	sc     *bufio.Scanner
	out    io.Writer
	secret func(prompt string) (string, bool)
	closed bool
}

// NewConsole reads from in and writes to out. Passwords are masked when in is
// a terminal.
func NewConsole(in io.Reader, out io.Writer) *Console {
	c := &Console{sc: bufio.NewScanner(in), out: out}
	c.secret = c.Prompt
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		c.secret = func(prompt string) (string, bool) { return c.readPassword(int(f.Fd()), prompt) }
	}
	return c
}

// readPassword reads a password with masking.
func (c *Console) readPassword(fd int, prompt string) (string, bool) {
	fmt.Fprint(c.out, prompt)
	bytePassword, err := term.ReadPassword(fd)
	fmt.Fprintln(c.out) // Add newline after password input
	if err != nil {
		c.closed = true
		return "", false
	}
	return strings.TrimSpace(string(bytePassword)), true
}

func (c *Console) Closed() bool { return c.closed }

func (c *Console) Printf(format string, args ...any) { fmt.Fprintf(c.out, format, args...) }

func (c *Console) Println(args ...any) { fmt.Fprintln(c.out, args...) }

// Prompt prints prompt and returns the trimmed answer.
func (c *Console) Prompt(prompt string) (string, bool) {
	if c.closed {
		return "", false
	}
	fmt.Fprint(c.out, prompt)
	if !c.sc.Scan() {
		c.closed = true
		fmt.Fprintln(c.out)
		return "", false
	}
	return strings.TrimSpace(c.sc.Text()), true
}

// Secret prompts for a password.
func (c *Console) Secret(prompt string) (string, bool) {
	if c.closed {
		return "", false
	}
	return c.secret(prompt)
}

// Choice asks until the answer is a number between 1 and max.
func (c *Console) Choice(prompt string, max int) (int, bool) {
	for {
		answer, ok := c.Prompt(prompt)
		if !ok {
			return 0, false
		}
		n, err := strconv.Atoi(answer)
		if err == nil && n >= 1 && n <= max {
			return n, true
		}
		c.Printf("Invalid choice. Please enter a number between 1 and %d.\n", max)
	}
}

// Menu prints a numbered list and returns the picked number.
func (c *Console) Menu(title string, items ...string) (int, bool) {
	c.Printf("\n=== %s ===\n", title)
	for i, item := range items {
		c.Printf("%d. %s\n", i+1, item)
	}
	return c.Choice("Enter your choice: ", len(items))
}
