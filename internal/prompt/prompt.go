// Package prompt asks the user the questions an install needs answered.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// ErrNoInput means input ended before an answer was given.
var ErrNoInput = errors.New("no input available")

// Menu is an input_menu request. An empty answer selects Preselect.
type Menu struct {
	ID          string
	Description string
	Preselect   string
}

type Console struct {
	In  io.Reader
	Out io.Writer
	// Interactive is true when In is a terminal.
	Interactive bool

	once sync.Once
	br   *bufio.Reader
}

// NewConsole wires a console to the given streams; terminal detection only
// applies to *os.File inputs.
func NewConsole(in io.Reader, out io.Writer) *Console {
	c := &Console{In: in, Out: out}
	if f, ok := in.(*os.File); ok {
		fd := f.Fd()
		c.Interactive = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
	return c
}

func (c *Console) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.once.Do(func() { c.br = bufio.NewReader(c.In) })
	line, err := c.br.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		if errors.Is(err, io.EOF) {
			if !c.Interactive {
				return "", fmt.Errorf("%w (stdin is not a terminal; pass --yes to skip confirmation)", ErrNoInput)
			}
			return "", ErrNoInput
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Confirm asks a y/n question until it gets one of y, yes, n, no.
func (c *Console) Confirm(ctx context.Context, question string) (bool, error) {
	for {
		fmt.Fprintf(c.Out, "%s\n(y/n)\n", question)
		ans, err := c.readLine(ctx)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(ans) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
	}
}

func (c *Console) Choose(ctx context.Context, m Menu) (string, error) {
	label := m.Description
	if label == "" {
		label = m.ID
	}
	if m.Preselect != "" {
		fmt.Fprintf(c.Out, "%s [%s]: ", label, m.Preselect)
	} else {
		fmt.Fprintf(c.Out, "%s: ", label)
	}
	ans, err := c.readLine(ctx)
	if err != nil {
		return "", err
	}
	if ans == "" {
		return m.Preselect, nil
	}
	return ans, nil
}

// InsertDisc asks for the mount point of a disc that contains requires.
func (c *Console) InsertDisc(ctx context.Context, requires string) (string, error) {
	fmt.Fprintf(c.Out, "Insert the disc containing %q and enter its mount path: ", requires)
	ans, err := c.readLine(ctx)
	if err != nil {
		return "", err
	}
	if ans == "" {
		return "", fmt.Errorf("no disc path given")
	}
	return ans, nil
}
