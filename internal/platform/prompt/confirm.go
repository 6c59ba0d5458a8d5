package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

const (
	Question  = "Have you read above information and have the required parameters defined?"
	Exited    = "Distance batch exited. Thank you for using."
	invalidYN = "Please respond with 'yes' or 'no' (or 'y' or 'n').\n"
)

// Welcome is printed before the confirmation question.
const Welcome = `Welcome to Distance Batch.

This tool reads pairs of coordinates from the input table and asks the
routing service for the driving distance and duration between them.

Before you continue, make sure that:
  - the routing API key is set (routing.apiKey or DISTBATCH_ROUTING_APIKEY)
  - the input table exists and has a header row
  - the id and coordinate column labels match the input header
    (input.labels.id, fromLat, fromLong, toLat, toLong)

Results are written next to the input as <name>--<timestamp>.csv and every
row is recorded with its status in <name>--<timestamp>.log.
`

var answers = map[string]bool{
	"yes": true,
	"y":   true,
	"ye":  true,
	"no":  false,
	"n":   false,
}

// Confirm asks yes/no questions on a terminal-like stream pair.
type Confirm struct {
	in  *bufio.Reader
	out io.Writer
}

func NewConfirm(in io.Reader, out io.Writer) *Confirm {
	return &Confirm{in: bufio.NewReader(in), out: out}
}

// AskYesNo prints question and reads answers until a valid one is given.
// def is the answer used for an empty line: "yes", "no" or "" for none.
// End of input without a valid answer counts as no.
func (c *Confirm) AskYesNo(question, def string) (bool, error) {
	var suffix string
	switch def {
	case "":
		suffix = " [y/n] "
	case "yes":
		suffix = " [Y/n] "
	case "no":
		suffix = " [y/N] "
	default:
		return false, errors.Errorf("invalid default answer: %q", def)
	}

	for {
		fmt.Fprint(c.out, question+suffix)

		line, err := c.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, errors.Wrap(err, "read answer")
		}
		eof := err != nil

		choice := strings.ToLower(strings.TrimSpace(line))
		if choice == "" && !eof && def != "" {
			return answers[def], nil
		}
		if v, ok := answers[choice]; ok {
			return v, nil
		}
		if eof {
			fmt.Fprintln(c.out)
			return false, nil
		}

		fmt.Fprint(c.out, invalidYN)
	}
}

// Gate prints the welcome text and asks the standard question, default yes.
// It returns ctx.Err() as soon as ctx is canceled, even while waiting for
// input or when an answer arrives after the cancellation.
func (c *Confirm) Gate(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	fmt.Fprint(c.out, Welcome+"\n")

	type reply struct {
		ok  bool
		err error
	}
	// The reader goroutine stays blocked on input after a cancellation;
	// the process is about to exit at that point.
	replies := make(chan reply, 1)
	go func() {
		ok, err := c.AskYesNo(Question, "yes")
		replies <- reply{ok, err}
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case r := <-replies:
		if err := ctx.Err(); err != nil {
			return false, err
		}
		return r.ok, r.err
	}
}
