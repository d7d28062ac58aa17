package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/feral-file/ff-nft-transfer/internal/domain"
	"github.com/feral-file/ff-nft-transfer/internal/wallet"
)

var errNoInput = errors.New("no input available")

// console serializes terminal output and prompts between the command and background submissions
type console struct {
	mu  sync.Mutex // guards out
	out io.Writer

	promptMu sync.Mutex // one question at a time
	in       *bufio.Reader
	readOnce sync.Once
	lines    chan inputLine
}

type inputLine struct {
	text string
	err  error
}

func newConsole(in io.Reader, out io.Writer) *console {
	return &console{in: bufio.NewReader(in), out: out, lines: make(chan inputLine)}
}

func (c *console) Printf(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// readLines is the only reader of the input. A line typed after a question
// was cancelled goes to the next question.
func (c *console) readLines() {
	defer close(c.lines)
	for {
		text, err := c.in.ReadString('\n')
		if text != "" || err == nil {
			c.lines <- inputLine{text: text}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.lines <- inputLine{err: err}
			}
			return
		}
	}
}

// Ask prints the question and returns the trimmed, lowercased answer
func (c *console) Ask(ctx context.Context, question string) (string, error) {
	c.promptMu.Lock()
	defer c.promptMu.Unlock()

	c.readOnce.Do(func() { go c.readLines() })
	c.Printf("%s", question)

	select {
	case <-ctx.Done():
		c.Printf("\n")
		return "", ctx.Err()
	case line, ok := <-c.lines:
		if !ok {
			return "", errNoInput
		}
		if line.err != nil {
			return "", line.err
		}
		return strings.ToLower(strings.TrimSpace(line.text)), nil
	}
}

// Approver asks before every signature
func (c *console) Approver(chain domain.Chain) wallet.Approver {
	return func(ctx context.Context, from common.Address, tx *types.Transaction) (bool, error) {
		to := ""
		if tx.To() != nil {
			to = tx.To().Hex()
		}
		question := fmt.Sprintf("Sign transaction on %s from %s to contract %s (nonce %d, gas %d)? [y/N] ",
			chainName(chain), domain.ShortenAddress(from.Hex(), 4), to, tx.Nonce(), tx.Gas())

		answer, err := c.Ask(ctx, question)
		if err != nil {
			return false, err
		}
		return answer == "y" || answer == "yes", nil
	}
}

func chainName(chain domain.Chain) string {
	if info, err := domain.LookupChain(chain); err == nil {
		return info.Name
	}
	return string(chain)
}
