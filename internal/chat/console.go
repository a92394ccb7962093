package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"
)

// Console is a single-user transport over a reader and a writer, for running
// the bot locally without a chat platform.
type Console struct {
	in      io.Reader
	out     io.Writer
	author  string
	name    string
	channel string

	mu  sync.Mutex
	seq int
}

// NewConsole creates a console transport. Every line read from in is a
// message from author in channel.
func NewConsole(in io.Reader, out io.Writer, author, channel string) *Console {
	return &Console{in: in, out: out, author: author, name: author, channel: channel}
}

// Send writes text to the console output.
func (c *Console) Send(_ context.Context, channelID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "[%s] bot: %s\n", channelID, text)
	return err
}

// Run feeds input lines to handle until the input ends or ctx is done.
func (c *Console) Run(ctx context.Context, handle func(context.Context, Message)) error {
	lines := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errs <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errs:
					return err
				default:
					return nil
				}
			}
			if ctx.Err() != nil {
				return nil
			}
			handle(ctx, c.message(line))
		}
	}
}

func (c *Console) message(line string) Message {
	c.mu.Lock()
	c.seq++
	id := strconv.Itoa(c.seq)
	c.mu.Unlock()

	return Message{
		ID:         id,
		AuthorID:   c.author,
		AuthorName: c.name,
		ChannelID:  c.channel,
		Content:    line,
		Timestamp:  time.Now().UTC(),
	}
}
