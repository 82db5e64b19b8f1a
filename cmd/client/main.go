package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/bbeck/locations/internal"
	"github.com/bbeck/locations/internal/protocol"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:40000", "address of the location server")
	flag.Parse()

	logger, err := internal.NewLogger(os.Stderr, "info", "auto")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	client, err := protocol.Dial(*addr)
	if err != nil {
		logger.Crit("error connecting", "addr", *addr, "err", err)
		os.Exit(1)
	}
	defer client.Close()

	if err := repl(client, os.Stdin, os.Stdout); err != nil {
		logger.Error("connection lost", "err", err)
		os.Exit(1)
	}
}

// repl sends every line read from in to the server and prints the replies,
// until either side is done.
func repl(client *protocol.Client, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		replies, err := client.Send(scanner.Text())
		for _, reply := range replies {
			fmt.Fprintln(out, reply)
		}

		// The server hangs up after a kill or a malformed command.
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}

	return scanner.Err()
}
