package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"mimestream"
	"mimestream/internal/mbox"
)

func main() {
	// Command-line flags
	chunkSize := flag.Int("chunk", 0, "Override read chunk size in bytes (0 uses the source's natural chunking)")
	mboxMode := flag.Bool("mbox", false, "Treat each input as an mbox file with multiple messages")
	flag.Parse()

	var opts []mimestream.Option
	if *chunkSize > 0 {
		opts = append(opts, mimestream.WithChunkSize(*chunkSize))
	}

	files := flag.Args()
	if len(files) == 0 {
		if err := scanStream("stdin", os.Stdin, *mboxMode, opts); err != nil {
			log.Fatalf("Failed to scan stdin: %v", err)
		}
		return
	}

	for _, name := range files {
		f, err := os.Open(name) // #nosec G304 -- paths come from the command line
		if err != nil {
			log.Fatalf("Failed to open %s: %v", name, err)
		}
		err = scanStream(name, f, *mboxMode, opts)
		_ = f.Close()
		if err != nil {
			log.Fatalf("Failed to scan %s: %v", name, err)
		}
	}
}

func scanStream(name string, r io.Reader, mboxMode bool, opts []mimestream.Option) error {
	if !mboxMode {
		msg, err := mimestream.ParseMessage(mimestream.NewReaderSource(r), opts...)
		if err != nil {
			return err
		}
		printMessage(name, 1, msg)
		return nil
	}

	scanner := mbox.NewScanner(r)
	n := 0
	for scanner.Next() {
		n++
		msg, err := mimestream.ParseMessage(mimestream.NewBytesSource(scanner.Message()), opts...)
		if err != nil {
			return err
		}
		printMessage(name, n, msg)
	}
	return scanner.Err()
}

func printMessage(name string, n int, msg *mimestream.Message) {
	fmt.Printf("%s: message %d\n", name, n)
	if msg.MboxFrom != "" {
		fmt.Printf("  envelope: %s\n", msg.MboxFrom)
	}
	printPart(msg, 1)
}

func printPart(part *mimestream.Message, depth int) {
	indent := strings.Repeat("  ", depth)

	ct := part.ContentType()
	if ct == "" {
		ct = "text/plain"
	}
	if part.IsMultipart() {
		fmt.Printf("%s%s (boundary %q, %d parts)\n", indent, ct, part.Boundary, len(part.Parts))
		for _, child := range part.Parts {
			printPart(child, depth+1)
		}
	} else {
		fmt.Printf("%s%s (%d header fields, %d body bytes)\n", indent, ct, len(part.Fields), len(part.Body))
	}
}
