// Command schema prints the JSON schema of every websocket event.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"terrafort/server/internal/net/proto"
)

func main() {
	out := flag.String("o", "", "write to file instead of stdout")
	flag.Parse()

	data, err := json.MarshalIndent(proto.Schema(), "", "  ")
	if err != nil {
		log.Fatalf("encode schema: %v", err)
	}
	data = append(data, '\n')

	if *out == "" {
		os.Stdout.Write(data)
		return
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		log.Fatalf("write %s: %v", *out, err)
	}
}
