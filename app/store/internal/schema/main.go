// Command schema prints the JSON schema for the seed dataset, used to
// validate hand-edited seed files before deployment. With an argument the
// schema is written to that path instead of stdout.
package main

import (
	"encoding/json"
	"log"
	"os"

	"github.com/postbureau/dispatch/app/store"
)

func main() {
	schema, err := store.GenerateSchema()
	if err != nil {
		log.Fatalf("failed to generate schema: %v", err)
	}
	schema.Title = "Dispatch Seed Data"
	schema.Description = "Seed dataset loaded into an empty dispatch database on first start"
	schema.Version = "1.0.0"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal schema: %v", err)
	}
	data = append(data, '\n')

	if len(os.Args) > 1 {
		if err := os.WriteFile(os.Args[1], data, 0o600); err != nil {
			log.Fatalf("failed to write %s: %v", os.Args[1], err)
		}
		return
	}
	if _, err := os.Stdout.Write(data); err != nil {
		log.Fatalf("failed to write schema: %v", err)
	}
}
