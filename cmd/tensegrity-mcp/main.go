package main

import (
	"flag"
	"log"

	"github.com/softphys/tensegrity/pkg/mcp"
	"github.com/softphys/tensegrity/pkg/store"
)

func main() {
	var dbPath string
	flag.StringVar(&dbPath, "db", "tensegrity.db", "SQLite run archive (empty = no archiving)")
	flag.Parse()

	var archive *store.Store
	if dbPath != "" {
		var err error
		archive, err = store.NewStore(dbPath)
		if err != nil {
			log.Fatalf("Failed to open archive: %v", err)
		}
		defer archive.Close()
	}

	server := mcp.NewServer(archive)
	if err := server.Serve(); err != nil {
		log.Fatalf("MCP server failed: %v", err)
	}
}
