// Command schemagen generates the JSON schema embedded in pkg/config.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/invopop/jsonschema"

	"rulesync/pkg/config"
)

var outFile = flag.String("o", "schema.json", "Output file for the generated schema")

func main() {
	flag.Parse()

	r := &jsonschema.Reflector{}

	// Field comments become schema descriptions.
	err := r.AddGoComments("rulesync/pkg/config", "./")
	if err != nil {
		log.Fatalf("add go comments: %v", err)
	}

	js := r.Reflect(&config.Config{})
	js.ID = "https://rulesync.dev/config.v1beta1.json"

	jsData, err := json.MarshalIndent(js, "", "  ")
	if err != nil {
		log.Fatalf("generate JSON schema: %v", err)
	}

	err = os.WriteFile(*outFile, append(jsData, '\n'), 0o600)
	if err != nil {
		log.Fatalf("write schema file: %v", err)
	}
}
