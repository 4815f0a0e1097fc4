// casetriage classifies support cases as code defects or not and resolves
// the code entity most likely responsible.
//
// Usage:
//
//	casetriage evaluate case.yaml [--catalog=catalog.yaml] [--config=engine.yaml]
//	casetriage batch cases.yaml --concurrency=8
//	casetriage benchmark dataset.json
//	casetriage search "order fails at checkout" --embedding-provider=openai
package main

import (
	"fmt"
	"os"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
