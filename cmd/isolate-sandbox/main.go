// Package main is the entry point for the isolate-sandbox CLI and
// server.
//
// Usage:
//
//	isolate-sandbox serve [--config path]
//	isolate-sandbox languages
//	isolate-sandbox exec [code] --language <name>
//	isolate-sandbox boxes ls|cat|rm <box-id>
package main

import "github.com/isolatesandbox/isolate-sandbox/internal/cli"

func main() {
	cli.Execute()
}
