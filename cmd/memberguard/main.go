// Package main provides a CLI for working with member access rulesets
// offline: linting selector lists against a declared type graph and
// answering exposure queries without a running server.
package main

func main() {
	Execute()
}
