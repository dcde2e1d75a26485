// Command sqsbatch sends, reads and purges SQS messages from the command
// line using the batching client of package sqs.
package main

import (
	"os"
)

func main() {
	if err := newApp(os.Stdin, os.Stdout, os.Stderr).command().Execute(); err != nil {
		os.Exit(1)
	}
}
