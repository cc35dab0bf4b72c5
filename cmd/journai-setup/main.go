// Command journai-setup provisions the Journai Google Cloud environment:
// project, APIs, App Engine, Cloud SQL, secrets, backend, deployment, an
// optional custom domain, and monitoring.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
