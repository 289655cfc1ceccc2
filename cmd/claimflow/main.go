// Package main is the entry point for the Claimflow Service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/claimflow/internal/claimflow"
)

func main() {
	claimflow.NewApp().Run()
}
