// Package main é o ponto de entrada do CLI da Manu.
// Utiliza cobra para gerenciamento de comandos.
package main

import (
	"fmt"
	"os"

	"github.com/jholhewres/manu/cmd/manu/commands"
)

// version é injetado em build time via ldflags.
var version = "dev"

func main() {
	rootCmd := commands.NewRootCmd(version)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Erro: %v\n", err)
		os.Exit(1)
	}
}
