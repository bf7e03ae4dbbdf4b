// Package commands implementa os comandos CLI da Manu usando cobra.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd cria o comando raiz do CLI com todos os subcomandos registrados.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "manu",
		Short: "Manu - Personal WhatsApp assistant",
		Long: `Manu is a personal WhatsApp assistant powered by Gemini.
It connects to WhatsApp Web via pairing code, answers the owner's
messages, and keeps an interaction log of everything else.

Examples:
  manu setup
  manu serve
  manu serve --config ./config.yaml
  manu logout`,
		Version: version,
	}

	// Registra subcomandos.
	rootCmd.AddCommand(
		newServeCmd(),
		newSetupCmd(),
		newLogoutCmd(),
	)

	// Flags globais.
	rootCmd.PersistentFlags().StringP("config", "c", "", "caminho para o arquivo de configuração")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "habilita logs detalhados")

	return rootCmd
}
