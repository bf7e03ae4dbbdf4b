package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/jholhewres/manu/pkg/manu/bot"
	"github.com/spf13/cobra"
)

// newSetupCmd creates the `manu setup` command for interactive configuration.
func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactive setup wizard",
		Long: `Starts an interactive wizard to create your initial config.yaml.
Asks for the assistant name, owner phone number, Gemini model, and API key.
The API key is stored in the OS keyring, never in plaintext on disk.

Examples:
  manu setup`,
		RunE: runSetup,
	}
}

// runSetup executes the interactive setup flow.
func runSetup(_ *cobra.Command, _ []string) error {
	cfg := bot.DefaultConfig()

	var apiKey string
	save := true

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Nome da assistente").
				Value(&cfg.Name),
			huh.NewInput().
				Title("Seu número de telefone (dono)").
				Description("Com código do país, sem +, espaços ou traços. Ex: 5511999998888").
				Value(&cfg.OwnerNumber).
				Validate(validatePhone),
			huh.NewInput().
				Title("Prefixo de comando").
				Description("Mensagens começando com este prefixo são registradas como comandos.").
				Value(&cfg.Prefix),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Modelo Gemini").
				Options(
					huh.NewOption("Gemini 2.5 Flash (padrão)", "gemini-2.5-flash"),
					huh.NewOption("Gemini 2.5 Pro", "gemini-2.5-pro"),
					huh.NewOption("Gemini 2.0 Flash", "gemini-2.0-flash"),
					huh.NewOption("Gemini 1.5 Flash", "gemini-1.5-flash"),
				).
				Value(&cfg.Model),
			huh.NewInput().
				Title("Chave de API do Gemini").
				Description("Armazenada no keyring do sistema. Deixe vazio para configurar depois.").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),
			huh.NewInput().
				Title("Número para pareamento (opcional)").
				Description("Usado no login por código de pareamento. Vazio: perguntado no primeiro serve.").
				Value(&cfg.Channels.WhatsApp.PhoneNumber),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Salvar em config.yaml?").
				Affirmative("Sim").
				Negative("Não").
				Value(&save),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("setup aborted: %w", err)
	}
	if !save {
		fmt.Println("Setup cancelado.")
		return nil
	}

	cfg.OwnerNumber = normalizePhone(cfg.OwnerNumber)
	cfg.Channels.WhatsApp.PhoneNumber = normalizePhone(cfg.Channels.WhatsApp.PhoneNumber)

	// Store the key in the OS keyring; config.yaml never holds the real key.
	keyStored := false
	if apiKey = strings.TrimSpace(apiKey); apiKey != "" {
		if err := bot.StoreKeyring("api_key", apiKey); err != nil {
			fmt.Printf("[!] Não foi possível guardar a chave no keyring: %v\n", err)
			fmt.Println("    Defina GEMINI_API_KEY no ambiente ou no .env.")
		} else {
			keyStored = true
		}
	}
	cfg.API.APIKey = "${GEMINI_API_KEY}"

	target := "config.yaml"
	if _, err := os.Stat(target); err == nil {
		overwrite := false
		confirm := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("%s já existe. Sobrescrever?", target)).
				Affirmative("Sim").
				Negative("Não").
				Value(&overwrite),
		))
		if err := confirm.Run(); err != nil {
			return err
		}
		if !overwrite {
			fmt.Println("Setup cancelado. Arquivo existente mantido.")
			return nil
		}
	}

	if err := bot.SaveConfigToFile(cfg, target); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Printf("%s criado com sucesso!\n", target)
	if keyStored {
		fmt.Println("  - Chave de API guardada no keyring do sistema")
	} else {
		fmt.Println("  - Chave de API ainda não configurada (defina GEMINI_API_KEY)")
	}
	fmt.Println("  - config.yaml sem segredos (permissões: 600)")
	fmt.Println()
	fmt.Println("Próximos passos:")
	fmt.Println("  1. Execute: manu serve")
	fmt.Println("  2. Digite o código de pareamento no seu WhatsApp")
	fmt.Println()

	return nil
}

// validatePhone checks that a phone number has at least a country code and
// a local number after stripping formatting.
func validatePhone(phone string) error {
	digits := normalizePhone(phone)
	if digits == "" {
		return fmt.Errorf("o número de telefone é obrigatório")
	}
	if len(digits) < 10 {
		return fmt.Errorf("número muito curto, inclua o código do país (ex: 5511999998888)")
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return fmt.Errorf("use apenas dígitos (ex: 5511999998888)")
		}
	}
	return nil
}

// normalizePhone removes common phone number formatting characters.
func normalizePhone(phone string) string {
	phone = strings.ReplaceAll(phone, "+", "")
	phone = strings.ReplaceAll(phone, " ", "")
	phone = strings.ReplaceAll(phone, "-", "")
	phone = strings.ReplaceAll(phone, "(", "")
	phone = strings.ReplaceAll(phone, ")", "")
	return strings.TrimSpace(phone)
}
