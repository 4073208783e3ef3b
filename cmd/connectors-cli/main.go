// Connectors CLI: инструмент командной строки для просмотра
// состояния runtime и вызова webhooks через HTTP API.
//
// Использование:
//
//	connectors-cli [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	instances  Активные inbound коннекторы
//	cluster    Объединённое состояние кластера
//	outbound   Зарегистрированные outbound коннекторы
//	webhook    Вызов webhooks
//	hmac       HMAC подписи
package main

import (
	"fmt"
	"os"

	"github.com/shaiso/Connectors/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	rootCmd := cli.NewRootCmd(version, os.Stdout, os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
