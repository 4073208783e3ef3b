// Package cli реализует инструмент командной строки connectors-cli.
//
// # Обзор
//
// CLI работает с runtime API по HTTP и не зависит от внутреннего
// состояния runtime. Из внутренних пакетов используется только
// webhook коннектор: CLI подписывает запросы той же функцией,
// которой runtime проверяет подпись.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для runtime API. Ответы API приходят без обёртки,
// ошибки в виде {"error": {"code", "message"}}.
//
//	client := cli.NewClient("http://localhost:8085")
//	instances, err := client.ListInstances()
//
// Ответ webhook возвращается как есть (WebhookResponse): его статус
// определяется коннектором и не считается ошибкой клиента.
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) по умолчанию
//   - JSON с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Warn/Error) в stderr.
// Это позволяет использовать pipe: connectors-cli instances list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - instances: list, get, logs
//   - cluster: instances
//   - outbound: list
//   - webhook: send (с HMAC подписью через --hmac-secret)
//   - hmac: sign
//
// Каждая группа создаётся фабричной функцией (NewInstancesCmd и т.д.),
// принимающей clientFn и outputFn: замыкания создают Client и Output
// после парсинга PersistentFlags.
package cli
