// Package secrets подставляет секреты в свойства и переменные коннекторов.
//
// Поддерживаются два синтаксиса ссылок:
//   - значение целиком: "secrets.MY_TOKEN"
//   - плейсхолдер внутри строки: "Bearer {{secrets.MY_TOKEN}}"
//
// Значения берутся из Provider: переменные окружения, статический
// набор из конфигурации или таблица в Postgres (repo.SecretRepo).
package secrets
