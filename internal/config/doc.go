// Package config - конфигурация runtime.
//
// Источники в порядке приоритета:
//  1. переменные окружения (API_PORT, DB_URL, ENGINE_URL, ENGINE_TOKEN, CONNECTORS_PEERS)
//  2. YAML файл из CONNECTORS_CONFIG
//  3. значения по умолчанию
//
// Файл также может содержать статические секреты и process definitions
// (см. FileSource). Изменения файлов отслеживает Watcher.
package config
