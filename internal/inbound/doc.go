// Package inbound реализует runtime inbound коннекторов.
//
// Основные части:
//   - CorrelationHandler - выбор элемента по activation condition и
//     корреляция события с процессом (создание instance или публикация сообщения);
//   - Registry - жизненный цикл executables: активация, деактивация, health,
//     журнал активности и реестр webhook контекстов;
//   - StateStore и Importer - вычисление изменений по последним версиям
//     процессов и генерация событий активации;
//   - ReduceInstances - слияние отчётов нескольких экземпляров runtime.
//
// Все события активации обрабатываются одной горутиной Registry,
// поэтому состояние executables не требует сложной синхронизации.
package inbound
