// Package config загружает настройки genflow-worker через viper.
//
// Источники по убыванию приоритета: переменные окружения, файл .env
// в рабочей директории (необязателен), значения по умолчанию.
// LOG_LEVEL и LOG_FORMAT читает telemetry.SetupLogger.
package config
