// Package logger provee un logger Zap singleton con scoping por contexto.
//
// Inicialización (una vez en main.go):
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, ServiceName: "afrinexa-portal"})
//	defer logger.Sync()
//
// En handlers/services:
//
//	log := logger.From(ctx)
//	log.Info("admin access granted", logger.UserID(id.ID))
//
// Los campos de este paquete nunca deben recibir tokens ni contraseñas.
package logger
