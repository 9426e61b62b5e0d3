package main

import (
	"github.com/fatecrafters/chronicle/internal/server"
	"github.com/fatecrafters/chronicle/internal/util"
	"github.com/fatecrafters/chronicle/pkg/logger"
	"github.com/fatecrafters/chronicle/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
