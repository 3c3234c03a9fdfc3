package main

import (
	"newsradar/cmd/handlers"
	"newsradar/internal/logger"
)

func main() {
	logger.Init()
	handlers.Execute()
}
