package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/parleyhq/debate-api/api/handlers"

	"go.uber.org/zap"

	"github.com/parleyhq/debate-api/config"
)

func main() {
	a := handlers.App{}
	a.Config = *config.New()

	if err := a.Initialize(); err != nil { //initialize database, engine and router
		log.Fatal(err)
	}
	defer a.Shutdown()

	port := os.Getenv("PORT")
	baseURL := os.Getenv("BASE_URL")
	zap.S().Infow("debate-api is up and running",
		"port", port,
		"url", baseURL,
	)
	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%v", port), a.Router))
}
