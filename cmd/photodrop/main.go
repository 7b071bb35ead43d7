package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/photodrop/internal/app"
	"github.com/dmitrijs2005/photodrop/internal/buildinfo"
	"github.com/dmitrijs2005/photodrop/internal/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		log.Fatalf("%v", err)
	}

	a, err := app.NewApp(ctx, cfg, os.Stdout, os.Stderr)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := a.Run(ctx, os.Stdin); err != nil {
		log.Fatalf("%v", err)
	}

}
