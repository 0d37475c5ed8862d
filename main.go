package main

import (
	"flag"

	"github.com/avolkov/blogcms/config"
	"github.com/avolkov/blogcms/models"
	"github.com/avolkov/blogcms/routes"
	"github.com/avolkov/blogcms/seed"
	"github.com/avolkov/blogcms/utils"
)

func main() {
	seedFlag := flag.Bool("seed", false, "populate the database with fake demo data and exit")
	flag.Parse()

	cfg := config.Load()

	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(
		&models.User{},
		&models.Category{},
		&models.Location{},
		&models.Post{},
		&models.Comment{},
	)

	if *seedFlag {
		if err := seed.Run(db); err != nil {
			utils.Sugar.Fatalf("seeding failed: %v", err)
		}
		utils.Sugar.Info("seeding finished")
		return
	}

	r := routes.SetupRouter(db)

	utils.Sugar.Infof("starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
