// seed loads demo users and refueling requests into the configured database.
//
// Without flags it applies the embedded fixture: one distributor, one sales and one shift
// user, plus requests in every status. --fixture points at another YAML file of the same shape.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/appdotbuilder/vehicle-refuel-manager/internal/config"
	"github.com/appdotbuilder/vehicle-refuel-manager/internal/database"
	"github.com/appdotbuilder/vehicle-refuel-manager/internal/logger"
	"github.com/appdotbuilder/vehicle-refuel-manager/internal/repository"
	"github.com/appdotbuilder/vehicle-refuel-manager/internal/seed"

	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var fixturePath string
	var password string
	var timeout time.Duration

	flagSet := pflag.NewFlagSet("seed", pflag.ContinueOnError)
	flagSet.StringVar(&fixturePath, "fixture", "", "path to a YAML fixture (default: embedded demo data)")
	flagSet.StringVar(&password, "password", "", "override the fixture password for every seeded user")
	flagSet.DurationVar(&timeout, "timeout", time.Minute, "abort seeding after this long")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		fmt.Fprintln(os.Stderr, "Usage: seed [flags]")
		flagSet.PrintDefaults()
		return nil
	}

	data := seed.DefaultFixture
	if fixturePath != "" {
		raw, err := os.ReadFile(fixturePath)
		if err != nil {
			return fmt.Errorf("reading fixture: %w", err)
		}
		data = raw
	}
	fixture, err := seed.Parse(data)
	if err != nil {
		return err
	}
	if password != "" {
		fixture.Password = password
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	db, err := database.NewConnection(cfg.Database, log)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	seeder := seed.NewSeeder(
		repository.NewUserRepository(db),
		repository.NewRefuelingRepository(db),
		repository.NewTransactionManager(db),
		log,
	)
	res, err := seeder.Apply(ctx, fixture)
	if err != nil {
		return err
	}

	fmt.Printf("users: %d created, %d skipped; requests: %d created, %d skipped\n",
		res.UsersCreated, res.UsersSkipped, res.RequestsCreated, res.RequestsSkipped)
	return nil
}
