// Command seed writes a synthetic transaction history for one user and
// prints the resulting report summary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"finreport/internal/cli"
	"finreport/internal/log"
	"finreport/internal/seed"
)

func main() {
	user := flag.String("user", "", "user id to seed (required)")
	months := flag.Int("months", 12, "months of history to generate")
	force := flag.Bool("force", false, "replace existing transactions")
	randSeed := flag.Int64("seed", time.Now().UnixNano(), "random seed for reproducible histories")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentSeed)

	if *user == "" || *months < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := cli.LoadAndValidateConfig(logger)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	be := cli.OpenBackend(ctx, logger, cfg)
	defer be.Close()
	if be.Writer == nil {
		logger.Error("Backend is read-only, cannot seed", log.FieldBackend, be.Name.String())
		os.Exit(1)
	}

	gen := seed.NewGenerator(seed.DefaultOptions(), rand.New(rand.NewSource(*randSeed)), time.Now)
	res, err := seed.NewSeeder(gen, be.Writer, logger).Seed(ctx, *user, *months, *force)
	if errors.Is(err, seed.ErrAlreadySeeded) {
		logger.Error("User already has transactions, rerun with -force to replace them", log.FieldUserID, *user)
		os.Exit(1)
	}
	if err != nil {
		logger.Error("Seeding failed", log.FieldError, err)
		os.Exit(1)
	}

	rep, err := cli.NewAssembler(ctx, logger, cfg, be).BuildRollingReport(ctx, *user, *months)
	if err != nil {
		logger.Error("Report failed", log.FieldError, err)
		os.Exit(1)
	}

	fmt.Printf("Seeded %d transactions for %s (%d deleted)\n", res.Inserted, res.UserID, res.Deleted)
	fmt.Printf("Period:       %s\n", rep.Period)
	fmt.Printf("Income:       %.2f\n", rep.Summary.Income)
	fmt.Printf("Expenses:     %.2f\n", rep.Summary.Expenses)
	fmt.Printf("Balance:      %.2f\n", rep.Summary.Balance)
	fmt.Printf("Savings rate: %.1f%%\n", rep.Summary.SavingsRate)
	for _, c := range rep.Summary.TopCategories {
		fmt.Printf("  %-20s %10.2f\n", c.Name, c.Amount)
	}
	if len(rep.Anomalies) > 0 {
		fmt.Printf("Anomalies:    %d\n", len(rep.Anomalies))
	}
}
