// Command gatewayctl 是运维用的命令行工具：迁移数据库、调整用户等级、停用账号。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gorm.io/gorm"

	"parallax-gateway/internal/config"
	"parallax-gateway/internal/model"
	"parallax-gateway/internal/repository"
	"parallax-gateway/internal/service"
	"parallax-gateway/internal/tier"
	"parallax-gateway/pkg/database"
	"parallax-gateway/pkg/log"
	"parallax-gateway/pkg/token"
)

const usage = `usage: gatewayctl [-config path] <command> [args]

commands:
  migrate                      create or update the database schema
  set-tier <email> <tier>      change a user's subscription tier (free|starter|pro|enterprise)
  deactivate <email>           deactivate a user account
  tiers                        print the monthly token limits per tier
`

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "path to config.yaml")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*configPath, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "gatewayctl: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, args []string) error {
	if args[0] == "tiers" {
		printTiers()
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log.Init(cfg.Log.Level, "console", "")
	defer log.Sync()

	db, err := database.Open(cfg.Database)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	switch args[0] {
	case "migrate":
		return database.Migrate(db, model.AllModels()...)
	case "set-tier":
		if len(args) != 3 {
			return errors.New("set-tier requires <email> <tier>")
		}
		svc, user, err := lookup(ctx, db, cfg, args[1])
		if err != nil {
			return err
		}
		updated, err := svc.SetTier(ctx, user.ID, tier.Tier(args[2]))
		if err != nil {
			return err
		}
		fmt.Printf("%s -> %s\n", updated.Email, updated.Tier)
		return nil
	case "deactivate":
		if len(args) != 2 {
			return errors.New("deactivate requires <email>")
		}
		svc, user, err := lookup(ctx, db, cfg, args[1])
		if err != nil {
			return err
		}
		if err := svc.Deactivate(ctx, user.ID); err != nil {
			return err
		}
		fmt.Printf("%s deactivated\n", user.Email)
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func lookup(ctx context.Context, db *gorm.DB, cfg *config.Config, email string) (service.UserService, *model.User, error) {
	repo := repository.NewUserRepository(db)
	user, err := repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("no user with email %q", email)
		}
		return nil, nil, err
	}
	svc := service.NewUserService(repo, token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenTTL()))
	return svc, user, nil
}

func printTiers() {
	fmt.Printf("%-12s", "tier")
	for _, m := range tier.Models() {
		fmt.Printf("%12s", m)
	}
	fmt.Println()
	for _, t := range tier.All() {
		fmt.Printf("%-12s", t)
		limits := tier.LimitsFor(t)
		for _, m := range tier.Models() {
			fmt.Printf("%12d", limits[m])
		}
		fmt.Println()
	}
}
