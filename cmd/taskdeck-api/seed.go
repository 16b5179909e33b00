package main

import (
	"context"
	"errors"
	"fmt"

	"taskdeck-api/internal/auth"
	"taskdeck-api/internal/config"
	"taskdeck-api/internal/database"
	"taskdeck-api/internal/domain"
	"taskdeck-api/internal/observability/logger"
	"taskdeck-api/internal/repo"
	"taskdeck-api/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	seedAdminEmail    string
	seedAdminPassword string
	seedAdminName     string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed system teams and an initial admin user",
	Long: `Create or update the built-in system teams (Administrator, Manager, Member)
and, when --admin-email and --admin-password are given, a bootstrap admin user.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedAdminEmail, "admin-email", "", "email for the bootstrap admin user")
	seedCmd.Flags().StringVar(&seedAdminPassword, "admin-password", "", "password for the bootstrap admin user")
	seedCmd.Flags().StringVar(&seedAdminName, "admin-name", "System Administrator", "display name for the bootstrap admin user")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.OTELServiceName, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	teamService := service.NewTeamService(repo.NewTeamRepository(pool), log)
	if err := teamService.SeedSystemTeams(ctx); err != nil {
		return fmt.Errorf("failed to seed system teams: %w", err)
	}
	fmt.Println("✓ System teams seeded")

	if seedAdminEmail == "" {
		return nil
	}
	if seedAdminPassword == "" {
		return fmt.Errorf("--admin-password is required when --admin-email is set")
	}

	issuer := auth.NewIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
	userService := service.NewUserService(repo.NewUserRepository(pool), issuer, log)

	first, last := splitName(seedAdminName)
	user, err := userService.Create(ctx, &domain.CreateUserRequest{
		Email:     seedAdminEmail,
		Password:  seedAdminPassword,
		FirstName: first,
		LastName:  last,
		Roles:     []string{string(domain.RoleAdmin)},
	})
	if err != nil {
		if errors.Is(err, service.ErrEmailConflict) {
			fmt.Printf("✓ Admin user %s already exists, skipping\n", seedAdminEmail)
			return nil
		}
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	log.Info(ctx, "bootstrap admin created",
		logger.Module("seed"),
		logger.Action("create_admin"),
		zap.String("user_id", user.ID.String()),
	)
	fmt.Printf("✓ Admin user %s created\n", user.Email)
	return nil
}

// splitName splits a display name into first and last parts at the final
// space, so "System Administrator" becomes ("System", "Administrator").
func splitName(name string) (string, string) {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == ' ' {
			return name[:i], name[i+1:]
		}
	}
	return name, name
}
