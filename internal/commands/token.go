package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"evalgo.org/dockhand/internal/auth"
	"evalgo.org/dockhand/models"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage authentication tokens",
	Long:  `Generate authentication tokens for API access`,
}

var generateTokenCmd = &cobra.Command{
	Use:   "generate [subject]",
	Short: "Generate an API access token",
	Long: `Generate a JWT token for API authentication.

The token is signed with the jwt_secret from the configuration file. The
subject names the token holder and shows up in request logs.

Examples:
  # Read-only token
  dockhand token generate ci-dashboard --role viewer

  # Operator token able to run container and stack operations
  dockhand token generate deploy-bot --role operator

  # Admin token
  dockhand token generate alice --role admin`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerateToken,
}

var tokenRole string

func init() {
	generateTokenCmd.Flags().StringVar(&tokenRole, "role", "viewer", "Token role (viewer, operator, admin)")

	tokenCmd.AddCommand(generateTokenCmd)
}

func runGenerateToken(cmd *cobra.Command, args []string) error {
	subject := args[0]

	role := models.Role(tokenRole)
	switch role {
	case models.RoleViewer, models.RoleOperator, models.RoleAdmin:
	default:
		return fmt.Errorf("unknown role %q: must be viewer, operator, or admin", tokenRole)
	}

	if cfg.Security.JWTSecret == "" {
		return fmt.Errorf(`jwt_secret not found in config file

Add to your config.yaml:
  security:
    jwt_secret: your-secret-here`)
	}

	token, err := auth.NewJWTService(cfg).GenerateToken(subject, []models.Role{role})
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	fmt.Printf("Token Generated Successfully\n")
	fmt.Printf("============================\n\n")
	fmt.Printf("Subject:    %s\n", subject)
	fmt.Printf("Role:       %s\n", role)
	fmt.Printf("Expiration: %s\n", cfg.Security.JWTExpiration)
	fmt.Printf("\nToken:\n%s\n\n", token)
	fmt.Printf("Use it as a Bearer token:\n")
	fmt.Printf("  curl -H \"Authorization: Bearer <token>\" http://localhost:%d/api/v1/hosts\n", cfg.Server.Port)

	return nil
}
