package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nexuscrm/taskdesk/internal/application/services"
	"github.com/nexuscrm/taskdesk/internal/config"
	"github.com/nexuscrm/taskdesk/pkg/auth"
	"github.com/nexuscrm/taskdesk/pkg/constants"
	"github.com/nexuscrm/taskdesk/pkg/models"
)

type userCounter interface {
	Count(ctx context.Context) (int, error)
}

type userRegistrar interface {
	Register(ctx context.Context, actor *auth.UserSession, in services.RegisterInput) (*models.User, error)
}

// InitializeSystemData creates the first administrator when the users table is
// empty and ADMIN_EMAIL/ADMIN_PASSWORD are set.
func InitializeSystemData(ctx context.Context, users userCounter, registrar userRegistrar, admin config.AdminConfig, logger *slog.Logger) error {
	n, err := users.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if n > 0 {
		return nil
	}
	if admin.Email == "" || admin.Password == "" {
		logger.Warn("no users exist and ADMIN_EMAIL/ADMIN_PASSWORD are not set; nobody can log in")
		return nil
	}

	u, err := registrar.Register(ctx, nil, services.RegisterInput{
		Name:     admin.Name,
		Email:    admin.Email,
		Password: admin.Password,
		Role:     constants.UserRoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	logger.Info("admin user created", "user_id", u.ID, "email", u.Email)
	return nil
}
