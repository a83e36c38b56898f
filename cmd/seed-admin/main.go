// seed-admin creates or updates the admin profile.
//
// Usage:
//
//	ADMIN_PASSWORD=... DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin
//
// ADMIN_USERNAME defaults to "admin", ADMIN_NAME to "Administrator".
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fr33d0m21/pull/config"
	"github.com/fr33d0m21/pull/models"
	"github.com/fr33d0m21/pull/utils"
	"gorm.io/gorm"
)

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func main() {
	username := envOr("ADMIN_USERNAME", "admin")
	name := envOr("ADMIN_NAME", "Administrator")
	password := os.Getenv("ADMIN_PASSWORD")
	if len(password) < 6 {
		fmt.Fprintln(os.Stderr, "ADMIN_PASSWORD must be set (at least 6 characters)")
		os.Exit(2)
	}

	ctx := utils.SetSkipTenantScopeInContext(context.Background(), true)
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	if !config.EnvBool("SKIP_MIGRATIONS") {
		models.MigrateTable()
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}

	var existing models.User
	err = db.WithContext(ctx).Where("username = ?", username).First(&existing).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		u := models.User{
			Username:    username,
			Name:        name,
			Password:    string(hashed),
			Role:        models.UserRoleAdmin,
			Permissions: models.DefaultPermissions(models.UserRoleAdmin),
			IsActive:    utils.NewTrue(),
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin user: username=%q\n", username)
		return
	}

	if err := db.WithContext(ctx).Model(&models.User{}).Where("id = ?", existing.ID).Updates(map[string]any{
		"password":    string(hashed),
		"name":        name,
		"is_active":   true,
		"role":        models.UserRoleAdmin,
		"permissions": models.DefaultPermissions(models.UserRoleAdmin),
	}).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
		os.Exit(1)
	}
	_ = existing.RemoveInstanceRedis(ctx)
	fmt.Printf("Updated admin user: username=%q\n", username)
}
