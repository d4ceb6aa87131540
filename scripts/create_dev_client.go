package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/coffeepula/pos-api/internal/config"
	"github.com/coffeepula/pos-api/internal/database"
	"github.com/coffeepula/pos-api/internal/models"
	"github.com/coffeepula/pos-api/internal/services"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Creates a staff account and a terminal client for local development.
// The client secret is printed once and cannot be recovered.
func main() {
	role := flag.String("role", models.RoleManager, "Staff role (manager or cashier)")
	password := flag.String("password", "dev-password-123", "Password for the staff account")
	terminal := flag.String("terminal", "Front counter", "Terminal name")
	flag.Parse()

	if !services.ValidRole(*role) {
		log.Fatalf("Unknown role %q", *role)
	}

	_ = godotenv.Load()
	conf, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	db, err := database.InitDatabase(conf.Database())
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("Failed to migrate database")
	}

	ctx := context.Background()
	users := services.NewUserService(db)
	email := fmt.Sprintf("%s@coffeepula.local", *role)

	user, err := users.GetUserByEmail(ctx, email)
	var notFound *services.NotFoundError
	switch {
	case errors.As(err, &notFound):
		user, err = users.CreateUser(ctx, services.UserInput{
			Email:    email,
			Name:     fmt.Sprintf("Development %s", *role),
			Role:     *role,
			Password: *password,
		})
		if err != nil {
			log.WithError(err).Fatal("Failed to create user")
		}
		fmt.Printf("Created user %s (ID: %d, Role: %s)\n", user.Email, user.ID, user.Role)
	case err != nil:
		log.WithError(err).Fatal("Failed to look up user")
	default:
		fmt.Printf("Found existing user %s (ID: %d, Role: %s)\n", user.Email, user.ID, user.Role)
	}

	client, secret, err := services.NewClientService(db).CreateClient(ctx, user.ID, services.ClientInput{
		Name:   *terminal,
		Domain: "http://localhost",
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to create client")
	}

	fmt.Printf("Client ID: %s\n", client.ID)
	fmt.Printf("Client Secret: %s\n", secret)
	fmt.Println("\nRequest a token with:")
	fmt.Printf("curl -X POST http://%s:%d/oauth/token \\\n", conf.Host, conf.Port)
	fmt.Printf("  -d 'grant_type=client_credentials' \\\n")
	fmt.Printf("  -d 'client_id=%s' \\\n", client.ID)
	fmt.Printf("  -d 'client_secret=%s'\n", secret)
}
