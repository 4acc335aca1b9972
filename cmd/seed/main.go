package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"vidyavichar/internal/config"
	"vidyavichar/internal/model"
	"vidyavichar/internal/repository"
	"vidyavichar/internal/service"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type demoUser struct {
	ID    string
	Email string
}

func main() {
	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required to issue demo tokens")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(ctx)

	db := client.Database(cfg.MongoDatabase)
	if err := repository.EnsureIndexes(ctx, db); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}
	courseRepo := repository.NewCourseRepo(db)

	users := []demoUser{
		{ID: "user_instructor_demo", Email: "instructor@iiit.ac.in"},
		{ID: "user_student_demo", Email: "student@students.iiit.ac.in"},
	}

	courses := []*model.Course{
		{
			ID:           "course_se_demo",
			Name:         "Software Engineering",
			Code:         "CS6.401",
			Description:  "Design, testing and delivery of large systems.",
			InstructorID: users[0].ID,
		},
		{
			ID:           "course_ds_demo",
			Name:         "Distributed Systems",
			Code:         "CS3.401",
			Description:  "Replication, consensus and fault tolerance.",
			InstructorID: users[0].ID,
		},
	}

	for _, c := range courses {
		err := courseRepo.Create(ctx, c)
		switch {
		case mongo.IsDuplicateKeyError(err):
			fmt.Printf("Course '%s' (%s) already exists\n", c.Name, c.ID)
		case err != nil:
			log.Fatalf("Failed to insert course %s: %v", c.ID, err)
		default:
			fmt.Printf("Created course '%s' (%s)\n", c.Name, c.ID)
		}
	}

	authSvc := service.NewAuthService(cfg.JWTSecret, cfg.JWTIssuer)
	for _, u := range users {
		role := model.ClassifyRole(u.Email, cfg.StudentEmailDomains)
		token, err := authSvc.IssueToken(u.ID, u.Email, role, 24*time.Hour)
		if err != nil {
			log.Fatalf("Failed to issue token for %s: %v", u.Email, err)
		}
		fmt.Printf("\n%s (%s)\n%s\n", u.Email, role, token)
	}
}
