package models

import (
	"testing"

	"github.com/huangang/uptask/internal/config"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestInitDB_UnsupportedDriver(t *testing.T) {
	err := InitDB(&config.DatabaseConfig{Driver: "oracle", DSN: "x"}, false)
	if err == nil {
		t.Error("InitDB should reject an unknown driver")
	}
}

func TestMigrate_CollaboratorJoinTable(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:models_migrate?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	owner := User{Name: "Owner", Email: "owner@example.com", Password: "x"}
	guest := User{Name: "Guest", Email: "guest@example.com", Password: "x"}
	db.Create(&owner)
	db.Create(&guest)

	project := Project{Name: "P", Description: "d", Client: "c", CreatorID: owner.ID}
	if err := db.Create(&project).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&ProjectCollaborator{ProjectID: project.ID, UserID: guest.ID}).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&ProjectCollaborator{ProjectID: project.ID, UserID: guest.ID}).Error; err == nil {
		t.Error("duplicate collaborator row should violate the primary key")
	}

	var loaded Project
	if err := db.Preload("Collaborators").First(&loaded, project.ID).Error; err != nil {
		t.Fatal(err)
	}
	if len(loaded.Collaborators) != 1 || loaded.Collaborators[0].Email != "guest@example.com" {
		t.Errorf("Collaborators = %+v", loaded.Collaborators)
	}
}
