package models

import (
	"github.com/fr33d0m21/pull/config"
	"github.com/sirupsen/logrus"
)

// schemaModels is every table, parents before children.
var schemaModels = []interface{}{
	&Store{},
	&User{}, &UserStore{},
	&Spreadsheet{},
	&RemovalOrder{}, &ReceivedUnit{}, &TrackingEntry{},
	&CompletedOrder{},
	&IdempotencyKey{},
	&ReconciliationEvent{},
}

// MigrateTable auto-migrates the schema and exits the process on failure.
func MigrateTable() {
	if err := config.GetDB().AutoMigrate(schemaModels...); err != nil {
		config.GetLogger().WithFields(logrus.Fields{"field": "migrations"}).Fatal("auto migrate: " + err.Error())
	}
}
