package services

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/estate-crm/models"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq int64

// newTestDB membuka sqlite in-memory terpisah per test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, atomic.AddInt64(&dbSeq, 1))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, companyID uint, email string, timeline models.ReminderTimeline) *models.User {
	t.Helper()
	u := &models.User{
		CompanyID: companyID,
		Name:      "Agent " + email,
		Email:     email,
		Password:  "x",
		Role:      "agent",
		NotificationSettings: models.NotificationSettings{
			ReminderTimeline: datatypes.NewJSONType(timeline),
			EmailReminders:   true,
		},
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func uintPtr(v uint) *uint { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func jsonTimeline(t models.ReminderTimeline) datatypes.JSONType[models.ReminderTimeline] {
	return datatypes.NewJSONType(t)
}
