package service

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nuggetapp/nugget-back/internal/db"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	require.NoError(t, db.Migrate(conn))
	return conn
}

func newTestLogger(t *testing.T) *zap.SugaredLogger {
	t.Helper()
	return zap.NewNop().Sugar()
}

func newTestUser(t *testing.T, conn *gorm.DB, email string) *db.User {
	t.Helper()
	user := db.User{
		Email:    email,
		Password: "hash",
		Token:    "token-" + email,
	}
	require.NoError(t, conn.Create(&user).Error)
	return &user
}

func strp(v string) *string { return &v }
func intp(v int) *int       { return &v }
