package repo

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	dbpkg "github.com/threatlens/threatlens/internal/infra/db"
	"github.com/threatlens/threatlens/internal/modules/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "threatlens.db") + "?_pragma=foreign_keys(1)"
	d, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := d.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, dbpkg.Migrate(d))
	return d
}

func seedProject(t *testing.T, d *gorm.DB, id string) {
	t.Helper()
	require.NoError(t, d.Create(&model.Project{ID: id, Name: "project " + id}).Error)
}

func seedThreatModel(t *testing.T, d *gorm.DB, id string, status model.ThreatModelStatus, createdAt time.Time) {
	t.Helper()
	require.NoError(t, d.Create(&model.ThreatModel{
		ID:        id,
		Title:     "threat model " + id,
		Status:    status,
		CreatedAt: createdAt,
	}).Error)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}
