package database

import (
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	dsn := DSN("door", "p@ss:word", "db.local", "3307", "venue")
	require.Contains(t, dsn, "charset=utf8mb4")

	c, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	require.Equal(t, "door", c.User)
	require.Equal(t, "p@ss:word", c.Passwd)
	require.Equal(t, "db.local:3307", c.Addr)
	require.Equal(t, "venue", c.DBName)
	require.True(t, c.ParseTime)
	require.Equal(t, time.UTC, c.Loc)
}

func TestPoolDefaults(t *testing.T) {
	p := Pool{}.withDefaults()
	require.Equal(t, 25, p.MaxOpen)
	require.Equal(t, 10, p.MaxIdle)
	require.Equal(t, 5*time.Second, p.PingTimeout)

	p = Pool{MaxOpen: 4, MaxIdle: 8}.withDefaults()
	require.Equal(t, 4, p.MaxIdle, "idle connections never exceed the open limit")
}
