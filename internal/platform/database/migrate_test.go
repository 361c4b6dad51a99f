package database

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
)

func TestMigrateWithNoUpFilesIsNoop(t *testing.T) {
	fsys := fstest.MapFS{
		"0001_init.down.sql":  &fstest.MapFile{Data: []byte("DROP TABLE x;")},
		"README.md":           &fstest.MapFile{Data: []byte("notes")},
		"archive/0000.up.sql": &fstest.MapFile{Data: []byte("SELECT 1;")},
	}
	assert.NoError(t, Migrate(context.Background(), nil, fsys))
}
