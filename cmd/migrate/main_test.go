package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/chrissnell/wastealarm/internal/storage/sqlite"
	"github.com/chrissnell/wastealarm/pkg/migrate"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTarget(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.OpenDB(filepath.Join(t.TempDir(), "alarms.db"), false)
	require.NoError(t, err)
	defer db.Close()

	m := sqlite.NewMigrator(db, nil)
	_, err = m.Up(ctx)
	require.NoError(t, err)

	tests := []struct {
		command, arg string
		want         int
		wantErr      bool
	}{
		{"up", "", migrate.Latest, false},
		{"to", "0", 0, false},
		{"to", "1", 1, false},
		{"to", "", 0, true},
		{"to", "-3", 0, true},
		{"down", "", 0, false},
		{"down", "1", 0, false},
		{"down", "2", 0, true},
		{"down", "zero", 0, true},
		{"sideways", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.command+" "+tt.arg, func(t *testing.T) {
			got, err := resolveTarget(ctx, m, tt.command, tt.arg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintPlanAndStatus(t *testing.T) {
	color.NoColor = true
	ctx := context.Background()
	db, err := sqlite.OpenDB(filepath.Join(t.TempDir(), "alarms.db"), false)
	require.NoError(t, err)
	defer db.Close()

	m := sqlite.NewMigrator(db, nil)

	var buf bytes.Buffer
	st, err := m.Status(ctx)
	require.NoError(t, err)
	printStatus(&buf, "alarms.db", st)
	assert.Contains(t, buf.String(), "schema version 0 of 1")
	assert.Contains(t, buf.String(), "pending    1  initial schema")

	plan, err := m.Plan(ctx, migrate.Latest)
	require.NoError(t, err)
	buf.Reset()
	printPlan(&buf, plan)
	assert.Contains(t, buf.String(), "version 0 -> 1")
	assert.Contains(t, buf.String(), "up     1  initial schema")

	require.NoError(t, m.Apply(ctx, plan))
	st, err = m.Status(ctx)
	require.NoError(t, err)
	buf.Reset()
	printStatus(&buf, "alarms.db", st)
	assert.Contains(t, buf.String(), "up to date")
}
