package main

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appmigrations "github.com/wolfman30/coaching-platform/migrations"
)

type fakeMigrator struct {
	upErr   error
	steps   []int
	forced  int
	version uint
	calls   []string
}

func (f *fakeMigrator) Up() error {
	f.calls = append(f.calls, "up")
	return f.upErr
}

func (f *fakeMigrator) Steps(n int) error {
	f.calls = append(f.calls, "steps")
	f.steps = append(f.steps, n)
	return nil
}

func (f *fakeMigrator) Force(version int) error {
	f.calls = append(f.calls, "force")
	f.forced = version
	return nil
}

func (f *fakeMigrator) Version() (uint, bool, error) {
	f.calls = append(f.calls, "version")
	return f.version, false, nil
}

func TestRunDefaultsToUp(t *testing.T) {
	m := &fakeMigrator{upErr: migrate.ErrNoChange}
	require.NoError(t, run(m, nil))
	assert.Equal(t, []string{"up"}, m.calls)
}

func TestRunUpPropagatesFailure(t *testing.T) {
	m := &fakeMigrator{upErr: errors.New("syntax error")}
	err := run(m, []string{"up"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "syntax error")
}

func TestRunDownRollsBackOneStep(t *testing.T) {
	m := &fakeMigrator{}
	require.NoError(t, run(m, []string{"down"}))
	assert.Equal(t, []int{-1}, m.steps)
}

func TestRunForce(t *testing.T) {
	m := &fakeMigrator{}
	require.NoError(t, run(m, []string{"force", "2"}))
	assert.Equal(t, 2, m.forced)

	assert.Error(t, run(m, []string{"force"}))
	assert.Error(t, run(m, []string{"force", "two"}))
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	assert.Error(t, run(&fakeMigrator{}, []string{"sideways"}))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(appmigrations.FS, "*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(appmigrations.FS, "*.down.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}
