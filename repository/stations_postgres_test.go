package repository

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbpranger/delay-api/models"
)

func setupStationRepository(t *testing.T) *StationRepository {
	databaseURL := os.Getenv("STATIONS_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("STATIONS_DATABASE_URL not set - skipping integration test")
	}

	ctx := context.Background()
	repo, err := NewStationRepository(ctx, databaseURL)
	require.NoError(t, err)
	t.Cleanup(repo.Close)

	_, err = repo.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS stations (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			lat DOUBLE PRECISION,
			lon DOUBLE PRECISION
		)
	`)
	require.NoError(t, err)
	return repo
}

func TestStationRepository_SaveAndList(t *testing.T) {
	repo := setupStationRepository(t)
	ctx := context.Background()

	stations := []models.Station{
		{ID: "Master:test-9001", Name: "Teststraße", Lat: 53.55, Lon: 10.0},
		{ID: "Master:test-9002", Name: "Probeweg", Lat: 53.56, Lon: 10.01},
	}
	require.NoError(t, repo.SaveStations(ctx, stations))
	t.Cleanup(func() {
		repo.pool.Exec(context.Background(), `DELETE FROM stations WHERE id LIKE 'Master:test-%'`)
	})

	got, err := repo.GetStation(ctx, "Master:test-9001")
	require.NoError(t, err)
	assert.Equal(t, "Teststraße", got.Name)

	all, err := repo.ListStations(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(all), 2)

	_, err = repo.GetStation(ctx, "Master:test-missing")
	assert.ErrorIs(t, err, ErrStationNotFound)
}
