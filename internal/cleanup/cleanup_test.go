package cleanup

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	staleCount     int64
	staleVINs      []string
	vinLists       []time.Time
	vehicleDeletes []time.Time
	runDeletes     []time.Time
}

func (s *fakeStore) CountVehiclesUnseenSince(cutoff time.Time) (int64, error) {
	return s.staleCount, nil
}

func (s *fakeStore) ListStaleVehicleVINs(cutoff time.Time, limit int) ([]string, error) {
	s.vinLists = append(s.vinLists, cutoff)
	return s.staleVINs, nil
}

func (s *fakeStore) DeleteVehiclesUnseenSince(cutoff time.Time, limit int) (int64, error) {
	s.vehicleDeletes = append(s.vehicleDeletes, cutoff)
	return s.staleCount, nil
}

func (s *fakeStore) DeleteRunsBefore(cutoff time.Time) (int64, error) {
	s.runDeletes = append(s.runDeletes, cutoff)
	return 3, nil
}

type fakeIndex struct {
	deleted []string
	err     error
}

func (i *fakeIndex) DeleteVehicle(vin string) error {
	i.deleted = append(i.deleted, vin)
	return i.err
}

func TestExecuteDeletesStaleVehiclesAndOldRuns(t *testing.T) {
	store := &fakeStore{staleCount: 5}
	svc := NewService(store, nil, Config{
		VehicleRetentionDays: 30,
		RunRetentionDays:     90,
		MaxDeletionCount:     100,
	})

	result, err := svc.Execute()
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.VehiclesDeleted)
	assert.Equal(t, int64(3), result.RunsDeleted)
	require.Len(t, store.vehicleDeletes, 1)
	require.Len(t, store.runDeletes, 1)
	// No index configured, so no VIN listing pass either
	assert.Empty(t, store.vinLists)

	// Cutoffs reflect the configured retention windows
	assert.WithinDuration(t, time.Now().AddDate(0, 0, -30), store.vehicleDeletes[0], time.Minute)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, -90), store.runDeletes[0], time.Minute)
}

func TestExecuteRemovesDeletedVehiclesFromIndex(t *testing.T) {
	store := &fakeStore{
		staleCount: 2,
		staleVINs:  []string{"JTMB1RFV8KD000001", "2HKRW2H57KH000002"},
	}
	index := &fakeIndex{}
	svc := NewService(store, index, Config{
		VehicleRetentionDays: 30,
		MaxDeletionCount:     100,
	})

	result, err := svc.Execute()
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.VehiclesDeleted)
	require.Len(t, store.vehicleDeletes, 1)
	assert.Equal(t, store.staleVINs, index.deleted)
}

func TestExecuteIndexFailureIsNotFatal(t *testing.T) {
	store := &fakeStore{
		staleCount: 1,
		staleVINs:  []string{"JTMB1RFV8KD000001"},
	}
	index := &fakeIndex{err: errors.New("index unreachable")}
	svc := NewService(store, index, Config{
		VehicleRetentionDays: 30,
		MaxDeletionCount:     100,
	})

	result, err := svc.Execute()
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.VehiclesDeleted)
	require.Len(t, index.deleted, 1)
}

func TestExecuteDryRunDeletesNothing(t *testing.T) {
	store := &fakeStore{staleCount: 5, staleVINs: []string{"JTMB1RFV8KD000001"}}
	index := &fakeIndex{}
	svc := NewService(store, index, Config{
		VehicleRetentionDays: 30,
		RunRetentionDays:     90,
		MaxDeletionCount:     100,
		DryRun:               true,
	})

	result, err := svc.Execute()
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.VehiclesDeleted)
	assert.True(t, result.DryRun)
	assert.Empty(t, store.vehicleDeletes)
	assert.Empty(t, store.runDeletes)
	assert.Empty(t, index.deleted)
}

func TestExecuteSafetyCapAborts(t *testing.T) {
	store := &fakeStore{staleCount: 500}
	svc := NewService(store, nil, Config{
		VehicleRetentionDays: 30,
		MaxDeletionCount:     100,
	})

	_, err := svc.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "safety check failed")
	assert.Empty(t, store.vehicleDeletes)
}

func TestExecuteDisabledRetention(t *testing.T) {
	store := &fakeStore{staleCount: 5}
	svc := NewService(store, nil, Config{})

	result, err := svc.Execute()
	require.NoError(t, err)
	assert.Zero(t, result.VehiclesDeleted)
	assert.Zero(t, result.RunsDeleted)
	assert.Empty(t, store.vehicleDeletes)
	assert.Empty(t, store.runDeletes)
}
