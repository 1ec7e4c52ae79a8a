package database

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"vehicle-curation-portal/internal/models"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("record not found")

type GormDB struct {
	db *gorm.DB
}

func NewGormDB(host, port, user, password, dbname string) (*GormDB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		user, password, host, port, dbname)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}

	return &GormDB{db: db}, nil
}

// NewGormDBFromDB wraps an existing gorm.DB instance. Used by tests with an
// in-memory database.
func NewGormDBFromDB(db *gorm.DB) *GormDB {
	return &GormDB{db: db}
}

// DB returns the underlying gorm.DB instance
func (gdb *GormDB) DB() *gorm.DB {
	return gdb.db
}

func (gdb *GormDB) Close() error {
	sqlDB, err := gdb.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InitSchema creates tables using GORM AutoMigrate
func (gdb *GormDB) InitSchema() error {
	return gdb.db.AutoMigrate(
		&models.Vehicle{},
		&models.RunSummary{},
		&models.RunError{},
	)
}

// UpsertVehicle inserts a vehicle or updates the existing record with the
// same VIN. FirstSeenAt, CreatedAt and the user review fields survive the
// update; LastSeenAt always moves forward.
func (gdb *GormDB) UpsertVehicle(v *models.Vehicle) error {
	now := time.Now()
	if v.FirstSeenAt.IsZero() {
		v.FirstSeenAt = now
	}
	v.LastSeenAt = now

	var existing models.Vehicle
	result := gdb.db.Where("vin = ?", v.VIN).First(&existing)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return gdb.db.Create(v).Error
	} else if result.Error != nil {
		return result.Error
	}

	v.FirstSeenAt = existing.FirstSeenAt
	v.CreatedAt = existing.CreatedAt
	v.Reviewed = existing.Reviewed
	v.UserRating = existing.UserRating
	v.Notes = existing.Notes
	return gdb.db.Save(v).Error
}

// TouchVehicle bumps LastSeenAt for a duplicate sighting without rewriting
// the record.
func (gdb *GormDB) TouchVehicle(vin string, seenAt time.Time) error {
	return gdb.db.Model(&models.Vehicle{}).
		Where("vin = ?", vin).
		Update("last_seen_at", seenAt).Error
}

// GetVehicleByVIN retrieves one vehicle, or ErrNotFound.
func (gdb *GormDB) GetVehicleByVIN(vin string) (*models.Vehicle, error) {
	var v models.Vehicle
	err := gdb.db.Where("vin = ?", vin).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetAllVehicles retrieves every curated vehicle, highest score first.
// Filtering and pagination happen in the query package, in memory.
func (gdb *GormDB) GetAllVehicles() ([]models.Vehicle, error) {
	var vehicles []models.Vehicle
	err := gdb.db.Order("priority_score DESC, first_seen_at DESC").Find(&vehicles).Error
	return vehicles, err
}

// DeleteVehiclesUnseenSince removes records whose listing has not been seen
// since the cutoff. Returns the number deleted.
func (gdb *GormDB) DeleteVehiclesUnseenSince(cutoff time.Time, limit int) (int64, error) {
	q := gdb.db.Where("last_seen_at < ?", cutoff)
	if limit > 0 {
		q = q.Limit(limit)
	}
	result := q.Delete(&models.Vehicle{})
	return result.RowsAffected, result.Error
}

// ListStaleVehicleVINs returns the VINs a prune with the same cutoff and
// limit would remove, so the search index can be kept in step.
func (gdb *GormDB) ListStaleVehicleVINs(cutoff time.Time, limit int) ([]string, error) {
	var vins []string
	q := gdb.db.Model(&models.Vehicle{}).Where("last_seen_at < ?", cutoff)
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Pluck("vin", &vins).Error
	return vins, err
}

// CountVehiclesUnseenSince reports how many records a prune would remove.
func (gdb *GormDB) CountVehiclesUnseenSince(cutoff time.Time) (int64, error) {
	var n int64
	err := gdb.db.Model(&models.Vehicle{}).Where("last_seen_at < ?", cutoff).Count(&n).Error
	return n, err
}

// SaveReview updates the user review fields on a vehicle.
func (gdb *GormDB) SaveReview(vin string, rating *int, notes string) error {
	result := gdb.db.Model(&models.Vehicle{}).
		Where("vin = ?", vin).
		Updates(map[string]interface{}{
			"reviewed":    true,
			"user_rating": rating,
			"notes":       notes,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertRunSummary persists a finalized run summary with its error entries.
func (gdb *GormDB) InsertRunSummary(summary *models.RunSummary) error {
	return gdb.db.Create(summary).Error
}

// GetRecentRuns returns the latest run summaries, newest first.
func (gdb *GormDB) GetRecentRuns(limit int) ([]models.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []models.RunSummary
	err := gdb.db.Order("started_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

// GetRunByID returns one run summary with its error entries preloaded.
func (gdb *GormDB) GetRunByID(id string) (*models.RunSummary, error) {
	var run models.RunSummary
	err := gdb.db.Preload("ErrorEntries").Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// DeleteRunsBefore prunes run summaries (and their error entries) started
// before the cutoff. Returns the number of summaries deleted.
func (gdb *GormDB) DeleteRunsBefore(cutoff time.Time) (int64, error) {
	var ids []string
	if err := gdb.db.Model(&models.RunSummary{}).
		Where("started_at < ?", cutoff).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	return int64(len(ids)), gdb.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id IN ?", ids).Delete(&models.RunError{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&models.RunSummary{}).Error
	})
}

// TierCounts returns the number of vehicles in each quality tier.
func (gdb *GormDB) TierCounts() (map[models.QualityTier]int64, error) {
	counts := map[models.QualityTier]int64{}

	type row struct {
		Tier  string
		Count int64
	}
	var rows []row
	err := gdb.db.Model(&models.Vehicle{}).
		Select(fmt.Sprintf(`CASE
			WHEN priority_score >= %d THEN 'top_pick'
			WHEN priority_score >= %d THEN 'good_buy'
			ELSE 'caution'
		END AS tier, COUNT(*) AS count`, models.TopPickMinScore, models.GoodBuyMinScore)).
		Group("tier").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		counts[models.QualityTier(r.Tier)] = r.Count
	}
	return counts, nil
}

// MakeCounts returns the number of vehicles per make.
func (gdb *GormDB) MakeCounts() (map[string]int64, error) {
	type row struct {
		Make  string
		Count int64
	}
	var rows []row
	err := gdb.db.Model(&models.Vehicle{}).
		Select("make, COUNT(*) AS count").
		Group("make").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Make] = r.Count
	}
	return counts, nil
}

// PriceBuckets returns the number of vehicles per $5,000 price band across
// the accepted price range.
func (gdb *GormDB) PriceBuckets() (map[string]int64, error) {
	type row struct {
		Bucket string
		Count  int64
	}
	var rows []row
	err := gdb.db.Model(&models.Vehicle{}).
		Select(`CASE
			WHEN price < 5000 THEN 'under_5k'
			WHEN price < 10000 THEN '5k_10k'
			WHEN price < 15000 THEN '10k_15k'
			WHEN price < 20000 THEN '15k_20k'
			ELSE '20k_plus'
		END AS bucket, COUNT(*) AS count`).
		Group("bucket").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	buckets := make(map[string]int64, len(rows))
	for _, r := range rows {
		buckets[r.Bucket] = r.Count
	}
	return buckets, nil
}
