package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"vehicle-curation-portal/internal/models"
)

// DB is the raw-SQL Postgres store, selectable by configuration as an
// alternative to the MySQL/GORM store. It covers the vehicle table only;
// run summaries stay on the primary store.
type DB struct {
	conn *sql.DB
}

func NewDB(host, port, user, password, dbname string) (*DB, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(); err != nil {
		return nil, err
	}

	return &DB{conn: conn}, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// InitSchema creates the vehicles table if it doesn't exist
func (db *DB) InitSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS vehicles (
		vin VARCHAR(17) PRIMARY KEY,
		make VARCHAR(50) NOT NULL,
		model VARCHAR(100) NOT NULL,
		year INTEGER NOT NULL,
		body_type VARCHAR(50),

		-- Filter fields
		price INTEGER NOT NULL,
		mileage INTEGER NOT NULL,
		title_status VARCHAR(20) NOT NULL,
		accident_count INTEGER NOT NULL DEFAULT 0,
		owner_count INTEGER NOT NULL DEFAULT 1,
		is_rental BOOLEAN NOT NULL DEFAULT FALSE,
		is_fleet BOOLEAN NOT NULL DEFAULT FALSE,
		has_lien BOOLEAN NOT NULL DEFAULT FALSE,
		flood_damage BOOLEAN NOT NULL DEFAULT FALSE,

		state_of_origin VARCHAR(2),
		location VARCHAR(100),
		distance_miles INTEGER,

		-- Derived fields
		age_years INTEGER NOT NULL,
		mileage_per_year INTEGER NOT NULL,
		mileage_rating VARCHAR(20) NOT NULL DEFAULT 'unrated',
		priority_score INTEGER NOT NULL,
		rust_belt BOOLEAN NOT NULL DEFAULT FALSE,
		rust_concern BOOLEAN NOT NULL DEFAULT FALSE,

		source VARCHAR(50),
		source_url TEXT,
		source_listing_id VARCHAR(255),

		decode_payload TEXT,
		history_payload TEXT,

		reviewed BOOLEAN NOT NULL DEFAULT FALSE,
		user_rating INTEGER,
		notes TEXT,

		first_seen_at TIMESTAMP NOT NULL,
		last_seen_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	-- Create indexes for filtering
	CREATE INDEX IF NOT EXISTS idx_vehicles_make ON vehicles(make);
	CREATE INDEX IF NOT EXISTS idx_vehicles_price ON vehicles(price);
	CREATE INDEX IF NOT EXISTS idx_vehicles_year ON vehicles(year);
	CREATE INDEX IF NOT EXISTS idx_vehicles_priority_score ON vehicles(priority_score DESC);
	CREATE INDEX IF NOT EXISTS idx_vehicles_last_seen_at ON vehicles(last_seen_at);
	`
	_, err := db.conn.Exec(query)
	return err
}

// UpsertVehicle saves a vehicle, updating the listing-derived fields on
// VIN conflict. first_seen_at, created_at and the user review fields keep
// their original values.
func (db *DB) UpsertVehicle(v *models.Vehicle) error {
	now := time.Now()
	if v.FirstSeenAt.IsZero() {
		v.FirstSeenAt = now
	}
	v.LastSeenAt = now

	query := `
	INSERT INTO vehicles (
		vin, make, model, year, body_type,
		price, mileage, title_status, accident_count, owner_count,
		is_rental, is_fleet, has_lien, flood_damage,
		state_of_origin, location, distance_miles,
		age_years, mileage_per_year, mileage_rating, priority_score, rust_belt, rust_concern,
		source, source_url, source_listing_id,
		decode_payload, history_payload,
		reviewed, user_rating, notes,
		first_seen_at, last_seen_at, created_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
	        $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
	        $21, $22, $23, $24, $25, $26, $27, $28, $29, $30,
	        $31, $32, $33, $34)
	ON CONFLICT (vin) DO UPDATE SET
		make = EXCLUDED.make,
		model = EXCLUDED.model,
		year = EXCLUDED.year,
		body_type = EXCLUDED.body_type,
		price = EXCLUDED.price,
		mileage = EXCLUDED.mileage,
		title_status = EXCLUDED.title_status,
		accident_count = EXCLUDED.accident_count,
		owner_count = EXCLUDED.owner_count,
		is_rental = EXCLUDED.is_rental,
		is_fleet = EXCLUDED.is_fleet,
		has_lien = EXCLUDED.has_lien,
		flood_damage = EXCLUDED.flood_damage,
		state_of_origin = EXCLUDED.state_of_origin,
		location = EXCLUDED.location,
		distance_miles = EXCLUDED.distance_miles,
		age_years = EXCLUDED.age_years,
		mileage_per_year = EXCLUDED.mileage_per_year,
		mileage_rating = EXCLUDED.mileage_rating,
		priority_score = EXCLUDED.priority_score,
		rust_belt = EXCLUDED.rust_belt,
		rust_concern = EXCLUDED.rust_concern,
		source = EXCLUDED.source,
		source_url = EXCLUDED.source_url,
		source_listing_id = EXCLUDED.source_listing_id,
		decode_payload = EXCLUDED.decode_payload,
		history_payload = EXCLUDED.history_payload,
		last_seen_at = EXCLUDED.last_seen_at
	`
	_, err := db.conn.Exec(query,
		v.VIN, v.Make, v.Model, v.Year, v.BodyType,
		v.Price, v.Mileage, v.TitleStatus, v.AccidentCount, v.OwnerCount,
		v.IsRental, v.IsFleet, v.HasLien, v.FloodDamage,
		v.StateOfOrigin, v.Location, v.DistanceMiles,
		v.AgeYears, v.MileagePerYear, string(v.MileageRating), v.PriorityScore, v.RustBelt, v.RustConcern,
		v.Source, v.SourceURL, v.SourceListingID,
		v.DecodePayload, v.HistoryPayload,
		v.Reviewed, v.UserRating, v.Notes,
		v.FirstSeenAt, v.LastSeenAt, now)
	return err
}

// SaveReview records a user's rating and notes, or ErrNotFound when no
// vehicle carries the VIN.
func (db *DB) SaveReview(vin string, rating *int, notes string) error {
	res, err := db.conn.Exec(
		`UPDATE vehicles SET reviewed = TRUE, user_rating = $2, notes = $3 WHERE vin = $1`,
		vin, rating, notes)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetVehicleByVIN retrieves one vehicle, or ErrNotFound.
func (db *DB) GetVehicleByVIN(vin string) (*models.Vehicle, error) {
	row := db.conn.QueryRow(selectVehicleColumns+` FROM vehicles WHERE vin = $1`, vin)
	v, err := scanVehicle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// GetAllVehicles retrieves every curated vehicle, highest score first.
func (db *DB) GetAllVehicles() ([]models.Vehicle, error) {
	rows, err := db.conn.Query(selectVehicleColumns + ` FROM vehicles ORDER BY priority_score DESC, first_seen_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []models.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, *v)
	}
	return vehicles, rows.Err()
}

const selectVehicleColumns = `
	SELECT vin, make, model, year, body_type,
	       price, mileage, title_status, accident_count, owner_count,
	       is_rental, is_fleet, has_lien, flood_damage,
	       state_of_origin, location, distance_miles,
	       age_years, mileage_per_year, mileage_rating, priority_score, rust_belt, rust_concern,
	       source, source_url, source_listing_id,
	       decode_payload, history_payload,
	       reviewed, user_rating, notes,
	       first_seen_at, last_seen_at, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVehicle(row rowScanner) (*models.Vehicle, error) {
	var v models.Vehicle
	var rating string
	var bodyType, state, location, source, sourceURL, sourceListingID sql.NullString
	var decodePayload, historyPayload, notes sql.NullString
	var distance, userRating sql.NullInt64

	err := row.Scan(
		&v.VIN, &v.Make, &v.Model, &v.Year, &bodyType,
		&v.Price, &v.Mileage, &v.TitleStatus, &v.AccidentCount, &v.OwnerCount,
		&v.IsRental, &v.IsFleet, &v.HasLien, &v.FloodDamage,
		&state, &location, &distance,
		&v.AgeYears, &v.MileagePerYear, &rating, &v.PriorityScore, &v.RustBelt, &v.RustConcern,
		&source, &sourceURL, &sourceListingID,
		&decodePayload, &historyPayload,
		&v.Reviewed, &userRating, &notes,
		&v.FirstSeenAt, &v.LastSeenAt, &v.CreatedAt)
	if err != nil {
		return nil, err
	}

	v.BodyType = bodyType.String
	v.StateOfOrigin = state.String
	v.Location = location.String
	v.Source = source.String
	v.SourceURL = sourceURL.String
	v.SourceListingID = sourceListingID.String
	v.DecodePayload = decodePayload.String
	v.HistoryPayload = historyPayload.String
	v.Notes = notes.String
	v.MileageRating = models.MileageRating(rating)
	if distance.Valid {
		d := int(distance.Int64)
		v.DistanceMiles = &d
	}
	if userRating.Valid {
		r := int(userRating.Int64)
		v.UserRating = &r
	}
	return &v, nil
}
