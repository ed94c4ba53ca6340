package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/totalsolutions/clinic-ops/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	centreIDs, err := seedCentres(context.Background(), pool, 5)
	if err != nil {
		log.Fatalf("seed centres: %v", err)
	}
	if err := seedDoctors(context.Background(), pool, centreIDs, 40); err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedChildren(context.Background(), pool, 2000); err != nil {
		log.Fatalf("seed children: %v", err)
	}

	log.Println("seed complete")
}

func seedCentres(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d centres", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.City() + " Centre"
		address := gofakeit.Street() + ", " + gofakeit.City()

		_, err := tx.Exec(ctx, `
			INSERT INTO centres (id, name, address, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, address)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("centres seeded")
	return ids, nil
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, centreIDs []uuid.UUID, count int) error {
	log.Printf("seeding %d doctors", count)

	specialties := []string{
		"Developmental Pediatrics",
		"Child Psychology",
		"Speech Therapy",
		"Occupational Therapy",
		"Behavioral Therapy",
		"Special Education",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr. " + gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]
		centreID := centreIDs[gofakeit.Number(0, len(centreIDs)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, specialty, centre_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, name, spec, centreID)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("doctors seeded")
	return nil
}

func seedChildren(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d children", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.FirstName() + " " + gofakeit.LastName()
			dob := gofakeit.DateRange(
				time.Now().AddDate(-14, 0, 0),
				time.Now().AddDate(-2, 0, 0),
			)

			_, err := tx.Exec(ctx, `
				INSERT INTO children (id, name, dob, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, name, dob)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("children seeded: %d/%d", end, count)
	}

	log.Println("children seeded")
	return nil
}
