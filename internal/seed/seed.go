package seed

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type recordSeed struct {
	ListingID       int64
	ReleaseID       int64
	Artist          string
	Title           string
	PriceCents      int64
	Condition       string
	SleeveCondition string
	Location        string
	Quantity        int
}

// Apply inserts sample mirrored records for manual testing. It is idempotent
// via ON CONFLICT on the listing id.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	records := []recordSeed{
		{
			ListingID:       900101,
			ReleaseID:       249504,
			Artist:          "Rick Astley",
			Title:           "Whenever You Need Somebody",
			PriceCents:      1850,
			Condition:       "Very Good Plus (VG+)",
			SleeveCondition: "Very Good (VG)",
			Location:        "A-12",
			Quantity:        1,
		},
		{
			ListingID:       900102,
			ReleaseID:       1475659,
			Artist:          "Miles Davis",
			Title:           "Kind Of Blue",
			PriceCents:      4200,
			Condition:       "Near Mint (NM or M-)",
			SleeveCondition: "Near Mint (NM or M-)",
			Location:        "B-03",
			Quantity:        2,
		},
		{
			ListingID:       900103,
			ReleaseID:       367084,
			Artist:          "Portishead",
			Title:           "Dummy",
			PriceCents:      3100,
			Condition:       "Very Good Plus (VG+)",
			SleeveCondition: "Very Good Plus (VG+)",
			Location:        "C-21",
			Quantity:        1,
		},
	}

	for _, r := range records {
		if err := upsertRecord(ctx, pool, r); err != nil {
			return fmt.Errorf("seed record listing=%d: %w", r.ListingID, err)
		}
	}
	return nil
}

func upsertRecord(ctx context.Context, pool *pgxpool.Pool, r recordSeed) error {
	const q = `
INSERT INTO records (listing_id, release_id, artist, title, price_cents, currency, condition, sleeve_condition, location, quantity, status)
VALUES ($1, $2, $3, $4, $5, 'USD', $6, $7, $8, $9, 'FOR_SALE')
ON CONFLICT (listing_id) DO NOTHING
`
	_, err := pool.Exec(ctx, q,
		r.ListingID,
		r.ReleaseID,
		r.Artist,
		r.Title,
		r.PriceCents,
		r.Condition,
		r.SleeveCondition,
		r.Location,
		r.Quantity,
	)
	return err
}
