package store

import (
	"context"
	"database/sql"
	"time"
)

// Object is a stored blob with its metadata.
type Object struct {
	Bucket      string
	Key         string
	Data        []byte
	ContentType string
	Size        int64
	CreatedAt   time.Time
}

// PutObject stores a new object. An existing object under the same bucket
// and key is never replaced; the insert fails with ErrDuplicate.
func PutObject(ctx context.Context, db *sql.DB, o Object) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO objects (bucket, key, data, content_type, size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		o.Bucket, o.Key, o.Data, o.ContentType, int64(len(o.Data)), time.Now().UTC(),
	)
	if err != nil {
		return wrap("storing object", err)
	}
	return nil
}

// GetObject returns an object with its data.
func GetObject(ctx context.Context, db *sql.DB, bucket, key string) (*Object, error) {
	o := &Object{Bucket: bucket, Key: key}
	err := db.QueryRowContext(ctx,
		`SELECT data, content_type, size, created_at FROM objects WHERE bucket = ? AND key = ?`,
		bucket, key,
	).Scan(&o.Data, &o.ContentType, &o.Size, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("getting object", err)
	}
	return o, nil
}

// ObjectExists reports whether bucket holds key.
func ObjectExists(ctx context.Context, db *sql.DB, bucket, key string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM objects WHERE bucket = ? AND key = ?`, bucket, key,
	).Scan(&count)
	if err != nil {
		return false, wrap("checking object", err)
	}
	return count > 0, nil
}

// DeleteObjects removes the given keys from bucket and returns how many
// existed. Missing keys are ignored.
func DeleteObjects(ctx context.Context, db *sql.DB, bucket string, keys ...string) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrap("beginning transaction", err)
	}
	defer tx.Rollback()

	var n int64
	for _, key := range keys {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM objects WHERE bucket = ? AND key = ?`, bucket, key,
		)
		if err != nil {
			return 0, wrap("deleting object", err)
		}
		affected, _ := res.RowsAffected()
		n += affected
	}

	if err := tx.Commit(); err != nil {
		return 0, wrap("committing transaction", err)
	}
	return n, nil
}
