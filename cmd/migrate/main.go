package main

import (
	"context"
	"flag"
	"log"
	"time"

	"clipforge/internal/config"
	pg "clipforge/internal/infra/db/postgres"
)

// Applies the schema. Idempotent; safe to run on every deploy.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	credits       BIGINT NOT NULL DEFAULT 0 CHECK (credits >= 0),
	created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS clip_jobs (
	id                 TEXT PRIMARY KEY,
	owner_id           TEXT NOT NULL REFERENCES users(id),
	source_url         TEXT NOT NULL,
	title              TEXT NOT NULL DEFAULT '',
	source_duration_ms BIGINT NOT NULL DEFAULT 0,
	status             TEXT NOT NULL,
	segment_count      INT NOT NULL,
	segment_length_ms  BIGINT NOT NULL,
	overlay_text       TEXT NOT NULL DEFAULT '',
	credits_reserved   BIGINT NOT NULL,
	refunded           BOOLEAN NOT NULL DEFAULT FALSE,
	failure_reason     TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL,
	completed_at       TIMESTAMPTZ,
	expires_at         TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS clip_jobs_owner_created_idx ON clip_jobs (owner_id, created_at DESC);
CREATE INDEX IF NOT EXISTS clip_jobs_pending_idx ON clip_jobs (created_at) WHERE status = 'pending';
CREATE INDEX IF NOT EXISTS clip_jobs_expiry_idx ON clip_jobs (expires_at) WHERE status = 'completed';

CREATE TABLE IF NOT EXISTS clip_segments (
	job_id       TEXT NOT NULL REFERENCES clip_jobs(id) ON DELETE CASCADE,
	idx          INT NOT NULL,
	start_ms     BIGINT NOT NULL,
	duration_ms  BIGINT NOT NULL,
	clip_key     TEXT NOT NULL,
	thumb_key    TEXT NOT NULL,
	overlay_text TEXT NOT NULL DEFAULT '',
	byte_size    BIGINT NOT NULL DEFAULT 0,
	PRIMARY KEY (job_id, idx)
);
`

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 2)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, schema); err != nil {
		log.Fatalf("apply schema: %v", err)
	}
	log.Println("schema applied")
}
