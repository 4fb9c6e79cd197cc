package store

import "prereport-service/internal/common/database"

// Schema creates the report, lead-data and lookup tables.
var Schema = []database.Migration{
	{Name: "clients", Statement: `
CREATE TABLE IF NOT EXISTS clients (
    id         BIGSERIAL PRIMARY KEY,
    name       TEXT NOT NULL,
    code       TEXT,
    active     BOOLEAN NOT NULL DEFAULT TRUE
)`},
	{Name: "products", Statement: `
CREATE TABLE IF NOT EXISTS products (
    id         BIGSERIAL PRIMARY KEY,
    client_id  BIGINT NOT NULL REFERENCES clients(id),
    name       TEXT NOT NULL,
    category   TEXT,
    active     BOOLEAN NOT NULL DEFAULT TRUE
)`},
	{Name: "products_client_idx", Statement: `CREATE INDEX IF NOT EXISTS products_client_idx ON products (client_id)`},
	{Name: "pre_reports", Statement: `
CREATE TABLE IF NOT EXISTS pre_reports (
    id             BIGSERIAL PRIMARY KEY,
    client_id      BIGINT NOT NULL REFERENCES clients(id),
    product_ids    BIGINT[] NOT NULL DEFAULT '{}',
    lead_type      TEXT NOT NULL CHECK (lead_type IN ('CLIENT_LEAD', 'TRUEBUDDY_LEAD')),
    report_status  TEXT NOT NULL,
    current_step   INT NOT NULL DEFAULT 1 CHECK (current_step >= 1),
    created_by     TEXT,
    created_at     TIMESTAMPTZ NOT NULL,
    updated_at     TIMESTAMPTZ NOT NULL,
    submitted_at   TIMESTAMPTZ
)`},
	{Name: "pre_reports_status_idx", Statement: `CREATE INDEX IF NOT EXISTS pre_reports_status_idx ON pre_reports (report_status)`},
	{Name: "client_lead_data", Statement: `
CREATE TABLE IF NOT EXISTS client_lead_data (
    report_id   BIGINT PRIMARY KEY REFERENCES pre_reports(id) ON DELETE CASCADE,
    data        JSONB NOT NULL DEFAULT '{}'::jsonb,
    updated_at  TIMESTAMPTZ NOT NULL
)`},
	{Name: "truebuddy_lead_data", Statement: `
CREATE TABLE IF NOT EXISTS truebuddy_lead_data (
    report_id   BIGINT PRIMARY KEY REFERENCES pre_reports(id) ON DELETE CASCADE,
    data        JSONB NOT NULL DEFAULT '{}'::jsonb,
    updated_at  TIMESTAMPTZ NOT NULL
)`},
}
