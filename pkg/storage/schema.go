package storage

// sqliteSchemaVersion is bumped whenever sqliteMigrations gains an entry.
const sqliteSchemaVersion = 1

// sqliteSchema is the initial SQLite schema. Every report table has a unique
// key over the device and its calendar fields so writes can be upserts.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS devices (
    device_id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    account_associated_since INTEGER NOT NULL DEFAULT 0,
    main_device INTEGER NOT NULL DEFAULT 0,
    prosumer INTEGER NOT NULL DEFAULT 0,
    division INTEGER NOT NULL DEFAULT 0,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS quarter_hour_values (
    device_id TEXT NOT NULL,
    year INTEGER NOT NULL,
    month INTEGER NOT NULL,
    day INTEGER NOT NULL,
    hour INTEGER NOT NULL,
    minute INTEGER NOT NULL CHECK (minute IN (0, 15, 30, 45)),
    timestamp INTEGER NOT NULL,
    watt REAL,
    a_plus REAL,
    a_minus REAL,
    updated_at INTEGER NOT NULL,
    UNIQUE (device_id, year, month, day, hour, minute)
);

CREATE TABLE IF NOT EXISTS hour_values (
    device_id TEXT NOT NULL,
    year INTEGER NOT NULL,
    month INTEGER NOT NULL,
    day INTEGER NOT NULL,
    hour INTEGER NOT NULL,
    timestamp INTEGER NOT NULL,
    kwh REAL,
    a_plus REAL,
    a_minus REAL,
    updated_at INTEGER NOT NULL,
    UNIQUE (device_id, year, month, day, hour)
);

CREATE TABLE IF NOT EXISTS day_values (
    device_id TEXT NOT NULL,
    year INTEGER NOT NULL,
    month INTEGER NOT NULL,
    day INTEGER NOT NULL,
    timestamp INTEGER NOT NULL,
    kwh REAL,
    a_plus REAL,
    a_minus REAL,
    updated_at INTEGER NOT NULL,
    UNIQUE (device_id, year, month, day)
);

CREATE TABLE IF NOT EXISTS month_values (
    device_id TEXT NOT NULL,
    year INTEGER NOT NULL,
    month INTEGER NOT NULL,
    timestamp INTEGER NOT NULL,
    kwh REAL,
    a_plus REAL,
    a_minus REAL,
    updated_at INTEGER NOT NULL,
    UNIQUE (device_id, year, month)
);

-- api_call_logs is append only, rows are removed by the retention job
CREATE TABLE IF NOT EXISTS api_call_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp INTEGER NOT NULL,
    endpoint TEXT NOT NULL,
    method TEXT NOT NULL,
    params TEXT,
    status_code INTEGER NOT NULL DEFAULT 0,
    success INTEGER NOT NULL DEFAULT 0,
    error_message TEXT NOT NULL DEFAULT '',
    duration_ms INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_api_call_logs_timestamp ON api_call_logs(timestamp);
CREATE INDEX IF NOT EXISTS idx_api_call_logs_endpoint ON api_call_logs(endpoint);
`

// sqliteMigrations are keyed by the version they upgrade to.
var sqliteMigrations = map[int]string{}
