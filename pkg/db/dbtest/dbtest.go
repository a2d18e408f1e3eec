// Package dbtest opens isolated in-memory sqlite databases carrying the shopflow schema.
package dbtest

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/shopflow-backend/pkg/db"
)

// Schema mirrors the goose migrations in sqlite syntax. Money columns are TEXT so
// decimal values round trip exactly.
var Schema = []string{
	`CREATE TABLE users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  role TEXT NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  brand TEXT NOT NULL,
  category_id TEXT,
  status TEXT NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE product_variants (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  size TEXT NOT NULL,
  color_name TEXT NOT NULL,
  color_hex TEXT,
  sku TEXT NOT NULL UNIQUE,
  stock_quantity INTEGER NOT NULL DEFAULT 0 CHECK (stock_quantity >= 0),
  regular_price TEXT NOT NULL,
  sale_price TEXT,
  cost_price TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE stock_movements (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  variant_id TEXT NOT NULL,
  movement_type TEXT NOT NULL,
  quantity INTEGER NOT NULL CHECK (quantity <> 0),
  previous_stock INTEGER NOT NULL,
  new_stock INTEGER NOT NULL,
  reason TEXT NOT NULL,
  reference_type TEXT NOT NULL,
  reference_id TEXT,
  reference_number TEXT,
  performed_by TEXT NOT NULL,
  unit_cost TEXT,
  notes TEXT,
  created_at DATETIME
);`,
	`CREATE TABLE inventories (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  variant_id TEXT NOT NULL,
  current_stock INTEGER NOT NULL DEFAULT 0 CHECK (current_stock >= 0),
  reserved_stock INTEGER NOT NULL DEFAULT 0 CHECK (reserved_stock >= 0),
  available_stock INTEGER NOT NULL DEFAULT 0,
  low_stock_threshold INTEGER NOT NULL DEFAULT 5,
  is_low_stock INTEGER NOT NULL DEFAULT 0,
  is_out_of_stock INTEGER NOT NULL DEFAULT 1,
  total_in INTEGER NOT NULL DEFAULT 0,
  total_out INTEGER NOT NULL DEFAULT 0,
  average_cost TEXT NOT NULL DEFAULT '0',
  total_value TEXT NOT NULL DEFAULT '0',
  last_restocked_at DATETIME,
  last_sold_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (product_id, variant_id)
);`,
	`CREATE TABLE discounts (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  type TEXT NOT NULL,
  value TEXT NOT NULL,
  minimum_order_amount TEXT NOT NULL DEFAULT '0',
  maximum_discount_amount TEXT,
  usage_limit INTEGER,
  used_count INTEGER NOT NULL DEFAULT 0,
  valid_from DATETIME NOT NULL,
  valid_until DATETIME NOT NULL,
  applicable_product_ids TEXT NOT NULL DEFAULT '{}',
  applicable_category_ids TEXT NOT NULL DEFAULT '{}',
  applicable_user_ids TEXT NOT NULL DEFAULT '{}',
  is_active INTEGER NOT NULL DEFAULT 1,
  is_public INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE discount_usages (
  id TEXT PRIMARY KEY,
  discount_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  order_id TEXT,
  used_at DATETIME NOT NULL,
  UNIQUE (discount_id, user_id)
);`,
	`CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL UNIQUE,
  customer_id TEXT NOT NULL,
  customer_email TEXT NOT NULL,
  subtotal TEXT NOT NULL,
  delivery_cost TEXT NOT NULL,
  discount_id TEXT,
  discount_code TEXT,
  discount_type TEXT,
  discount_value TEXT,
  discount_amount TEXT NOT NULL DEFAULT '0',
  total_amount TEXT NOT NULL,
  status TEXT NOT NULL,
  payment_method TEXT NOT NULL,
  payment_status TEXT NOT NULL,
  payment_id TEXT,
  shipping_method TEXT NOT NULL,
  shipping_address TEXT NOT NULL,
  shipping_city TEXT NOT NULL,
  shipping_phone TEXT NOT NULL,
  delivery_days INTEGER NOT NULL,
  tracking_number TEXT,
  carrier TEXT,
  delivery_person_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  variant_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  size TEXT NOT NULL,
  color_name TEXT NOT NULL,
  color_hex TEXT,
  sku TEXT NOT NULL,
  quantity INTEGER NOT NULL CHECK (quantity > 0),
  unit_price TEXT NOT NULL,
  line_total TEXT NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE order_status_history (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  status TEXT NOT NULL,
  actor_id TEXT NOT NULL,
  actor_role TEXT NOT NULL,
  notes TEXT,
  created_at DATETIME
);`,
	`CREATE TABLE payments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE,
  customer_id TEXT NOT NULL,
  delivery_person_id TEXT,
  method TEXT NOT NULL,
  expected_amount TEXT NOT NULL,
  collected_amount TEXT NOT NULL DEFAULT '0',
  balance_amount TEXT NOT NULL,
  collection_status TEXT NOT NULL,
  status TEXT NOT NULL,
  is_outstanding INTEGER NOT NULL DEFAULT 1,
  delivery_attempts INTEGER NOT NULL DEFAULT 0,
  collection_timestamp DATETIME,
  notes TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE payment_collection_attempts (
  id TEXT PRIMARY KEY,
  payment_id TEXT NOT NULL,
  delivery_person_id TEXT NOT NULL,
  amount TEXT,
  issues TEXT NOT NULL DEFAULT '{}',
  description TEXT,
  created_at DATETIME
);`,
	`CREATE TABLE delivery_assignments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  delivery_person_id TEXT NOT NULL,
  assigned_by TEXT NOT NULL,
  status TEXT NOT NULL,
  active INTEGER NOT NULL DEFAULT 1,
  assigned_at DATETIME NOT NULL,
  out_for_delivery_at DATETIME,
  delivered_at DATETIME
);`,
	`CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload BLOB NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  next_attempt_at DATETIME,
  last_error TEXT
);`,
	`CREATE TABLE outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json BLOB NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME NOT NULL,
  created_at DATETIME
);`,
}

// OpenGorm returns a private in-memory database with Schema applied. A single
// connection is kept so every statement in a test observes the same database.
func OpenGorm(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := "file:shopflow_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.New(log.New(io.Discard, "", 0), gormlogger.Config{LogLevel: gormlogger.Silent}),
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range Schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return conn
}

// Open wraps OpenGorm in a db.Client so WithTx behaves like production.
func Open(t testing.TB) *db.Client {
	t.Helper()
	return db.Wrap(OpenGorm(t))
}
