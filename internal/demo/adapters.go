// ABOUTME: Builds the demo model adapters for each supported backend
// ABOUTME: database/sql, pgx, gorm and in-memory backends expose the same three models

package demo

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/2389/modeladmin/internal/adapter/gormadapter"
	"github.com/2389/modeladmin/internal/adapter/memadapter"
	"github.com/2389/modeladmin/internal/adapter/pgxadapter"
	"github.com/2389/modeladmin/internal/adapter/sqladapter"
	"github.com/2389/modeladmin/internal/admin"
)

// Adapters holds one adapter per demo model.
type Adapters struct {
	Users    admin.Adapter
	Messages admin.Adapter
	Events   admin.Adapter
}

func tables() (users, messages, events sqladapter.Table) {
	return sqladapter.Table{Name: TableUser, PK: "id", Columns: userColumns},
		sqladapter.Table{Name: TableUserMessage, PK: "id", Columns: messageColumns},
		sqladapter.Table{Name: TableEvent, PK: "id", Columns: eventColumns}
}

// SQLAdapters builds database/sql adapters on a migrated database.
func SQLAdapters(db sqladapter.DBTX, dialect sqladapter.Dialect) (Adapters, error) {
	ut, mt, et := tables()
	users, err := sqladapter.New(db, dialect, ut)
	if err != nil {
		return Adapters{}, fmt.Errorf("user adapter: %w", err)
	}
	messages, err := sqladapter.New(db, dialect, mt)
	if err != nil {
		return Adapters{}, fmt.Errorf("user_message adapter: %w", err)
	}
	events, err := sqladapter.New(db, dialect, et, sqladapter.WithUUIDKeys())
	if err != nil {
		return Adapters{}, fmt.Errorf("event adapter: %w", err)
	}
	return Adapters{Users: users, Messages: messages, Events: events}, nil
}

// PgxAdapters builds adapters on a pgx pool. Event keys come from the
// column default.
func PgxAdapters(db pgxadapter.Querier) (Adapters, error) {
	ut, mt, et := tables()
	users, err := pgxadapter.New(db, ut)
	if err != nil {
		return Adapters{}, fmt.Errorf("user adapter: %w", err)
	}
	messages, err := pgxadapter.New(db, mt)
	if err != nil {
		return Adapters{}, fmt.Errorf("user_message adapter: %w", err)
	}
	events, err := pgxadapter.New(db, et)
	if err != nil {
		return Adapters{}, fmt.Errorf("event adapter: %w", err)
	}
	return Adapters{Users: users, Messages: messages, Events: events}, nil
}

// GormAdapters builds adapters over the gorm structs.
func GormAdapters(db *gorm.DB) (Adapters, error) {
	users, err := gormadapter.New[User](db)
	if err != nil {
		return Adapters{}, fmt.Errorf("user adapter: %w", err)
	}
	messages, err := gormadapter.New[UserMessage](db)
	if err != nil {
		return Adapters{}, fmt.Errorf("user_message adapter: %w", err)
	}
	events, err := gormadapter.New[Event](db, gormadapter.WithUUIDKeys())
	if err != nil {
		return Adapters{}, fmt.Errorf("event adapter: %w", err)
	}
	return Adapters{Users: users, Messages: messages, Events: events}, nil
}

// MemoryAdapters builds empty in-memory adapters.
func MemoryAdapters() Adapters {
	return Adapters{
		Users:    memadapter.New("id"),
		Messages: memadapter.New("id"),
		Events:   memadapter.New("id", memadapter.WithUUIDKeys()),
	}
}
