package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gavel/internal/workers"
)

// Store persists canonical entities. It shares the database handle owned by
// the hearings store, so SQLite locking behavior is uniform.
type Store struct {
	db *sql.DB
}

// NewStore wraps the shared database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const entityColumns = `id, entity_type, identifier, display_name, metadata_json, mention_count, created_at`

func scanEntity(scanner interface{ Scan(...any) error }) (*Entity, error) {
	var (
		e            Entity
		entityType   string
		displayName  sql.NullString
		metadataJSON sql.NullString
		createdAt    string
	)

	err := scanner.Scan(&e.ID, &entityType, &e.Identifier, &displayName, &metadataJSON, &e.MentionCount, &createdAt)
	if err != nil {
		return nil, err
	}

	e.Type = EntityType(entityType)
	e.DisplayName = displayName.String
	if metadataJSON.Valid && metadataJSON.String != "" {
		if jsonErr := json.Unmarshal([]byte(metadataJSON.String), &e.Metadata); jsonErr != nil {
			return nil, fmt.Errorf("decode entity %d metadata: %w", e.ID, jsonErr)
		}
	}
	if parsed, parseErr := time.Parse(time.RFC3339Nano, createdAt); parseErr == nil {
		e.CreatedAt = parsed
	}

	return &e, nil
}

// Create inserts a canonical entity. A duplicate (type, identifier) pair is
// a conflict.
func (s *Store) Create(ctx context.Context, entityType EntityType, identifier, displayName string, metadata Metadata) (*Entity, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, fmt.Errorf("%w: entity identifier is required", workers.ErrValidation)
	}
	if _, ok := ParseEntityType(string(entityType)); !ok {
		return nil, fmt.Errorf("%w: unknown entity type %q", workers.ErrValidation, entityType)
	}

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encode entity metadata: %w", err)
	}

	existing, err := s.FindByIdentifier(ctx, entityType, identifier)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s %q already registered as entity %d",
			workers.ErrConflict, entityType, identifier, existing.ID)
	}

	createdAt := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
INSERT INTO canonical_entities (entity_type, identifier, display_name, metadata_json, created_at)
VALUES (?, ?, ?, ?, ?)`,
		string(entityType), identifier, nullable(displayName), string(metadataJSON),
		createdAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("insert entity: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert entity: last insert id: %w", err)
	}

	return &Entity{
		ID:          id,
		Type:        entityType,
		Identifier:  identifier,
		DisplayName: displayName,
		Metadata:    metadata,
		CreatedAt:   createdAt,
	}, nil
}

// GetOrCreate returns the entity registered for (type, identifier), creating
// it when absent. Used by correction actions that coin new entities inline.
func (s *Store) GetOrCreate(ctx context.Context, entityType EntityType, identifier, displayName string) (*Entity, bool, error) {
	existing, err := s.FindByIdentifier(ctx, entityType, identifier)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	entity, err := s.Create(ctx, entityType, identifier, displayName, Metadata{})
	if err != nil {
		if errors.Is(err, workers.ErrConflict) {
			// Lost a race with a concurrent insert; the row exists now.
			entity, lookupErr := s.FindByIdentifier(ctx, entityType, identifier)
			if lookupErr != nil {
				return nil, false, lookupErr
			}
			return entity, false, nil
		}
		return nil, false, err
	}
	return entity, true, nil
}

// GetByID returns the entity with the given id, or nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*Entity, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM canonical_entities WHERE id = ?", entityColumns), id)
	entity, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entity %d: %w", id, err)
	}
	return entity, nil
}

// FindByIdentifier returns the entity registered under the normalized
// identifier, or nil.
func (s *Store) FindByIdentifier(ctx context.Context, entityType EntityType, identifier string) (*Entity, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM canonical_entities WHERE entity_type = ? AND identifier = ?", entityColumns),
		string(entityType), strings.TrimSpace(identifier))
	entity, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find entity %s/%s: %w", entityType, identifier, err)
	}
	return entity, nil
}

// ListByType returns every entity of the given type, used for fuzzy
// candidate scoring.
func (s *Store) ListByType(ctx context.Context, entityType EntityType) ([]*Entity, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM canonical_entities WHERE entity_type = ? ORDER BY id ASC", entityColumns),
		string(entityType))
	if err != nil {
		return nil, fmt.Errorf("list entities of type %s: %w", entityType, err)
	}
	defer rows.Close()

	var entities []*Entity
	for rows.Next() {
		entity, scanErr := scanEntity(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan entity: %w", scanErr)
		}
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}

// IncrementMention bumps the mention counter after a candidate resolves to
// the entity.
func (s *Store) IncrementMention(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE canonical_entities SET mention_count = mention_count + 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("increment mention for entity %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment mention for entity %d: rows affected: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: entity %d", workers.ErrNotFound, id)
	}
	return nil
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
