package store

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"kb/internal/domain"
)

// CurrentSchemaVersion is the current storage schema version.
// v2 added the per-document category attribute.
const CurrentSchemaVersion = 2

var keySchemaVersion = []byte("schema_version")

// SchemaVersion returns the stored schema version. Databases written before
// versioning report 1 when they contain documents, 0 when empty.
func (s *BoltStore) SchemaVersion() (int, error) {
	version := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if meta == nil {
			return nil
		}
		if data := meta.Get(keySchemaVersion); data != nil {
			return json.Unmarshal(data, &version)
		}
		// No version recorded: a non-empty documents bucket means a
		// pre-versioning database.
		if docs := tx.Bucket(bucketDocuments); docs != nil && docs.Stats().KeyN > 0 {
			version = 1
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: read schema version: %v", domain.ErrStore, err)
	}
	return version, nil
}

func (s *BoltStore) setSchemaVersion(version int) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(version)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keySchemaVersion, data)
	})
}

// Migrate runs any pending schema migrations and records the new version.
func (s *BoltStore) Migrate() error {
	version, err := s.SchemaVersion()
	if err != nil {
		return err
	}
	if version > CurrentSchemaVersion {
		return fmt.Errorf("%w: database created by a newer version (schema v%d > v%d)", domain.ErrStore, version, CurrentSchemaVersion)
	}

	for v := version; v < CurrentSchemaVersion; v++ {
		if v == 0 {
			continue // fresh database, nothing to migrate
		}
		if err := s.runMigration(v, v+1); err != nil {
			return fmt.Errorf("%w: migration from v%d to v%d: %v", domain.ErrStore, v, v+1, err)
		}
	}

	if version == CurrentSchemaVersion {
		return nil
	}
	if err := s.setSchemaVersion(CurrentSchemaVersion); err != nil {
		return fmt.Errorf("%w: record schema version: %v", domain.ErrStore, err)
	}
	return nil
}

func (s *BoltStore) runMigration(from, to int) error {
	switch {
	case from == 1 && to == 2:
		return s.backfillCategories()
	default:
		return nil
	}
}

// backfillCategories assigns the default category label to documents written
// before categories existed. The affected id set is computed first, then
// updated in one batch; other fields are left untouched.
func (s *BoltStore) backfillCategories() error {
	var affected [][]byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocuments).ForEach(func(k, v []byte) error {
			var rec docRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if rec.Category == "" {
				key := make([]byte, len(k))
				copy(key, k)
				affected = append(affected, key)
			}
			return nil
		})
	})
	if err != nil {
		return err
	}
	if len(affected) == 0 {
		return nil
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDocuments)
		for _, key := range affected {
			data := b.Get(key)
			if data == nil {
				continue
			}
			var rec docRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return err
			}
			rec.Category = domain.DefaultCategory
			updated, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := b.Put(key, updated); err != nil {
				return err
			}
		}
		return nil
	})
}
