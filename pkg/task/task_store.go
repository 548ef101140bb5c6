package task

import (
	"encoding/json"

	"github.com/syndtr/goleveldb/leveldb"
)

// Store persists task records in leveldb, keyed by task ID. A record is
// written on every status transition so the control server can query
// the outcome of a task after its in-memory handle is gone.
type Store struct {
	db *leveldb.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := leveldb.OpenFile(dbPath, nil)
	if err != nil {
		return nil, err
	}

	return &Store{
		db: db,
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Put(r *Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}

	return s.db.Put([]byte(r.ID), data, nil)
}

func (s *Store) Get(taskID string) (*Record, error) {
	data, err := s.db.Get([]byte(taskID), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}

	r := new(Record)
	if err = json.Unmarshal(data, r); err != nil {
		return nil, err
	}

	return r, nil
}

func (s *Store) Remove(taskID string) error {
	if err := s.db.Delete([]byte(taskID), nil); err != nil {
		if err == leveldb.ErrNotFound {
			return ErrTaskNotFound
		}
		return err
	}
	return nil
}
